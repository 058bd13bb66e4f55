package middleware

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
)

// DeliverFunc writes one event to the client.
type DeliverFunc func(ev models.ProgressEvent) error

// ProgressPipeline sits between an analysis run and a slow client.
// Events are delivered in order by a single goroutine. Thinking fragments are
// throttled and dropped when the buffer is full; stage events are never dropped
// while the run's context is alive.
type ProgressPipeline struct {
	deliver     DeliverFunc
	metrics     domrepo.Metrics
	maxThinking int // thinking events per second
	bufSize     int
	bufCh       chan models.ProgressEvent
	done        chan struct{}
	startOnce   sync.Once
	started     atomic.Bool
	broken      atomic.Bool

	closeMu sync.RWMutex
	closed  bool

	thinkMu      sync.Mutex
	lastThinking time.Time
}

type PipelineOption func(*ProgressPipeline)

// WithMaxThinkingRate caps thinking events per second.
func WithMaxThinkingRate(n int) PipelineOption {
	return func(p *ProgressPipeline) {
		if n > 0 {
			p.maxThinking = n
		}
	}
}

// WithBufferSize sets the event buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *ProgressPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewProgressPipeline creates a new pipeline.
func NewProgressPipeline(deliver DeliverFunc, metrics domrepo.Metrics, opts ...PipelineOption) *ProgressPipeline {
	p := &ProgressPipeline{
		deliver:     deliver,
		metrics:     metrics,
		maxThinking: 20,
		bufSize:     256,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.ProgressEvent, p.bufSize)
	return p
}

// Start launches background delivery. It must be called before Emit.
func (p *ProgressPipeline) Start() {
	p.startOnce.Do(func() {
		p.started.Store(true)
		go func() {
			defer close(p.done)
			for ev := range p.bufCh {
				if p.broken.Load() {
					continue
				}
				if err := p.deliver(ev); err != nil {
					p.metrics.RecordError("progress_deliver")
					p.broken.Store(true)
				}
			}
		}()
	})
}

// Close stops accepting events and waits until buffered ones are delivered.
func (p *ProgressPipeline) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.bufCh)
	p.closeMu.Unlock()
	if p.started.Load() {
		<-p.done
	}
}

// Emit implements ProgressSink.
func (p *ProgressPipeline) Emit(ctx context.Context, ev models.ProgressEvent) {
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("progress_validate")
		return
	}

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed || p.broken.Load() {
		return
	}

	if ev.IsThinking() {
		if !p.allowThinking(time.Now()) {
			p.metrics.RecordError("progress_throttle")
			return
		}
		select {
		case p.bufCh <- ev:
		default:
			p.metrics.RecordError("progress_buffer_full")
		}
		return
	}

	select {
	case p.bufCh <- ev:
	case <-ctx.Done():
		p.metrics.RecordError("progress_cancelled")
	}
}

// Delivered reports whether the client is still receiving events.
func (p *ProgressPipeline) Delivered() bool {
	return !p.broken.Load()
}

func (p *ProgressPipeline) allowThinking(now time.Time) bool {
	if p.maxThinking <= 0 {
		return true
	}
	p.thinkMu.Lock()
	defer p.thinkMu.Unlock()
	if !p.lastThinking.IsZero() && now.Sub(p.lastThinking) < time.Second/time.Duration(p.maxThinking) {
		return false
	}
	p.lastThinking = now
	return true
}

func validateEvent(ev models.ProgressEvent) error {
	if ev.Stage == "" {
		return fmt.Errorf("stage empty")
	}
	if ev.Progress < 0 || ev.Progress > 100 {
		return fmt.Errorf("progress out of range: %d", ev.Progress)
	}
	return nil
}
