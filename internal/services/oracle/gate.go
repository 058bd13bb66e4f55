package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/internal/service/ratelimit"
	"SignalFlow/pkg/cache"
	"SignalFlow/pkg/logger"
)

var (
	ErrOracleDisabled = errors.New("oracle: disabled")
	ErrRateLimited    = errors.New("oracle: rate limited")
	ErrNoJudgment     = errors.New("oracle: no judgment")
)

const limiterKey = "oracle"

// Config controls the external judgment gate.
type Config struct {
	Enabled    bool
	Models     []string // tried in order
	Timeout    time.Duration
	Attempts   int // per model
	Backoff    time.Duration
	RatePerMin int
	CacheTTL   time.Duration
}

// Completer streams a chat completion.
type Completer interface {
	Stream(ctx context.Context, model string, messages []Message, onChunk func(string)) (string, error)
}

// Gate implements service.JudgmentOracle on top of a chat completion API.
type Gate struct {
	cfg     Config
	client  Completer
	limiter *ratelimit.Limiter
	cache   cache.Service
	metrics repository.Metrics
	log     *logger.Logger
}

// NewGate wires a gate. cache and limiter may be nil.
func NewGate(cfg Config, client Completer, limiter *ratelimit.Limiter, c cache.Service, m repository.Metrics, log *logger.Logger) *Gate {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Gate{cfg: cfg, client: client, limiter: limiter, cache: c, metrics: m, log: log}
}

// Judge asks the configured models in turn and returns the first parseable answer.
func (g *Gate) Judge(ctx context.Context, snap models.JudgmentSnapshot, onThinking func(string)) (*models.ExternalJudgment, error) {
	if !g.cfg.Enabled || g.client == nil || len(g.cfg.Models) == 0 {
		return nil, ErrOracleDisabled
	}

	key := cache.Key("oracle:judgment", snap.Pair, snap.Timeframe, snap.LastCandleAt)
	if g.cache != nil && snap.LastCandleAt > 0 {
		var cached models.ExternalJudgment
		if err := g.cache.Get(ctx, key, &cached); err == nil {
			g.metrics.RecordJudgment(cached.Model, "cache_hit")
			return &cached, nil
		}
	}

	if g.limiter != nil && g.cfg.RatePerMin > 0 &&
		!g.limiter.Allow(limiterKey, float64(g.cfg.RatePerMin), ratelimit.PerMinute(g.cfg.RatePerMin)) {
		g.metrics.RecordJudgment("", "rate_limited")
		return nil, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	defer func() { g.metrics.RecordLatency("oracle_judge", time.Since(start).Seconds()) }()

	messages := BuildMessages(snap)
	var lastErr error
	for _, model := range g.cfg.Models {
		for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
			j, err := g.ask(ctx, model, messages, onThinking)
			if err == nil {
				g.metrics.RecordJudgment(model, "ok")
				if g.cache != nil && snap.LastCandleAt > 0 {
					if cerr := g.cache.Set(ctx, key, j, g.cfg.CacheTTL); cerr != nil {
						g.log.Debug("judgment cache set failed", logger.Error(cerr))
					}
				}
				return j, nil
			}
			lastErr = err
			result := "error"
			if errors.Is(err, ErrMalformed) {
				result = "malformed"
			}
			g.metrics.RecordJudgment(model, result)
			g.log.Warn("judgment attempt failed",
				logger.String("model", model),
				logger.Int("attempt", attempt),
				logger.String("pair", snap.Pair),
				logger.Error(err))

			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrNoJudgment, ctx.Err())
			}
			if errors.Is(err, ErrMalformed) {
				break
			}
			if attempt < g.cfg.Attempts && !sleep(ctx, g.cfg.Backoff*time.Duration(attempt)) {
				return nil, fmt.Errorf("%w: %v", ErrNoJudgment, ctx.Err())
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNoJudgment, lastErr)
}

func (g *Gate) ask(ctx context.Context, model string, messages []Message, onThinking func(string)) (*models.ExternalJudgment, error) {
	filter := newThinkingFilter(onThinking)
	raw, err := g.client.Stream(ctx, model, messages, filter.Write)
	if err != nil {
		return nil, err
	}
	j, err := ParseJudgment(raw)
	if err != nil {
		return nil, err
	}
	j.Model = model
	return j, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
