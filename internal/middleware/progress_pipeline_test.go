package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalFlow/internal/domain/models"
	"SignalFlow/pkg/metrics"
)

type collector struct {
	mu     sync.Mutex
	events []models.ProgressEvent
	fail   bool
	delay  time.Duration
}

func (c *collector) deliver(ev models.ProgressEvent) error {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("client gone")
	}
	c.events = append(c.events, ev)
	return nil
}

func stage(name string, pct int) models.ProgressEvent {
	return models.ProgressEvent{Stage: name, Progress: pct, Status: models.StatusComplete}
}

func TestProgressPipelinePreservesOrder(t *testing.T) {
	c := &collector{delay: time.Millisecond}
	p := NewProgressPipeline(c.deliver, metrics.Nop{}, WithBufferSize(2))
	p.Start()

	stages := []models.ProgressEvent{
		stage(models.StageMarketData, 10), stage(models.StageIndicators, 25), stage(models.StageSignals, 40),
		stage(models.StageAggregation, 50), stage(models.StageJudgment, 80), stage(models.StageValidation, 90),
		stage(models.StageVerdict, 100),
	}
	for _, ev := range stages {
		p.Emit(context.Background(), ev)
	}
	p.Close()

	if len(c.events) != len(stages) {
		t.Fatalf("delivered %d events, want %d", len(c.events), len(stages))
	}
	for i, ev := range c.events {
		if ev.Stage != stages[i].Stage {
			t.Fatalf("event %d: got %s want %s", i, ev.Stage, stages[i].Stage)
		}
	}
}

func TestProgressPipelineThrottlesThinking(t *testing.T) {
	c := &collector{}
	p := NewProgressPipeline(c.deliver, metrics.Nop{}, WithMaxThinkingRate(1))
	p.Start()
	for i := 0; i < 10; i++ {
		p.Emit(context.Background(), models.ProgressEvent{
			Stage: models.StageJudgment, Progress: 70, Status: models.StatusInProgress,
			Payload: models.ThinkingPayload{Thinking: "x"},
		})
	}
	p.Emit(context.Background(), stage(models.StageJudgment, 80))
	p.Close()

	if len(c.events) != 2 {
		t.Fatalf("expected one thinking event plus the stage event, got %d", len(c.events))
	}
	if c.events[1].IsThinking() {
		t.Fatalf("stage event must come last")
	}
}

func TestProgressPipelineRejectsInvalid(t *testing.T) {
	c := &collector{}
	p := NewProgressPipeline(c.deliver, metrics.Nop{})
	p.Start()
	p.Emit(context.Background(), models.ProgressEvent{Progress: 10})
	p.Emit(context.Background(), models.ProgressEvent{Stage: "x", Progress: 101})
	p.Close()
	if len(c.events) != 0 {
		t.Fatalf("invalid events delivered: %+v", c.events)
	}
}

func TestProgressPipelineStopsAfterDeliveryFailure(t *testing.T) {
	c := &collector{fail: true}
	p := NewProgressPipeline(c.deliver, metrics.Nop{})
	p.Start()
	p.Emit(context.Background(), stage(models.StageMarketData, 10))
	deadline := time.Now().Add(time.Second)
	for p.Delivered() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.Delivered() {
		t.Fatalf("pipeline should be marked broken")
	}
	p.Emit(context.Background(), stage(models.StageIndicators, 25))
	p.Close()
	p.Close()
}

func TestProgressPipelineEmitAfterClose(t *testing.T) {
	p := NewProgressPipeline(func(models.ProgressEvent) error { return nil }, metrics.Nop{})
	p.Start()
	p.Close()
	p.Emit(context.Background(), stage(models.StageVerdict, 100))
}
