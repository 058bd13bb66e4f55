package usecase

import (
	"context"
	"testing"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/pkg/metrics"
)

type stubAnalyzer struct {
	pair string
	tf   domrepo.Timeframe
	n    int
}

func (a *stubAnalyzer) RunAnalysis(_ context.Context, pair string, tf domrepo.Timeframe, _ domrepo.ProgressSink) *models.Prediction {
	a.pair, a.tf = pair, tf
	a.n++
	return &models.Prediction{Pair: pair, Timeframe: string(tf), Direction: models.DirectionNeutral}
}

func TestKafkaRequestsHandler(t *testing.T) {
	a := &stubAnalyzer{}
	h := NewKafkaRequestsHandler("signalflow.requests", a, metrics.Nop{})
	if h.Topic() != "signalflow.requests" {
		t.Fatalf("topic: got %q", h.Topic())
	}

	if err := h.Handle(context.Background(), []byte(`{"pair":" ETHUSDT ","timeframe":"15m","requestedAt":1}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if a.pair != "ETHUSDT" || a.tf != domrepo.TF15m {
		t.Fatalf("got %q %q", a.pair, a.tf)
	}

	if err := h.Handle(context.Background(), []byte(`{"pair":"BTCUSDT"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if a.tf != domrepo.DefaultTimeframe() {
		t.Fatalf("expected default timeframe, got %q", a.tf)
	}

	for _, bad := range []string{`not json`, `{"timeframe":"1h"}`, `{"pair":"BTCUSDT","timeframe":"7m"}`} {
		if err := h.Handle(context.Background(), []byte(bad)); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
	if a.n != 2 {
		t.Fatalf("invalid requests must not run analysis, ran %d", a.n)
	}
}
