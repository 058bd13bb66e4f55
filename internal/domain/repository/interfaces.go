package repository

import (
	"context"

	"SignalFlow/internal/domain/models"
)

// MarketDataProvider fetches candles plus 24h stats for a pair.
type MarketDataProvider interface {
	Fetch(ctx context.Context, pair string, tf Timeframe) (*models.MarketData, error)
}

// CandleStore persists and serves candles (ClickHouse).
type CandleStore interface {
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	StoreBatch(ctx context.Context, tf Timeframe, candles []models.Candle) error
}

// PredictionPublisher ships final predictions downstream (Kafka).
type PredictionPublisher interface {
	Publish(ctx context.Context, p *models.Prediction) error
	Close() error
}

// ProgressSink receives ordered stage-progress events. Emit must not block
// the pipeline for long; implementations may drop events.
type ProgressSink interface {
	Emit(ctx context.Context, ev models.ProgressEvent)
}

// ProgressSinkFunc adapts a function to ProgressSink.
type ProgressSinkFunc func(ctx context.Context, ev models.ProgressEvent)

func (f ProgressSinkFunc) Emit(ctx context.Context, ev models.ProgressEvent) { f(ctx, ev) }

// DiscardProgress drops every event.
var DiscardProgress ProgressSink = ProgressSinkFunc(func(context.Context, models.ProgressEvent) {})

// Metrics records pipeline counters and latencies.
type Metrics interface {
	RecordAnalysis(pair, outcome string)
	RecordMessageSent(backend, pair string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordJudgment(model, result string)
	RecordConfidence(pair string, confidence float64)
}
