package service

import (
	"context"

	"SignalFlow/internal/domain/models"
)

// IndicatorCalculator turns chronologically ordered candles into a snapshot.
// Implementations are deterministic for identical input.
type IndicatorCalculator interface {
	Compute(candles []models.Candle, barsPerYear float64) (models.IndicatorSnapshot, error)
}

// JudgmentOracle asks an external model for a directional judgment.
// Any failure is reported as an error and callers treat it as "no judgment".
// onThinking may be nil; it receives intermediate reasoning text as it streams.
type JudgmentOracle interface {
	Judge(ctx context.Context, snap models.JudgmentSnapshot, onThinking func(string)) (*models.ExternalJudgment, error)
}
