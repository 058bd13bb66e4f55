package models

import "time"

// ProgressStatus is the lifecycle state of a pipeline stage.
type ProgressStatus string

const (
	StatusPending    ProgressStatus = "pending"
	StatusInProgress ProgressStatus = "in_progress"
	StatusComplete   ProgressStatus = "complete"
)

// Stage names emitted by an analysis run, in order.
const (
	StageMarketData  = "market_data"
	StageIndicators  = "indicators"
	StageSignals     = "signals"
	StageAggregation = "aggregation"
	StageJudgment    = "ai_judgment"
	StageValidation  = "validation"
	StageVerdict     = "verdict"
)

// ProgressEvent is an observational stage update.
type ProgressEvent struct {
	RunID     string         `json:"runId"`
	Stage     string         `json:"stage"`
	Progress  int            `json:"progress"`
	Status    ProgressStatus `json:"status"`
	Payload   interface{}    `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ThinkingPayload carries a fragment of streamed oracle reasoning.
type ThinkingPayload struct {
	Thinking string `json:"thinking"`
}

// IsThinking reports whether the event only carries reasoning text.
func (e ProgressEvent) IsThinking() bool {
	_, ok := e.Payload.(ThinkingPayload)
	return ok
}
