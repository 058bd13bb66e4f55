package models

import "time"

// ConfidenceBreakdown records how the final confidence was derived.
type ConfidenceBreakdown struct {
	BaseScore        float64 `json:"baseScore"`
	VolumeBonus      float64 `json:"volumeBonus"`
	RegimeBonus      float64 `json:"regimeBonus"`
	AlignmentPenalty float64 `json:"alignmentPenalty"`
	QualityBoost     float64 `json:"qualityBoost"`
	RawScore         float64 `json:"rawScore"`
	FinalConfidence  float64 `json:"finalConfidence"`
}

// JudgmentSource tells whether the direction came from the oracle.
type JudgmentSource string

const (
	SourceOracle   JudgmentSource = "oracle"
	SourceInternal JudgmentSource = "internal"
)

// DetailedAnalysis carries every intermediate quantity of a run.
type DetailedAnalysis struct {
	UpScore             float64             `json:"upScore"`
	DownScore           float64             `json:"downScore"`
	SignalAlignment     float64             `json:"signalAlignment"`
	MarketRegime        MarketRegime        `json:"marketRegime"`
	TrendBias           TrendBias           `json:"trendBias"`
	AnchorTrendBias     TrendBias           `json:"anchorTrendBias"`
	AnchorTimeframe     string              `json:"anchorTimeframe"`
	VolumeRatio         float64             `json:"volumeRatio"`
	VolumeDivergence    VolumeDivergence    `json:"volumeDivergence"`
	TrendAlignment      TrendAlignment      `json:"trendAlignment"`
	Validation          ValidationOutcome   `json:"validation"`
	ConfidenceBreakdown ConfidenceBreakdown `json:"confidenceBreakdown"`
	Indicators          []WeightedSignal    `json:"indicators"`
	Snapshot            IndicatorSnapshot   `json:"snapshot"`
	JudgmentSource      JudgmentSource      `json:"judgmentSource"`
	JudgmentModel       string              `json:"judgmentModel,omitempty"`
	TargetResolution    TargetResolution    `json:"targetResolution,omitempty"`
	ThinkingProcess     string              `json:"thinkingProcess,omitempty"`
}

// Prediction is the final artifact of an analysis run.
type Prediction struct {
	ID              string            `json:"id"`
	Pair            string            `json:"pair"`
	Timeframe       string            `json:"timeframe"`
	Direction       Direction         `json:"direction"`
	Confidence      float64           `json:"confidence"`
	Duration        string            `json:"duration"`
	Rationale       string            `json:"rationale"`
	KeyFactors      []string          `json:"keyFactors"`
	RiskFactors     []string          `json:"riskFactors"`
	TradeTargets    *TradeTargets     `json:"tradeTargets,omitempty"`
	ShouldProceed   bool              `json:"shouldProceed"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Error           string            `json:"error,omitempty"`
	Detailed        *DetailedAnalysis `json:"detailedAnalysis,omitempty"`
	GeneratedAt     time.Time         `json:"generatedAt"`
}

// Failed reports whether the run ended without analysis.
func (p *Prediction) Failed() bool { return p.Error != "" }
