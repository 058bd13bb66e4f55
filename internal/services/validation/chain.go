package validation

import (
	"math"

	"SignalFlow/internal/domain/models"
)

// Rejection reasons, one per rule.
const (
	ReasonBelowMinimum     = "below minimum threshold"
	ReasonCounterTrend     = "counter-trend requires >82% confidence"
	ReasonLowVolume        = "low volume requires higher baseline"
	ReasonVolumeDivergence = "volume divergence detected"
	ReasonRSINeutral       = "RSI neutral zone, low momentum"
	ReasonRanging          = "extremely ranging market, no edge"
)

const (
	MinConfidence          = 80.0
	CounterTrendConfidence = 82.0
	LowVolumeConfidence    = 85.0
	DivergenceConfidence   = 85.0
	RSINeutralConfidence   = 80.0
	RangingADX             = 15.0
	MaxConfidence          = 98.0
)

// Input carries everything the rule chain looks at.
type Input struct {
	BaseConfidence      float64
	VolumeRatio         float64
	ADX                 float64
	TrendAligned        bool
	RSINeutral          bool
	HasVolumeDivergence bool
}

type rule struct {
	id     models.RejectionRule
	reason string
	fails  func(Input) bool
}

// rules run in this order; the first failure decides the outcome.
var rules = []rule{
	{models.RuleMinimumConfidence, ReasonBelowMinimum, func(in Input) bool {
		return in.BaseConfidence < MinConfidence
	}},
	{models.RuleCounterTrend, ReasonCounterTrend, func(in Input) bool {
		return !in.TrendAligned && in.BaseConfidence < CounterTrendConfidence
	}},
	{models.RuleLowVolume, ReasonLowVolume, func(in Input) bool {
		return in.VolumeRatio < VolumeConfirmationRatio && in.BaseConfidence < LowVolumeConfidence
	}},
	{models.RuleVolumeDivergence, ReasonVolumeDivergence, func(in Input) bool {
		return in.HasVolumeDivergence && in.BaseConfidence < DivergenceConfidence
	}},
	{models.RuleRSINeutral, ReasonRSINeutral, func(in Input) bool {
		return in.RSINeutral && in.BaseConfidence < RSINeutralConfidence
	}},
	{models.RuleRanging, ReasonRanging, func(in Input) bool {
		return in.ADX < RangingADX
	}},
}

// Validate runs the rule chain. A rejection keeps the confidence as given;
// a pass caps it at MaxConfidence.
func Validate(in Input) models.ValidationOutcome {
	if math.IsNaN(in.BaseConfidence) {
		in.BaseConfidence = 0
	}
	for _, r := range rules {
		if r.fails(in) {
			return models.Reject(in.BaseConfidence, r.id, r.reason)
		}
	}
	return models.Proceed(math.Min(MaxConfidence, in.BaseConfidence))
}
