package models

import "encoding/json"

// RejectionRule identifies which validation rule rejected a run.
type RejectionRule string

const (
	RuleMinimumConfidence RejectionRule = "minimum_confidence"
	RuleCounterTrend      RejectionRule = "counter_trend"
	RuleLowVolume         RejectionRule = "low_volume"
	RuleVolumeDivergence  RejectionRule = "volume_divergence"
	RuleRSINeutral        RejectionRule = "rsi_neutral"
	RuleRanging           RejectionRule = "ranging_market"
	RuleNoDirection       RejectionRule = "no_direction"
)

// Rejection describes a failed rule.
type Rejection struct {
	Rule   RejectionRule `json:"rule"`
	Reason string        `json:"reason"`
}

// ValidationOutcome is either proceed(confidence) or rejected(reason).
// Use Proceed and Reject to build one; the zero value is a rejection-free
// outcome with zero confidence and should not be used.
type ValidationOutcome struct {
	confidence float64
	rejection  *Rejection
}

// Proceed builds a passing outcome.
func Proceed(confidence float64) ValidationOutcome {
	return ValidationOutcome{confidence: confidence}
}

// Reject builds a rejected outcome. confidence is kept as computed.
func Reject(confidence float64, rule RejectionRule, reason string) ValidationOutcome {
	return ValidationOutcome{confidence: confidence, rejection: &Rejection{Rule: rule, Reason: reason}}
}

func (o ValidationOutcome) Confidence() float64 { return o.confidence }

func (o ValidationOutcome) ShouldProceed() bool { return o.rejection == nil }

// Rejection returns the failed rule, if any.
func (o ValidationOutcome) Rejection() (Rejection, bool) {
	if o.rejection == nil {
		return Rejection{}, false
	}
	return *o.rejection, true
}

func (o ValidationOutcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Confidence      float64       `json:"confidence"`
		ShouldProceed   bool          `json:"shouldProceed"`
		RejectionReason *string       `json:"rejectionReason"`
		RejectionRule   RejectionRule `json:"rejectionRule,omitempty"`
	}{Confidence: o.confidence, ShouldProceed: o.ShouldProceed()}
	if o.rejection != nil {
		out.RejectionReason = &o.rejection.Reason
		out.RejectionRule = o.rejection.Rule
	}
	return json.Marshal(out)
}

// VolumeDivergence is the result of the divergence predicate.
type VolumeDivergence struct {
	Detected bool   `json:"detected"`
	Reason   string `json:"reason"`
}

// TrendAlignment is the result of the multi-timeframe alignment predicate.
type TrendAlignment struct {
	Aligned bool   `json:"aligned"`
	Reason  string `json:"reason"`
}
