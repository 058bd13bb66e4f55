package models

import "math"

// PriceRange is a closed price interval with Low <= High.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Normalized returns the range with bounds swapped if needed.
func (r PriceRange) Normalized() PriceRange {
	if r.Low > r.High {
		return PriceRange{Low: r.High, High: r.Low}
	}
	return r
}

// TradeTargets holds entry, target and stop prices.
type TradeTargets struct {
	Entry  PriceRange `json:"entry"`
	Target PriceRange `json:"target"`
	Stop   float64    `json:"stop"`
}

// Valid reports whether the targets satisfy the invariants for dir.
// Long: stop < entry.low and target.high > entry.high.
// Short: stop > entry.high and target.low < entry.low.
func (t TradeTargets) Valid(dir Direction) bool {
	if t.Entry.Low > t.Entry.High || t.Target.Low > t.Target.High {
		return false
	}
	switch dir {
	case DirectionUp:
		return t.Stop < t.Entry.Low && t.Target.High > t.Entry.High
	case DirectionDown:
		return t.Stop > t.Entry.High && t.Target.Low < t.Entry.Low
	default:
		return false
	}
}

// CandidateRange is an oracle supplied range whose bounds may be missing.
type CandidateRange struct {
	Low  *float64 `json:"low"`
	High *float64 `json:"high"`
}

// TargetCandidate is an untrusted target triple from the oracle.
type TargetCandidate struct {
	Entry  *CandidateRange `json:"entry"`
	Target *CandidateRange `json:"target"`
	Stop   *float64        `json:"stop"`
}

// Complete returns the candidate as TradeTargets when every field is present
// and finite.
func (c *TargetCandidate) Complete() (TradeTargets, bool) {
	if c == nil || c.Entry == nil || c.Target == nil || c.Stop == nil {
		return TradeTargets{}, false
	}
	vals := []*float64{c.Entry.Low, c.Entry.High, c.Target.Low, c.Target.High, c.Stop}
	for _, v := range vals {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			return TradeTargets{}, false
		}
	}
	return TradeTargets{
		Entry:  PriceRange{Low: *c.Entry.Low, High: *c.Entry.High},
		Target: PriceRange{Low: *c.Target.Low, High: *c.Target.High},
		Stop:   *c.Stop,
	}, true
}

// TargetResolution records how the final targets were obtained.
type TargetResolution string

const (
	ResolutionAccepted     TargetResolution = "accepted"
	ResolutionStopRepaired TargetResolution = "stop_repaired"
	ResolutionReplaced     TargetResolution = "replaced"
	ResolutionRejected     TargetResolution = "rejected"
	ResolutionFallback     TargetResolution = "fallback"
)
