package targets

import (
	"math"

	"SignalFlow/internal/domain/models"
)

const (
	minVolatilityFraction = 0.002
	entryBandFactor       = 0.25
	targetNearFactor      = 1.5
	targetFarFactor       = 2.4
	stopFactor            = 1.05
)

// SafeVolatility floors the volatility so bands never collapse to zero width.
func SafeVolatility(price, volatility float64) float64 {
	v := math.Abs(volatility)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return math.Max(v, math.Abs(price)*minVolatilityFraction)
}

// ComputeFallbackTargets derives entry, target and stop from price and volatility.
// NEUTRAL has no targets and returns nil.
func ComputeFallbackTargets(dir models.Direction, price, volatility float64) *models.TradeTargets {
	safeVol := SafeVolatility(price, volatility)
	band := safeVol * entryBandFactor

	switch dir {
	case models.DirectionUp:
		entry := models.PriceRange{Low: price - band, High: price + band*0.5}.Normalized()
		return &models.TradeTargets{
			Entry:  entry,
			Target: models.PriceRange{Low: price + targetNearFactor*safeVol, High: price + targetFarFactor*safeVol},
			Stop:   entry.Low - stopFactor*safeVol,
		}
	case models.DirectionDown:
		entry := models.PriceRange{Low: price - band*0.5, High: price + band}.Normalized()
		return &models.TradeTargets{
			Entry:  entry,
			Target: models.PriceRange{Low: price - targetFarFactor*safeVol, High: price - targetNearFactor*safeVol},
			Stop:   entry.High + stopFactor*safeVol,
		}
	default:
		return nil
	}
}

// NormalizeOrRepair validates an oracle candidate against the invariants for dir.
// A missing or non-finite field rejects the candidate (nil). A bad stop is
// repaired; a bad target side replaces the whole candidate with the fallback.
func NormalizeOrRepair(c *models.TargetCandidate, dir models.Direction, price, volatility float64) (*models.TradeTargets, models.TargetResolution) {
	if dir != models.DirectionUp && dir != models.DirectionDown {
		return nil, models.ResolutionRejected
	}
	t, ok := c.Complete()
	if !ok {
		return nil, models.ResolutionRejected
	}
	t.Entry = t.Entry.Normalized()
	t.Target = t.Target.Normalized()

	fallback := ComputeFallbackTargets(dir, price, volatility)

	if !targetSideValid(t, dir) {
		return fallback, models.ResolutionReplaced
	}
	if stopValid(t, dir) {
		return &t, models.ResolutionAccepted
	}

	t.Stop = fallback.Stop
	if !stopValid(t, dir) {
		// fallback stop is anchored to the fallback entry, re-anchor to the candidate's
		safeVol := SafeVolatility(price, volatility)
		if dir == models.DirectionUp {
			t.Stop = t.Entry.Low - stopFactor*safeVol
		} else {
			t.Stop = t.Entry.High + stopFactor*safeVol
		}
	}
	return &t, models.ResolutionStopRepaired
}

// Resolve returns valid targets for dir, preferring the candidate and falling
// back to computed targets when it is absent or rejected.
func Resolve(c *models.TargetCandidate, dir models.Direction, price, volatility float64) (*models.TradeTargets, models.TargetResolution) {
	if c != nil {
		if t, res := NormalizeOrRepair(c, dir, price, volatility); t != nil {
			return t, res
		}
	}
	t := ComputeFallbackTargets(dir, price, volatility)
	if t == nil {
		return nil, models.ResolutionRejected
	}
	return t, models.ResolutionFallback
}

func targetSideValid(t models.TradeTargets, dir models.Direction) bool {
	if dir == models.DirectionUp {
		return t.Target.High > t.Entry.High
	}
	return t.Target.Low < t.Entry.Low
}

func stopValid(t models.TradeTargets, dir models.Direction) bool {
	if dir == models.DirectionUp {
		return t.Stop < t.Entry.Low
	}
	return t.Stop > t.Entry.High
}
