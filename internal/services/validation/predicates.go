package validation

import "SignalFlow/internal/domain/models"

const (
	// VolumeConfirmationRatio is the single volume threshold used everywhere,
	// including the text handed to the oracle.
	VolumeConfirmationRatio = 1.1
	divergenceWindow        = 5
	rsiNeutralLow           = 48.0
	rsiNeutralHigh          = 52.0
)

// VolumeConfirmation returns current/average volume and whether it confirms a move.
// A zero average yields a ratio of 1.
func VolumeConfirmation(current, average float64) (ratio float64, confirmed bool) {
	ratio = 1
	if average != 0 {
		ratio = current / average
	}
	return ratio, ratio >= VolumeConfirmationRatio
}

// VolumeDivergence compares the last two of the latest five candles. A move in
// dir on falling volume is a divergence.
func VolumeDivergence(candles []models.Candle, dir models.Direction) models.VolumeDivergence {
	if len(candles) < divergenceWindow {
		return models.VolumeDivergence{Reason: "Insufficient data for divergence check"}
	}
	window := candles[len(candles)-divergenceWindow:]
	prev, last := window[len(window)-2], window[len(window)-1]
	volumeFell := last.Volume < prev.Volume

	switch dir {
	case models.DirectionUp:
		if last.Close > prev.Close && volumeFell {
			return models.VolumeDivergence{Detected: true, Reason: "Weak Breakout: price rose on declining volume"}
		}
	case models.DirectionDown:
		if last.Close < prev.Close && volumeFell {
			return models.VolumeDivergence{Detected: true, Reason: "Weak Breakdown: price fell on declining volume"}
		}
	}
	return models.VolumeDivergence{Reason: "Volume confirms price action"}
}

// IsRSINeutral reports whether rsi sits in the 48..52 dead zone.
func IsRSINeutral(rsi float64) bool {
	return rsi >= rsiNeutralLow && rsi <= rsiNeutralHigh
}

// TrendAlignment checks a call against the anchor timeframe's bias.
func TrendAlignment(dir models.Direction, anchor models.TrendBias) models.TrendAlignment {
	call := dir.Bias()
	switch {
	case call == models.BiasNeutral:
		return models.TrendAlignment{Aligned: true, Reason: "Neutral call, no alignment required"}
	case anchor == models.BiasNeutral || anchor == "":
		return models.TrendAlignment{Aligned: true, Reason: "Anchor timeframe neutral"}
	case call == anchor:
		return models.TrendAlignment{Aligned: true, Reason: "Aligned with anchor timeframe " + string(anchor) + " trend"}
	default:
		return models.TrendAlignment{Aligned: false, Reason: "Conflicts with anchor timeframe " + string(anchor) + " trend"}
	}
}

// NoAnchorAlignment is used when anchor data could not be fetched.
func NoAnchorAlignment() models.TrendAlignment {
	return models.TrendAlignment{Aligned: true, Reason: "No anchor check performed"}
}
