package signals

import (
	"math"

	"SignalFlow/internal/domain/models"
)

// MaxConfidence caps every confidence the pipeline reports.
const MaxConfidence = 98.0

// Aggregate sums the signal set into directional scores.
// volumeChange is the percent change of current volume over its average.
func Aggregate(sigs []models.WeightedSignal, regime models.MarketRegime, volumeChange float64) models.AggregationResult {
	res := models.AggregationResult{
		VolumeBonus:      VolumeBonus(volumeChange),
		RegimeMultiplier: RegimeMultiplier(regime),
		TotalSignals:     len(sigs),
	}
	for _, s := range sigs {
		switch s.Direction {
		case models.DirectionUp:
			res.UpScore += s.Score()
			res.UpCount++
		case models.DirectionDown:
			res.DownScore += s.Score()
			res.DownCount++
		default:
			res.NeutralCount++
		}
	}
	if res.TotalSignals > 0 {
		res.SignalAlignment = float64(max(res.UpCount, res.DownCount)) / float64(res.TotalSignals) * 100
	}
	return res
}

// VolumeBonus rewards elevated volume.
func VolumeBonus(volumeChange float64) float64 {
	switch {
	case volumeChange > 20:
		return 25
	case volumeChange > 10:
		return 15
	default:
		return 0
	}
}

// RegimeMultiplier scales confidence by how trendy the market is.
func RegimeMultiplier(r models.MarketRegime) float64 {
	switch r {
	case models.RegimeStrongTrending:
		return 1.15
	case models.RegimeTrending:
		return 1.05
	default:
		return 0.9
	}
}

// InternalDirection picks the side with the larger score. Equal scores
// resolve to tieBreak, which defaults to DOWN when not UP or DOWN.
func InternalDirection(agg models.AggregationResult, tieBreak models.Direction) models.Direction {
	switch {
	case agg.UpScore > agg.DownScore:
		return models.DirectionUp
	case agg.DownScore > agg.UpScore:
		return models.DirectionDown
	case tieBreak == models.DirectionUp:
		return models.DirectionUp
	default:
		return models.DirectionDown
	}
}

// Breakdown derives the internal blended confidence from the aggregation and
// trend strength. FinalConfidence is the blended value clamped to [0, 98].
func Breakdown(agg models.AggregationResult, adx float64) models.ConfidenceBreakdown {
	b := models.ConfidenceBreakdown{BaseScore: 50, VolumeBonus: agg.VolumeBonus}
	if total := agg.UpScore + agg.DownScore; total > 0 {
		b.BaseScore = math.Max(agg.UpScore, agg.DownScore) / total * 100
	}
	b.RegimeBonus = b.BaseScore * (agg.RegimeMultiplier - 1)
	if agg.SignalAlignment < 60 {
		b.AlignmentPenalty = (60 - agg.SignalAlignment) * 0.5
	}
	switch {
	case adx > 40:
		b.QualityBoost = 5
	case adx > 25:
		b.QualityBoost = 3
	}
	b.RawScore = b.BaseScore + b.VolumeBonus*0.4 + b.RegimeBonus - b.AlignmentPenalty + b.QualityBoost
	blended := 0.6*b.RawScore + 0.25*agg.SignalAlignment + 0.15*math.Min(100, 2*adx)
	b.FinalConfidence = ClampConfidence(blended)
	return b
}

// ClampConfidence bounds c to [0, MaxConfidence]; non-finite values become 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
		return 0
	}
	return math.Min(MaxConfidence, c)
}

// NormalizeOracleConfidence interprets an untrusted oracle confidence.
// ok is false when the value is unusable and the internal value should win.
// Values in (0, 1] are read as fractions.
func NormalizeOracleConfidence(c float64) (float64, bool) {
	if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
		return 0, false
	}
	if c <= 1 {
		c *= 100
	}
	return ClampConfidence(c), true
}
