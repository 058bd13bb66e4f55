package usecase

import (
	"fmt"
	"sort"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/services/targets"
	"SignalFlow/internal/services/validation"

	"github.com/shopspring/decimal"
)

// VerdictInput is everything the verdict is assembled from.
type VerdictInput struct {
	Timeframe       domrepo.Timeframe
	Price           float64
	Snapshot        models.IndicatorSnapshot
	Signals         []models.WeightedSignal
	Aggregation     models.AggregationResult
	Breakdown       models.ConfidenceBreakdown
	Direction       models.Direction
	Judgment        *models.ExternalJudgment
	Outcome         models.ValidationOutcome
	VolumeRatio     float64
	Divergence      models.VolumeDivergence
	Alignment       models.TrendAlignment
	AnchorBias      models.TrendBias
	AnchorTimeframe domrepo.Timeframe
}

// AssembleVerdict turns the validated run into a prediction. ID, pair and
// timestamps are left to the caller.
func AssembleVerdict(in VerdictInput) models.Prediction {
	source := models.SourceInternal
	var model, thinking string
	if in.Judgment != nil {
		source = models.SourceOracle
		model = in.Judgment.Model
		thinking = in.Judgment.ThinkingProcess
	}

	detailed := &models.DetailedAnalysis{
		UpScore:             in.Aggregation.UpScore,
		DownScore:           in.Aggregation.DownScore,
		SignalAlignment:     in.Aggregation.SignalAlignment,
		MarketRegime:        in.Snapshot.Regime,
		TrendBias:           in.Snapshot.TrendBias,
		AnchorTrendBias:     in.AnchorBias,
		AnchorTimeframe:     string(in.AnchorTimeframe),
		VolumeRatio:         in.VolumeRatio,
		VolumeDivergence:    in.Divergence,
		TrendAlignment:      in.Alignment,
		Validation:          in.Outcome,
		ConfidenceBreakdown: in.Breakdown,
		Indicators:          in.Signals,
		Snapshot:            in.Snapshot,
		JudgmentSource:      source,
		JudgmentModel:       model,
		ThinkingProcess:     thinking,
	}

	p := models.Prediction{
		Timeframe:     string(in.Timeframe),
		Confidence:    in.Outcome.Confidence(),
		Duration:      durationLabel(in.Timeframe),
		ShouldProceed: in.Outcome.ShouldProceed(),
		Detailed:      detailed,
	}
	if in.Judgment != nil && in.Judgment.Duration != "" {
		p.Duration = in.Judgment.Duration
	}

	if rej, rejected := in.Outcome.Rejection(); rejected {
		p.Direction = models.DirectionNeutral
		p.RejectionReason = rej.Reason
		p.Rationale = fmt.Sprintf("No trade: %s.", rej.Reason)
		p.KeyFactors = rejectionKeyFactors(in, rej)
		p.RiskFactors = rejectionRiskFactors(in, rej)
		return p
	}

	var candidate *models.TargetCandidate
	if in.Judgment != nil {
		candidate = in.Judgment.TradeTargets
	}
	tt, resolution := targets.Resolve(candidate, in.Direction, in.Price, in.Snapshot.ATR)
	detailed.TargetResolution = resolution

	p.Direction = in.Direction
	p.TradeTargets = tt
	p.Rationale = internalRationale(in)
	p.KeyFactors = synthesizeKeyFactors(in)
	p.RiskFactors = synthesizeRiskFactors(in)
	if j := in.Judgment; j != nil {
		if j.Rationale != "" {
			p.Rationale = j.Rationale
		}
		if len(j.KeyFactors) > 0 {
			p.KeyFactors = j.KeyFactors
		}
		if len(j.RiskFactors) > 0 {
			p.RiskFactors = j.RiskFactors
		}
	}
	return p
}

func rejectionKeyFactors(in VerdictInput, rej models.Rejection) []string {
	return []string{
		fmt.Sprintf("Validation rejected the %s call: %s", in.Direction, rej.Reason),
		fmt.Sprintf("Confidence %.1f%% (minimum %.0f%%)", in.Outcome.Confidence(), validation.MinConfidence),
		fmt.Sprintf("Signal alignment %.0f%%, UP %.1f vs DOWN %.1f",
			in.Aggregation.SignalAlignment, in.Aggregation.UpScore, in.Aggregation.DownScore),
	}
}

func rejectionRiskFactors(in VerdictInput, rej models.Rejection) []string {
	var out []string
	switch rej.Rule {
	case models.RuleMinimumConfidence:
		out = append(out, fmt.Sprintf("Confidence %.1f%% below %.0f%% minimum", in.Outcome.Confidence(), validation.MinConfidence))
	case models.RuleCounterTrend:
		out = append(out, in.Alignment.Reason)
	case models.RuleLowVolume:
		out = append(out, fmt.Sprintf("Volume %.2fx average, below %.1fx confirmation", in.VolumeRatio, validation.VolumeConfirmationRatio))
	case models.RuleVolumeDivergence:
		out = append(out, in.Divergence.Reason)
	case models.RuleRSINeutral:
		out = append(out, fmt.Sprintf("RSI %.1f in neutral zone", in.Snapshot.RSI))
	case models.RuleRanging:
		out = append(out, fmt.Sprintf("ADX %.1f below %.0f, no trend", in.Snapshot.ADX, validation.RangingADX))
	case models.RuleNoDirection:
		out = append(out, rej.Reason)
	}
	// remaining diagnostics that also look weak
	if rej.Rule != models.RuleCounterTrend && !in.Alignment.Aligned {
		out = append(out, in.Alignment.Reason)
	}
	if rej.Rule != models.RuleVolumeDivergence && in.Divergence.Detected {
		out = append(out, in.Divergence.Reason)
	}
	if rej.Rule != models.RuleLowVolume && in.VolumeRatio < validation.VolumeConfirmationRatio {
		out = append(out, fmt.Sprintf("Volume %.2fx average", in.VolumeRatio))
	}
	return out
}

// synthesizeKeyFactors lists the strongest signals agreeing with the call.
func synthesizeKeyFactors(in VerdictInput) []string {
	agreeing := signalsFor(in.Signals, in.Direction)
	out := make([]string, 0, 5)
	for i, s := range agreeing {
		if i == 3 {
			break
		}
		out = append(out, fmt.Sprintf("%s: %s", s.Name, s.Reason))
	}
	out = append(out, fmt.Sprintf("Volume %.2fx average", in.VolumeRatio))
	out = append(out, in.Alignment.Reason)
	return out
}

func synthesizeRiskFactors(in VerdictInput) []string {
	opposite := models.DirectionDown
	if in.Direction == models.DirectionDown {
		opposite = models.DirectionUp
	}
	out := make([]string, 0, 4)
	for i, s := range signalsFor(in.Signals, opposite) {
		if i == 2 {
			break
		}
		out = append(out, fmt.Sprintf("%s: %s", s.Name, s.Reason))
	}
	if in.Snapshot.Regime == models.RegimeRanging {
		out = append(out, "Market regime is ranging")
	}
	if in.Divergence.Detected {
		out = append(out, in.Divergence.Reason)
	}
	out = append(out, fmt.Sprintf("ATR %s (%.2f%% of price)", formatPrice(in.Snapshot.ATR), pct(in.Snapshot.ATR, in.Price)))
	return out
}

func internalRationale(in VerdictInput) string {
	agree := in.Aggregation.UpCount
	if in.Direction == models.DirectionDown {
		agree = in.Aggregation.DownCount
	}
	return fmt.Sprintf("%s bias at %s from %d of %d signals (UP %.1f vs DOWN %.1f) in a %s market.",
		in.Direction, formatPrice(in.Price), agree, in.Aggregation.TotalSignals,
		in.Aggregation.UpScore, in.Aggregation.DownScore, in.Snapshot.Regime)
}

// signalsFor returns signals pointing in dir, strongest first.
func signalsFor(sigs []models.WeightedSignal, dir models.Direction) []models.WeightedSignal {
	out := make([]models.WeightedSignal, 0, len(sigs))
	for _, s := range sigs {
		if s.Direction == dir {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score() > out[j].Score() })
	return out
}

// durationLabel estimates a holding period of 4 to 12 bars.
func durationLabel(tf domrepo.Timeframe) string {
	bar := tf.Duration()
	if bar <= 0 {
		bar = time.Hour
	}
	lo, hi := 4*bar, 12*bar
	switch {
	case lo < time.Hour:
		return fmt.Sprintf("%d-%d minutes", int(lo.Minutes()), int(hi.Minutes()))
	case lo < 24*time.Hour:
		return fmt.Sprintf("%d-%d hours", int(lo.Hours()), int(hi.Hours()))
	case lo < 7*24*time.Hour:
		return fmt.Sprintf("%d-%d days", int(lo.Hours()/24), int(hi.Hours()/24))
	default:
		return fmt.Sprintf("%d-%d weeks", int(lo.Hours()/(24*7)), int(hi.Hours()/(24*7)))
	}
}

func formatPrice(v float64) string {
	return decimal.NewFromFloat(v).Round(8).String()
}

func pct(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
