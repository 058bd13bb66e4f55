package usecase

import (
	"strings"
	"testing"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/services/signals"
	"SignalFlow/internal/services/validation"
)

func TestDurationLabel(t *testing.T) {
	cases := map[domrepo.Timeframe]string{
		domrepo.TF5m:  "20-60 minutes",
		domrepo.TF15m: "1-3 hours",
		domrepo.TF1h:  "4-12 hours",
		domrepo.TF1d:  "4-12 days",
		domrepo.TF1w:  "4-12 weeks",
	}
	for tf, want := range cases {
		if got := durationLabel(tf); got != want {
			t.Fatalf("%s: got %q want %q", tf, got, want)
		}
	}
}

func verdictInput(dir models.Direction, outcome models.ValidationOutcome) VerdictInput {
	snap := baseSnapshot()
	sigs := signals.MapIndicatorsToSignals(snap)
	agg := signals.Aggregate(sigs, snap.Regime, 0)
	return VerdictInput{
		Timeframe:       domrepo.TF1h,
		Price:           100,
		Snapshot:        snap,
		Signals:         sigs,
		Aggregation:     agg,
		Breakdown:       signals.Breakdown(agg, snap.ADX),
		Direction:       dir,
		Outcome:         outcome,
		VolumeRatio:     1.2,
		Divergence:      models.VolumeDivergence{Reason: "Volume confirms price action"},
		Alignment:       validation.TrendAlignment(dir, models.BiasBullish),
		AnchorBias:      models.BiasBullish,
		AnchorTimeframe: domrepo.TF4h,
	}
}

func TestAssembleVerdictProceedInternal(t *testing.T) {
	p := AssembleVerdict(verdictInput(models.DirectionUp, models.Proceed(88)))
	if p.Direction != models.DirectionUp || !p.ShouldProceed || p.Confidence != 88 {
		t.Fatalf("unexpected verdict: %+v", p)
	}
	if p.TradeTargets == nil || !p.TradeTargets.Valid(models.DirectionUp) {
		t.Fatalf("expected fallback targets")
	}
	if p.Detailed.TargetResolution != models.ResolutionFallback {
		t.Fatalf("resolution: got %s", p.Detailed.TargetResolution)
	}
	if p.Duration != "4-12 hours" {
		t.Fatalf("duration: got %q", p.Duration)
	}
	if len(p.KeyFactors) == 0 || !strings.HasPrefix(p.KeyFactors[0], "RSI:") {
		t.Fatalf("key factors should lead with the strongest agreeing signal: %v", p.KeyFactors)
	}
	if !strings.Contains(p.Rationale, "3 of 8 signals") {
		t.Fatalf("rationale: %q", p.Rationale)
	}
}

func TestAssembleVerdictRejected(t *testing.T) {
	in := verdictInput(models.DirectionUp, models.Reject(83, models.RuleLowVolume, validation.ReasonLowVolume))
	in.VolumeRatio = 0.9
	p := AssembleVerdict(in)
	if p.Direction != models.DirectionNeutral || p.ShouldProceed {
		t.Fatalf("rejected verdict must be NEUTRAL: %+v", p)
	}
	if p.Confidence != 83 || p.TradeTargets != nil {
		t.Fatalf("confidence %v targets %+v", p.Confidence, p.TradeTargets)
	}
	if p.RejectionReason != validation.ReasonLowVolume {
		t.Fatalf("reason: got %q", p.RejectionReason)
	}
	if len(p.RiskFactors) != 1 || !strings.Contains(p.RiskFactors[0], "0.90x") {
		t.Fatalf("risk factors: %v", p.RiskFactors)
	}
	if p.Detailed == nil || p.Detailed.Validation.ShouldProceed() {
		t.Fatalf("detailed analysis must record the rejection")
	}
}

func TestAssembleVerdictJudgmentOverrides(t *testing.T) {
	in := verdictInput(models.DirectionDown, models.Proceed(90))
	in.Judgment = &models.ExternalJudgment{
		Direction:   models.DirectionDown,
		Confidence:  90,
		Rationale:   "Rejection at resistance.",
		RiskFactors: []string{"Short squeeze"},
		Duration:    "6-10 hours",
		Model:       "m1",
	}
	p := AssembleVerdict(in)
	if p.Rationale != "Rejection at resistance." || p.Duration != "6-10 hours" {
		t.Fatalf("judgment text ignored: %+v", p)
	}
	if len(p.RiskFactors) != 1 || p.RiskFactors[0] != "Short squeeze" {
		t.Fatalf("risk factors: %v", p.RiskFactors)
	}
	if len(p.KeyFactors) == 0 {
		t.Fatalf("empty judgment key factors should fall back to synthesized ones")
	}
	if p.TradeTargets == nil || !p.TradeTargets.Valid(models.DirectionDown) {
		t.Fatalf("expected short targets: %+v", p.TradeTargets)
	}
}
