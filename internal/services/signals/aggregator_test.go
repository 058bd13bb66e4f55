package signals

import (
	"math"
	"testing"

	"SignalFlow/internal/domain/models"
)

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil, models.RegimeRanging, 0)
	if res.SignalAlignment != 0 || math.IsNaN(res.SignalAlignment) {
		t.Fatalf("empty set alignment should be 0, got %v", res.SignalAlignment)
	}
	if res.UpScore != 0 || res.DownScore != 0 {
		t.Fatalf("empty set scores should be 0")
	}
}

func TestAggregateScores(t *testing.T) {
	sigs := []models.WeightedSignal{
		{Direction: models.DirectionUp, Strength: 85, Weight: 1.2},
		{Direction: models.DirectionUp, Strength: 75, Weight: 1.4},
		{Direction: models.DirectionDown, Strength: 65, Weight: 1.3},
		{Direction: models.DirectionNeutral, Strength: 50, Weight: 1.1},
	}
	res := Aggregate(sigs, models.RegimeStrongTrending, 25)
	if math.Abs(res.UpScore-207) > 1e-9 {
		t.Fatalf("upScore: want 207 got %v", res.UpScore)
	}
	if math.Abs(res.DownScore-84.5) > 1e-9 {
		t.Fatalf("downScore: want 84.5 got %v", res.DownScore)
	}
	if res.SignalAlignment != 50 {
		t.Fatalf("alignment: want 50 got %v", res.SignalAlignment)
	}
	if res.VolumeBonus != 25 || res.RegimeMultiplier != 1.15 {
		t.Fatalf("bonus/multiplier: got %v/%v", res.VolumeBonus, res.RegimeMultiplier)
	}
}

func TestAggregateBoundsOverRandomSets(t *testing.T) {
	dirs := []models.Direction{models.DirectionUp, models.DirectionDown, models.DirectionNeutral}
	for n := 0; n < 30; n++ {
		var sigs []models.WeightedSignal
		for i := 0; i < n; i++ {
			sigs = append(sigs, models.WeightedSignal{Direction: dirs[(i*7+n)%3], Strength: float64(30 + (i*13)%70), Weight: 1 + float64(i%5)/10})
		}
		res := Aggregate(sigs, models.RegimeTrending, float64(n))
		if res.UpScore < 0 || res.DownScore < 0 {
			t.Fatalf("negative score for n=%d", n)
		}
		if res.SignalAlignment < 0 || res.SignalAlignment > 100 {
			t.Fatalf("alignment out of range for n=%d: %v", n, res.SignalAlignment)
		}
		if (res.SignalAlignment == 0) != (n == 0) {
			t.Fatalf("alignment zero iff empty violated for n=%d", n)
		}
	}
}

func TestVolumeBonusAndRegime(t *testing.T) {
	if VolumeBonus(20) != 15 || VolumeBonus(10) != 0 || VolumeBonus(21) != 25 {
		t.Fatalf("volume bonus thresholds wrong")
	}
	if RegimeMultiplier(models.RegimeTrending) != 1.05 || RegimeMultiplier(models.RegimeRanging) != 0.9 {
		t.Fatalf("regime multipliers wrong")
	}
}

func TestInternalDirectionTieBreak(t *testing.T) {
	tie := models.AggregationResult{UpScore: 100, DownScore: 100}
	if InternalDirection(tie, models.DirectionDown) != models.DirectionDown {
		t.Fatalf("tie should follow DOWN tie-break")
	}
	if InternalDirection(tie, models.DirectionUp) != models.DirectionUp {
		t.Fatalf("tie should follow UP tie-break")
	}
	if InternalDirection(tie, "") != models.DirectionDown {
		t.Fatalf("unset tie-break should default to DOWN")
	}
	if InternalDirection(models.AggregationResult{UpScore: 101, DownScore: 100}, models.DirectionDown) != models.DirectionUp {
		t.Fatalf("larger up score should win")
	}
}

func TestBreakdown(t *testing.T) {
	agg := models.AggregationResult{UpScore: 300, DownScore: 0, SignalAlignment: 37.5, RegimeMultiplier: 1.05}
	b := Breakdown(agg, 40)
	if b.BaseScore != 100 {
		t.Fatalf("base: want 100 got %v", b.BaseScore)
	}
	if math.Abs(b.RegimeBonus-5) > 1e-9 || math.Abs(b.AlignmentPenalty-11.25) > 1e-9 || b.QualityBoost != 3 {
		t.Fatalf("unexpected components %+v", b)
	}
	if math.Abs(b.RawScore-96.75) > 1e-9 {
		t.Fatalf("raw: want 96.75 got %v", b.RawScore)
	}
	if math.Abs(b.FinalConfidence-79.425) > 1e-9 {
		t.Fatalf("final: want 79.425 got %v", b.FinalConfidence)
	}

	strong := Breakdown(models.AggregationResult{UpScore: 500, SignalAlignment: 100, VolumeBonus: 25, RegimeMultiplier: 1.15}, 80)
	if strong.FinalConfidence != MaxConfidence {
		t.Fatalf("expected clamp to %v, got %v", MaxConfidence, strong.FinalConfidence)
	}

	empty := Breakdown(models.AggregationResult{RegimeMultiplier: 0.9}, 0)
	if empty.BaseScore != 50 {
		t.Fatalf("empty base should be 50, got %v", empty.BaseScore)
	}
}

func TestNormalizeOracleConfidence(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
		ok   bool
	}{
		{95, 95, true},
		{120, 98, true},
		{0.92, 92, true},
		{0, 0, false},
		{-5, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	}
	for _, c := range cases {
		got, ok := NormalizeOracleConfidence(c.in)
		if ok != c.ok || math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("normalize(%v): want %v/%v got %v/%v", c.in, c.want, c.ok, got, ok)
		}
	}
}
