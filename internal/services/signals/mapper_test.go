package signals

import (
	"encoding/json"
	"testing"

	"SignalFlow/internal/domain/models"
)

// neutralSnapshot leaves every optional vote neutral; MACD and SMA50 always vote.
func neutralSnapshot() models.IndicatorSnapshot {
	return models.IndicatorSnapshot{
		Price:                100,
		RSI:                  50,
		StochK:               50,
		StochD:               50,
		MACDHistogram:        0.5,
		ADX:                  20,
		PlusDI:               20,
		MinusDI:              15,
		SMA50:                95,
		BollingerUpper:       110,
		BollingerMiddle:      100,
		BollingerLower:       90,
		Momentum:             1,
		ROC:                  1,
		DistanceToSupport:    5,
		DistanceToResistance: 5,
	}
}

func find(t *testing.T, sigs []models.WeightedSignal, name string) models.WeightedSignal {
	t.Helper()
	for _, s := range sigs {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("signal %s not found", name)
	return models.WeightedSignal{}
}

func TestMapperOrderAndWeights(t *testing.T) {
	sigs := MapIndicatorsToSignals(neutralSnapshot())
	want := []struct {
		name   string
		weight float64
	}{
		{"RSI", 1.2}, {"Stochastic", 1.2}, {"MACD", 1.4}, {"SMA50", 1.3},
		{"Bollinger", 1.1}, {"ADX/DI", 1.4}, {"Momentum", 1.2}, {"Support/Resistance", 1.1},
	}
	if len(sigs) != len(want) {
		t.Fatalf("expected %d signals, got %d", len(want), len(sigs))
	}
	for i, w := range want {
		if sigs[i].Name != w.name || sigs[i].Weight != w.weight {
			t.Fatalf("signal %d: want %s/%v got %s/%v", i, w.name, w.weight, sigs[i].Name, sigs[i].Weight)
		}
		if sigs[i].Reason == "" {
			t.Fatalf("signal %s has no reason", sigs[i].Name)
		}
	}
}

func TestMapperThresholds(t *testing.T) {
	s := neutralSnapshot()
	s.RSI = 25
	s.StochK, s.StochD = 85, 81
	s.MACDHistogram = -0.0005
	s.Price = 95
	s.ADX, s.PlusDI, s.MinusDI = 55, 30, 10
	s.Momentum, s.ROC = -4, -3.5
	s.BollingerLower, s.BollingerUpper = 94.5, 104.5 // position 0.05

	sigs := MapIndicatorsToSignals(s)
	cases := []struct {
		name     string
		dir      models.Direction
		strength float64
	}{
		{"RSI", models.DirectionUp, 85},
		{"Stochastic", models.DirectionDown, 90},
		{"MACD", models.DirectionDown, 50},
		{"SMA50", models.DirectionDown, 65},
		{"Bollinger", models.DirectionUp, 75},
		{"ADX/DI", models.DirectionUp, 80},
		{"Momentum", models.DirectionDown, 85},
	}
	for _, c := range cases {
		got := find(t, sigs, c.name)
		if got.Direction != c.dir || got.Strength != c.strength {
			t.Fatalf("%s: want %s/%v got %s/%v", c.name, c.dir, c.strength, got.Direction, got.Strength)
		}
	}
}

func TestADXStrengthTiers(t *testing.T) {
	s := neutralSnapshot()
	s.ADX = 35
	got := find(t, MapIndicatorsToSignals(s), "ADX/DI")
	if got.Direction != models.DirectionNeutral || got.Strength != 60 {
		t.Fatalf("adx 35: want NEUTRAL/60 got %s/%v", got.Direction, got.Strength)
	}
	s.ADX = 10
	got = find(t, MapIndicatorsToSignals(s), "ADX/DI")
	if got.Strength != 30 {
		t.Fatalf("adx 10: want 30 got %v", got.Strength)
	}
}

func TestBollingerCollapsedIsNeutral(t *testing.T) {
	s := neutralSnapshot()
	s.BollingerUpper, s.BollingerLower = 100, 100
	got := find(t, MapIndicatorsToSignals(s), "Bollinger")
	if got.Direction != models.DirectionNeutral || got.Strength != 50 {
		t.Fatalf("collapsed bands should be neutral, got %s/%v", got.Direction, got.Strength)
	}
}

func TestStructureProximity(t *testing.T) {
	s := neutralSnapshot()
	s.DistanceToSupport = 1.0
	got := find(t, MapIndicatorsToSignals(s), "Support/Resistance")
	if got.Direction != models.DirectionUp || got.Strength != 65 {
		t.Fatalf("near support: got %s/%v", got.Direction, got.Strength)
	}

	s.DistanceToResistance = 0.5
	got = find(t, MapIndicatorsToSignals(s), "Support/Resistance")
	if got.Direction != models.DirectionDown {
		t.Fatalf("closer resistance should win, got %s", got.Direction)
	}

	s.DistanceToSupport, s.DistanceToResistance = 1, 1
	got = find(t, MapIndicatorsToSignals(s), "Support/Resistance")
	if got.Direction != models.DirectionNeutral || got.Strength != 65 {
		t.Fatalf("equidistant: got %s/%v", got.Direction, got.Strength)
	}
}

func TestMapperIsPure(t *testing.T) {
	s := neutralSnapshot()
	s.RSI = 75
	a, _ := json.Marshal(MapIndicatorsToSignals(s))
	b, _ := json.Marshal(MapIndicatorsToSignals(s))
	if string(a) != string(b) {
		t.Fatalf("mapper output differs between runs")
	}
}
