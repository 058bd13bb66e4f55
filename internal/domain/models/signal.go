package models

import "strings"

// Direction is a directional call.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// LookupDirection maps loose oracle spellings onto a Direction, ignoring
// case and surrounding space. ok is false for values it does not recognise.
func LookupDirection(s string) (d Direction, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP", "LONG", "BUY", "BULLISH":
		return DirectionUp, true
	case "DOWN", "SHORT", "SELL", "BEARISH":
		return DirectionDown, true
	case "NEUTRAL", "HOLD", "FLAT", "SIDEWAYS", "NONE":
		return DirectionNeutral, true
	default:
		return DirectionNeutral, false
	}
}

// ParseDirection is LookupDirection with unknown values mapped to NEUTRAL.
func ParseDirection(s string) Direction {
	d, _ := LookupDirection(s)
	return d
}

// Bias maps a direction to the trend bias it implies.
func (d Direction) Bias() TrendBias {
	switch d {
	case DirectionUp:
		return BiasBullish
	case DirectionDown:
		return BiasBearish
	default:
		return BiasNeutral
	}
}

// SignalCategory groups signals by the dimension they measure.
type SignalCategory string

const (
	CategoryMomentum   SignalCategory = "momentum"
	CategoryTrend      SignalCategory = "trend"
	CategoryVolatility SignalCategory = "volatility"
	CategoryStructure  SignalCategory = "structure"
)

// WeightedSignal is one directional vote derived from an indicator.
type WeightedSignal struct {
	Name      string         `json:"name"`
	Direction Direction      `json:"direction"`
	Strength  float64        `json:"strength"`
	Weight    float64        `json:"weight"`
	Category  SignalCategory `json:"category"`
	Reason    string         `json:"reason"`
}

// Score is strength multiplied by weight.
func (s WeightedSignal) Score() float64 { return s.Strength * s.Weight }

// AggregationResult is derived once per run from the signal set.
type AggregationResult struct {
	UpScore          float64 `json:"upScore"`
	DownScore        float64 `json:"downScore"`
	SignalAlignment  float64 `json:"signalAlignment"`
	VolumeBonus      float64 `json:"volumeBonus"`
	RegimeMultiplier float64 `json:"regimeMultiplier"`
	UpCount          int     `json:"upCount"`
	DownCount        int     `json:"downCount"`
	NeutralCount     int     `json:"neutralCount"`
	TotalSignals     int     `json:"totalSignals"`
}
