package signals

import (
	"fmt"
	"math"

	"SignalFlow/internal/domain/models"
)

// Thresholds for the indicator vote table.
const (
	rsiOversold        = 30.0
	rsiOverbought      = 70.0
	stochOversold      = 20.0
	stochOverbought    = 80.0
	macdFlatEpsilon    = 0.001
	bollingerLowZone   = 0.10
	bollingerHighZone  = 0.90
	adxStrong          = 50.0
	adxModerate        = 30.0
	momentumTrigger    = 3.0
	structureProximity = 1.5
)

// MapIndicatorsToSignals converts a snapshot into the fixed, ordered signal set.
// It is a pure function of the snapshot.
func MapIndicatorsToSignals(s models.IndicatorSnapshot) []models.WeightedSignal {
	return []models.WeightedSignal{
		rsiSignal(s),
		stochasticSignal(s),
		macdSignal(s),
		smaSignal(s),
		bollingerSignal(s),
		adxSignal(s),
		momentumSignal(s),
		structureSignal(s),
	}
}

func rsiSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "RSI", Direction: models.DirectionNeutral, Strength: 50, Weight: 1.2, Category: models.CategoryMomentum}
	switch {
	case s.RSI < rsiOversold:
		sig.Direction, sig.Strength = models.DirectionUp, 85
		sig.Reason = fmt.Sprintf("RSI %.1f oversold below %.0f", s.RSI, rsiOversold)
	case s.RSI > rsiOverbought:
		sig.Direction, sig.Strength = models.DirectionDown, 85
		sig.Reason = fmt.Sprintf("RSI %.1f overbought above %.0f", s.RSI, rsiOverbought)
	default:
		sig.Reason = fmt.Sprintf("RSI %.1f within neutral range", s.RSI)
	}
	return sig
}

func stochasticSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "Stochastic", Direction: models.DirectionNeutral, Strength: 50, Weight: 1.2, Category: models.CategoryMomentum}
	switch {
	case s.StochK < stochOversold && s.StochD < stochOversold:
		sig.Direction, sig.Strength = models.DirectionUp, 90
		sig.Reason = fmt.Sprintf("Stochastic K %.1f / D %.1f both oversold", s.StochK, s.StochD)
	case s.StochK > stochOverbought && s.StochD > stochOverbought:
		sig.Direction, sig.Strength = models.DirectionDown, 90
		sig.Reason = fmt.Sprintf("Stochastic K %.1f / D %.1f both overbought", s.StochK, s.StochD)
	default:
		sig.Reason = fmt.Sprintf("Stochastic K %.1f / D %.1f not at an extreme", s.StochK, s.StochD)
	}
	return sig
}

func macdSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "MACD", Strength: 50, Weight: 1.4, Category: models.CategoryTrend}
	if math.Abs(s.MACDHistogram) > macdFlatEpsilon {
		sig.Strength = 75
	}
	if s.MACDHistogram > 0 {
		sig.Direction = models.DirectionUp
		sig.Reason = fmt.Sprintf("MACD histogram positive (%.4f)", s.MACDHistogram)
	} else {
		sig.Direction = models.DirectionDown
		sig.Reason = fmt.Sprintf("MACD histogram non-positive (%.4f)", s.MACDHistogram)
	}
	return sig
}

func smaSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "SMA50", Strength: 65, Weight: 1.3, Category: models.CategoryTrend}
	if s.Price > s.SMA50 {
		sig.Direction = models.DirectionUp
		sig.Reason = fmt.Sprintf("Price %.4f above SMA50 %.4f", s.Price, s.SMA50)
	} else {
		sig.Direction = models.DirectionDown
		sig.Reason = fmt.Sprintf("Price %.4f at or below SMA50 %.4f", s.Price, s.SMA50)
	}
	return sig
}

func bollingerSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "Bollinger", Direction: models.DirectionNeutral, Strength: 50, Weight: 1.1, Category: models.CategoryVolatility}
	pos, ok := s.BollingerPosition()
	if !ok {
		sig.Reason = "Bollinger bands collapsed, position undefined"
		return sig
	}
	switch {
	case pos < bollingerLowZone:
		sig.Direction, sig.Strength = models.DirectionUp, 75
		sig.Reason = fmt.Sprintf("Price near lower band (position %.2f)", pos)
	case pos > bollingerHighZone:
		sig.Direction, sig.Strength = models.DirectionDown, 75
		sig.Reason = fmt.Sprintf("Price near upper band (position %.2f)", pos)
	default:
		sig.Reason = fmt.Sprintf("Price inside bands (position %.2f)", pos)
	}
	return sig
}

func adxSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "ADX/DI", Direction: models.DirectionNeutral, Strength: 30, Weight: 1.4, Category: models.CategoryTrend}
	switch {
	case s.ADX > adxStrong:
		sig.Strength = 80
	case s.ADX > adxModerate:
		sig.Strength = 60
	}
	switch {
	case s.ADX > adxStrong && s.PlusDI > s.MinusDI:
		sig.Direction = models.DirectionUp
		sig.Reason = fmt.Sprintf("Strong trend ADX %.1f with +DI %.1f over -DI %.1f", s.ADX, s.PlusDI, s.MinusDI)
	case s.ADX > adxStrong && s.MinusDI > s.PlusDI:
		sig.Direction = models.DirectionDown
		sig.Reason = fmt.Sprintf("Strong trend ADX %.1f with -DI %.1f over +DI %.1f", s.ADX, s.MinusDI, s.PlusDI)
	default:
		sig.Reason = fmt.Sprintf("ADX %.1f without a dominant strong trend", s.ADX)
	}
	return sig
}

func momentumSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "Momentum", Direction: models.DirectionNeutral, Strength: 50, Weight: 1.2, Category: models.CategoryMomentum}
	switch {
	case s.Momentum > momentumTrigger && s.ROC > momentumTrigger:
		sig.Direction, sig.Strength = models.DirectionUp, 85
		sig.Reason = fmt.Sprintf("Momentum %.2f%% and ROC %.2f%% both strongly positive", s.Momentum, s.ROC)
	case s.Momentum < -momentumTrigger && s.ROC < -momentumTrigger:
		sig.Direction, sig.Strength = models.DirectionDown, 85
		sig.Reason = fmt.Sprintf("Momentum %.2f%% and ROC %.2f%% both strongly negative", s.Momentum, s.ROC)
	default:
		sig.Reason = fmt.Sprintf("Momentum %.2f%% / ROC %.2f%% inconclusive", s.Momentum, s.ROC)
	}
	return sig
}

// structureSignal votes on proximity to support or resistance. When both are
// within range the closer level wins and an exact tie stays neutral.
func structureSignal(s models.IndicatorSnapshot) models.WeightedSignal {
	sig := models.WeightedSignal{Name: "Support/Resistance", Direction: models.DirectionNeutral, Strength: 50, Weight: 1.1, Category: models.CategoryStructure}
	nearSupport := s.DistanceToSupport < structureProximity
	nearResistance := s.DistanceToResistance < structureProximity
	if !nearSupport && !nearResistance {
		sig.Reason = fmt.Sprintf("Away from structure (support %.2f%%, resistance %.2f%%)", s.DistanceToSupport, s.DistanceToResistance)
		return sig
	}
	sig.Strength = 65
	switch {
	case nearSupport && (!nearResistance || s.DistanceToSupport < s.DistanceToResistance):
		sig.Direction = models.DirectionUp
		sig.Reason = fmt.Sprintf("Price %.2f%% above support %.4f", s.DistanceToSupport, s.Support)
	case nearResistance && (!nearSupport || s.DistanceToResistance < s.DistanceToSupport):
		sig.Direction = models.DirectionDown
		sig.Reason = fmt.Sprintf("Price %.2f%% below resistance %.4f", s.DistanceToResistance, s.Resistance)
	default:
		sig.Reason = "Equidistant from support and resistance"
	}
	return sig
}
