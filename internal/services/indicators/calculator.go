package indicators

import (
	"errors"
	"fmt"
	"math"

	"SignalFlow/internal/domain/models"

	talib "github.com/markcheno/go-talib"
)

// ErrInsufficientCandles is returned when there is not enough history.
var ErrInsufficientCandles = errors.New("indicators: insufficient candles")

const (
	rsiPeriod        = 14
	stochPeriod      = 14
	adxPeriod        = 14
	atrPeriod        = 14
	bbPeriod         = 20
	momentumPeriod   = 10
	volumeMAPeriod   = 20
	structurePeriod  = 20
	realizedVolWin   = 20
	strongTrendADX   = 40
	trendingADX      = 25
	defaultMinCandle = 50
)

// Calculator computes IndicatorSnapshot values with go-talib.
type Calculator struct {
	minCandles int
}

// NewCalculator returns a calculator that refuses fewer than minCandles candles.
func NewCalculator(minCandles int) *Calculator {
	if minCandles < defaultMinCandle {
		minCandles = defaultMinCandle
	}
	return &Calculator{minCandles: minCandles}
}

// Compute builds a snapshot from chronologically ordered candles.
func (c *Calculator) Compute(candles []models.Candle, barsPerYear float64) (models.IndicatorSnapshot, error) {
	if len(candles) < c.minCandles {
		return models.IndicatorSnapshot{}, fmt.Errorf("%w: have %d need %d", ErrInsufficientCandles, len(candles), c.minCandles)
	}

	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	vols := make([]float64, n)
	for i, k := range candles {
		highs[i], lows[i], closes[i], vols[i] = k.High, k.Low, k.Close, k.Volume
	}
	price := closes[n-1]
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return models.IndicatorSnapshot{}, fmt.Errorf("indicators: invalid last close %v", price)
	}

	s := models.IndicatorSnapshot{Price: price, CurrentVolume: vols[n-1]}

	s.RSI = last(talib.Rsi(closes, rsiPeriod))
	k, d := talib.Stoch(highs, lows, closes, stochPeriod, 3, talib.SMA, 3, talib.SMA)
	s.StochK, s.StochD = last(k), last(d)
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	s.MACD, s.MACDSignal, s.MACDHistogram = last(macd), last(signal), last(hist)

	s.ADX = last(talib.Adx(highs, lows, closes, adxPeriod))
	s.PlusDI = last(talib.PlusDI(highs, lows, closes, adxPeriod))
	s.MinusDI = last(talib.MinusDI(highs, lows, closes, adxPeriod))

	s.SMA20 = smaOrMean(closes, 20)
	s.SMA50 = smaOrMean(closes, 50)
	s.SMA200 = smaOrMean(closes, 200)

	upper, middle, lower := talib.BBands(closes, bbPeriod, 2, 2, talib.SMA)
	s.BollingerUpper, s.BollingerMiddle, s.BollingerLower = last(upper), last(middle), last(lower)

	s.ATR = last(talib.Atr(highs, lows, closes, atrPeriod))
	s.Momentum = momentumPercent(closes, momentumPeriod)
	s.ROC = last(talib.Roc(closes, momentumPeriod))

	s.VolumeMA = smaOrMean(vols, volumeMAPeriod)

	s.Support, s.Resistance = supportResistance(highs, lows, structurePeriod)
	s.DistanceToSupport = (price - s.Support) / price * 100
	s.DistanceToResistance = (s.Resistance - price) / price * 100

	s.RealizedVolatility = RealizedVolatility(ComputeLogReturns(closes), realizedVolWin, barsPerYear)

	s.Regime = ClassifyRegime(s.ADX)
	s.TrendBias = ClassifyTrend(price, s.SMA20, s.SMA50)

	return sanitize(s), nil
}

// ClassifyRegime maps ADX onto a market regime.
func ClassifyRegime(adx float64) models.MarketRegime {
	switch {
	case adx > strongTrendADX:
		return models.RegimeStrongTrending
	case adx > trendingADX:
		return models.RegimeTrending
	default:
		return models.RegimeRanging
	}
}

// ClassifyTrend derives a bias from price and the 20/50 moving averages.
func ClassifyTrend(price, sma20, sma50 float64) models.TrendBias {
	switch {
	case price > sma50 && sma20 > sma50:
		return models.BiasBullish
	case price < sma50 && sma20 < sma50:
		return models.BiasBearish
	default:
		return models.BiasNeutral
	}
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

// smaOrMean uses talib.Sma when there is enough data, else the mean of all values.
func smaOrMean(v []float64, period int) float64 {
	if len(v) >= period {
		return last(talib.Sma(v, period))
	}
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func momentumPercent(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 0
	}
	past := closes[len(closes)-1-period]
	if past == 0 {
		return 0
	}
	return last(talib.Mom(closes, period)) / past * 100
}

// supportResistance returns the lowest low and highest high over the last period candles.
func supportResistance(highs, lows []float64, period int) (float64, float64) {
	start := len(highs) - period
	if start < 0 {
		start = 0
	}
	support, resistance := lows[start], highs[start]
	for i := start + 1; i < len(highs); i++ {
		support = math.Min(support, lows[i])
		resistance = math.Max(resistance, highs[i])
	}
	return support, resistance
}

// sanitize zeroes any non-finite field so downstream math stays finite.
func sanitize(s models.IndicatorSnapshot) models.IndicatorSnapshot {
	fields := []*float64{
		&s.RSI, &s.StochK, &s.StochD, &s.MACD, &s.MACDSignal, &s.MACDHistogram,
		&s.ADX, &s.PlusDI, &s.MinusDI, &s.SMA20, &s.SMA50, &s.SMA200,
		&s.BollingerUpper, &s.BollingerMiddle, &s.BollingerLower, &s.ATR,
		&s.Momentum, &s.ROC, &s.VolumeMA, &s.DistanceToSupport, &s.DistanceToResistance,
		&s.RealizedVolatility, &s.Price, &s.CurrentVolume, &s.Support, &s.Resistance,
	}
	for _, f := range fields {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
	return s
}
