package models

// MarketRegime is a coarse trendiness classification derived from ADX.
type MarketRegime string

const (
	RegimeStrongTrending MarketRegime = "STRONG_TRENDING"
	RegimeTrending       MarketRegime = "TRENDING"
	RegimeRanging        MarketRegime = "RANGING"
)

// TrendBias is the directional classification of a timeframe.
type TrendBias string

const (
	BiasBullish TrendBias = "BULLISH"
	BiasBearish TrendBias = "BEARISH"
	BiasNeutral TrendBias = "NEUTRAL"
)

// IndicatorSnapshot is the technical indicator bundle computed once per run
// from the latest candles. It is read-only after construction.
type IndicatorSnapshot struct {
	Price float64 `json:"price"`

	RSI           float64 `json:"rsi"`
	StochK        float64 `json:"stochK"`
	StochD        float64 `json:"stochD"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macdSignal"`
	MACDHistogram float64 `json:"macdHistogram"`
	ADX           float64 `json:"adx"`
	PlusDI        float64 `json:"plusDI"`
	MinusDI       float64 `json:"minusDI"`

	SMA20  float64 `json:"sma20"`
	SMA50  float64 `json:"sma50"`
	SMA200 float64 `json:"sma200"`

	BollingerUpper  float64 `json:"bollingerUpper"`
	BollingerMiddle float64 `json:"bollingerMiddle"`
	BollingerLower  float64 `json:"bollingerLower"`

	ATR      float64 `json:"atr"`
	Momentum float64 `json:"momentum"` // percent change over the momentum period
	ROC      float64 `json:"roc"`

	VolumeMA      float64 `json:"volumeMA"`
	CurrentVolume float64 `json:"currentVolume"`

	Support              float64 `json:"support"`
	Resistance           float64 `json:"resistance"`
	DistanceToSupport    float64 `json:"distanceToSupport"`    // percent of price
	DistanceToResistance float64 `json:"distanceToResistance"` // percent of price

	RealizedVolatility float64 `json:"realizedVolatility"`

	Regime    MarketRegime `json:"regime"`
	TrendBias TrendBias    `json:"trendBias"`
}

// BollingerPosition returns (price-lower)/(upper-lower). ok is false when the
// bands have collapsed and the position is undefined.
func (s IndicatorSnapshot) BollingerPosition() (pos float64, ok bool) {
	width := s.BollingerUpper - s.BollingerLower
	if width == 0 {
		return 0, false
	}
	return (s.Price - s.BollingerLower) / width, true
}
