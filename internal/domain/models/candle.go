package models

import "time"

// Candle represents an OHLCV record at a given timeframe.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// MarketData is the provider output consumed by an analysis run.
// Candles are ordered chronologically (oldest first).
type MarketData struct {
	Pair           string  `json:"pair"`
	Timeframe      string  `json:"timeframe"`
	CurrentPrice   float64 `json:"currentPrice"`
	PriceChange24h float64 `json:"priceChange24h"`
	// VolumeChangePct is the last candle's volume against the mean of the
	// preceding 20 candles, in percent.
	VolumeChangePct float64  `json:"volumeChangePct"`
	Candles         []Candle `json:"candles"`
}

// Closes returns the close series.
func (m *MarketData) Closes() []float64 {
	out := make([]float64, len(m.Candles))
	for i, c := range m.Candles {
		out[i] = c.Close
	}
	return out
}

// LastCandle returns the most recent candle, or false if there are none.
func (m *MarketData) LastCandle() (Candle, bool) {
	if len(m.Candles) == 0 {
		return Candle{}, false
	}
	return m.Candles[len(m.Candles)-1], true
}
