package marketdata

import (
	"time"

	"SignalFlow/internal/domain/models"
)

const volumeWindow = 20

// VolumeChange is the last candle's volume relative to the mean of the
// preceding window, in percent. Zero when there is not enough data.
func VolumeChange(candles []models.Candle) float64 {
	n := len(candles)
	if n < 2 {
		return 0
	}
	start := n - 1 - volumeWindow
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, c := range candles[start : n-1] {
		sum += c.Volume
	}
	avg := sum / float64(n-1-start)
	if avg <= 0 {
		return 0
	}
	return (candles[n-1].Volume/avg - 1) * 100
}

// PriceChange24h compares the last close with the newest close at least 24h
// older. Falls back to the first candle when history is shorter.
func PriceChange24h(candles []models.Candle) float64 {
	n := len(candles)
	if n < 2 {
		return 0
	}
	last := candles[n-1]
	ref := candles[0]
	cutoff := last.Bucket.Add(-24 * time.Hour)
	for i := n - 2; i >= 0; i-- {
		if !candles[i].Bucket.After(cutoff) {
			ref = candles[i]
			break
		}
	}
	if ref.Close == 0 {
		return 0
	}
	return (last.Close - ref.Close) / ref.Close * 100
}
