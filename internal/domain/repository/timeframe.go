package repository

import "time"

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF2h  Timeframe = "2h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// SupportedTimeframes in ascending order.
var SupportedTimeframes = []Timeframe{TF1m, TF3m, TF5m, TF15m, TF30m, TF1h, TF2h, TF4h, TF1d, TF1w}

var anchors = map[Timeframe]Timeframe{
	TF1m:  TF15m,
	TF3m:  TF15m,
	TF5m:  TF1h,
	TF15m: TF1h,
	TF30m: TF4h,
	TF1h:  TF4h,
	TF2h:  TF1d,
	TF4h:  TF1d,
	TF1d:  TF1w,
	TF1w:  TF1w,
}

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	_, ok := anchors[tf]
	return ok
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// AnchorTimeframe returns the next higher timeframe used for trend confirmation.
// 1w anchors to itself.
func AnchorTimeframe(tf Timeframe) Timeframe {
	if a, ok := anchors[tf]; ok {
		return a
	}
	return anchors[DefaultTimeframe()]
}

// Duration returns the wall-clock length of one candle.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF3m:
		return 3 * time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF30m:
		return 30 * time.Minute
	case TF1h:
		return time.Hour
	case TF2h:
		return 2 * time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	case TF1w:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// BarsPerYear returns the approximate number of bars per year.
func (tf Timeframe) BarsPerYear() float64 {
	return float64(365*24*time.Hour) / float64(tf.Duration())
}
