package domain

import "time"

// PriceBar represents one OHLCV bar with quote data for a ticker.
// Bars are produced by a market data provider, ordered by timestamp ASC.
type PriceBar struct {
	Ticker        string  // instrument symbol
	TimestampMs   int64   // bar start, Unix timestamp in milliseconds (UTC)
	Open          float64 // open price
	High          float64 // high price
	Low           float64 // low price
	Close         float64 // close price
	Volume        float64 // traded volume in the bar
	Bid           float64 // best bid at bar close (0 if unknown)
	Ask           float64 // best ask at bar close (0 if unknown)
	IsMarketHours bool    // true if the bar falls inside regular trading hours
}

/// EffectivePrice returns the price the strategy evaluates against:
// the bid/ask midpoint when both sides are quoted, otherwise the close.
func (b *PriceBar) EffectivePrice() float64 {
	if b.Bid > 0 && b.Ask > 0 {
		return (b.Bid + b.Ask) / 2
	}
	return b.Close
}

// DateKey returns the UTC calendar date of the bar in YYYY-MM-DD form.
// Used for matching bars against ex-dividend dates.
func (b *PriceBar) DateKey() string {
	return time.UnixMilli(b.TimestampMs).UTC().Format("2006-01-02")
}

// Supported bar intervals in minutes.
const (
	Interval1Min  = 1
	Interval5Min  = 5
	Interval15Min = 15
	Interval30Min = 30
	Interval1Hour = 60
	Interval1Day  = 1440
)

// ValidIntervalMinutes reports whether m is a supported bar interval.
func ValidIntervalMinutes(m int) bool {
	switch m {
	case Interval1Min, Interval5Min, Interval15Min, Interval30Min, Interval1Hour, Interval1Day:
		return true
	default:
		return false
	}
}
