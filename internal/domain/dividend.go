package domain

import "time"

// Dividend represents a declared cash dividend for a ticker.
type Dividend struct {
	Ticker         string  // instrument symbol
	ExDateMs       int64   // ex-dividend date, Unix timestamp in milliseconds (UTC midnight)
	AmountPerShare float64 // cash amount credited per share held
}

// DateKey returns the UTC calendar date of the ex-dividend date in YYYY-MM-DD form.
func (d *Dividend) DateKey() string {
	return time.UnixMilli(d.ExDateMs).UTC().Format("2006-01-02")
}
