// Package marketdata supplies the price bars and dividend events a
// simulation or optimization run consumes.
package marketdata

import (
	"context"
	"errors"

	"rebalance-lab/internal/domain"
)

// ErrNoData is returned when a provider has no bars for the requested
// ticker/interval/range.
var ErrNoData = errors.New("no market data for requested range")

// Provider supplies historical market data for a ticker.
type Provider interface {
	// GetPriceSeries retrieves bars for a ticker/interval within
	// [start, end] (inclusive), ordered by timestamp ASC.
	// Returns ErrNoData if the range is empty.
	GetPriceSeries(ctx context.Context, ticker string, intervalMinutes int, start, end int64) ([]*domain.PriceBar, error)

	// GetDividends retrieves dividends with ex-dates within [start, end]
	// (inclusive), ordered by ex-date ASC. An empty result is not an error.
	GetDividends(ctx context.Context, ticker string, start, end int64) ([]*domain.Dividend, error)
}

// Series bundles everything a single simulation run needs from a provider.
type Series struct {
	Ticker          string
	IntervalMinutes int
	Bars            []*domain.PriceBar
	Dividends       []*domain.Dividend
}

// LoadSeries fetches bars and dividends for one run in a single call.
// The bar fetch is authoritative: a dividend fetch only happens once
// bars are known to exist.
func LoadSeries(ctx context.Context, p Provider, ticker string, intervalMinutes int, start, end int64) (*Series, error) {
	bars, err := p.GetPriceSeries(ctx, ticker, intervalMinutes, start, end)
	if err != nil {
		return nil, err
	}

	dividends, err := p.GetDividends(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	return &Series{
		Ticker:          ticker,
		IntervalMinutes: intervalMinutes,
		Bars:            bars,
		Dividends:       dividends,
	}, nil
}
