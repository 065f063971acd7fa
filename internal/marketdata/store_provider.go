package marketdata

import (
	"context"
	"fmt"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage"
)

// StoreProvider serves market data from BarStore/DividendStore backends.
// It is the provider used by backtests and optimizations once data has
// been ingested.
type StoreProvider struct {
	bars      storage.BarStore
	dividends storage.DividendStore
}

// NewStoreProvider creates a provider backed by the given stores.
func NewStoreProvider(bars storage.BarStore, dividends storage.DividendStore) *StoreProvider {
	return &StoreProvider{bars: bars, dividends: dividends}
}

// GetPriceSeries retrieves bars from the bar store.
func (p *StoreProvider) GetPriceSeries(ctx context.Context, ticker string, intervalMinutes int, start, end int64) ([]*domain.PriceBar, error) {
	if !domain.ValidIntervalMinutes(intervalMinutes) {
		return nil, fmt.Errorf("unsupported interval %d minutes", intervalMinutes)
	}

	bars, err := p.bars.GetByTickerRange(ctx, ticker, intervalMinutes, start, end)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s interval=%dm [%d, %d]", ErrNoData, ticker, intervalMinutes, start, end)
	}
	return bars, nil
}

// GetDividends retrieves dividends from the dividend store.
func (p *StoreProvider) GetDividends(ctx context.Context, ticker string, start, end int64) ([]*domain.Dividend, error) {
	dividends, err := p.dividends.GetByTickerRange(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("load dividends for %s: %w", ticker, err)
	}
	return dividends, nil
}

var _ Provider = (*StoreProvider)(nil)
