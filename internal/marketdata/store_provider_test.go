package marketdata

import (
	"context"
	"errors"
	"testing"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/storage/memory"
)

func seedProvider(t *testing.T) *StoreProvider {
	t.Helper()
	ctx := context.Background()

	bars := memory.NewBarStore()
	err := bars.InsertBulk(ctx, domain.Interval5Min, []*domain.PriceBar{
		{Ticker: "AAPL", TimestampMs: 1000, Close: 150.0, IsMarketHours: true},
		{Ticker: "AAPL", TimestampMs: 2000, Close: 151.0, IsMarketHours: true},
		{Ticker: "AAPL", TimestampMs: 3000, Close: 152.0, IsMarketHours: true},
	})
	if err != nil {
		t.Fatalf("seed bars: %v", err)
	}

	dividends := memory.NewDividendStore()
	err = dividends.InsertBulk(ctx, []*domain.Dividend{
		{Ticker: "AAPL", ExDateMs: 2000, AmountPerShare: 0.25},
	})
	if err != nil {
		t.Fatalf("seed dividends: %v", err)
	}

	return NewStoreProvider(bars, dividends)
}

func TestStoreProvider_GetPriceSeries(t *testing.T) {
	p := seedProvider(t)

	bars, err := p.GetPriceSeries(context.Background(), "AAPL", domain.Interval5Min, 0, 5000)
	if err != nil {
		t.Fatalf("GetPriceSeries failed: %v", err)
	}
	if len(bars) != 3 {
		t.Errorf("Expected 3 bars, got %d", len(bars))
	}
}

func TestStoreProvider_NoData(t *testing.T) {
	p := seedProvider(t)

	_, err := p.GetPriceSeries(context.Background(), "MSFT", domain.Interval5Min, 0, 5000)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for unknown ticker, got %v", err)
	}

	_, err = p.GetPriceSeries(context.Background(), "AAPL", 7, 0, 5000)
	if err == nil {
		t.Error("Expected error for unsupported interval")
	}
}

func TestStoreProvider_GetDividends(t *testing.T) {
	p := seedProvider(t)

	dividends, err := p.GetDividends(context.Background(), "AAPL", 0, 5000)
	if err != nil {
		t.Fatalf("GetDividends failed: %v", err)
	}
	if len(dividends) != 1 || dividends[0].AmountPerShare != 0.25 {
		t.Errorf("unexpected dividends: %+v", dividends)
	}

	// Empty dividend set is not an error.
	none, err := p.GetDividends(context.Background(), "MSFT", 0, 5000)
	if err != nil {
		t.Fatalf("GetDividends for empty ticker failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected 0 dividends, got %d", len(none))
	}
}

func TestLoadSeries(t *testing.T) {
	p := seedProvider(t)

	series, err := LoadSeries(context.Background(), p, "AAPL", domain.Interval5Min, 0, 5000)
	if err != nil {
		t.Fatalf("LoadSeries failed: %v", err)
	}
	if series.Ticker != "AAPL" || series.IntervalMinutes != domain.Interval5Min {
		t.Errorf("unexpected series header: %+v", series)
	}
	if len(series.Bars) != 3 || len(series.Dividends) != 1 {
		t.Errorf("Expected 3 bars and 1 dividend, got %d and %d", len(series.Bars), len(series.Dividends))
	}

	if _, err := LoadSeries(context.Background(), p, "MSFT", domain.Interval5Min, 0, 5000); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}
