package simulation

import (
	"errors"
	"testing"
	"time"

	"rebalance-lab/internal/domain"
)

// Helper to create a regular-hours bar series from a price sequence.
func makeBars(prices []float64, startMs, intervalMs int64) []*domain.PriceBar {
	bars := make([]*domain.PriceBar, len(prices))
	for i, p := range prices {
		bars[i] = &domain.PriceBar{
			Ticker:        "TEST",
			TimestampMs:   startMs + int64(i)*intervalMs,
			Open:          p,
			High:          p,
			Low:           p,
			Close:         p,
			IsMarketHours: true,
		}
	}
	return bars
}

func testConfig() *domain.EffectiveConfig {
	return &domain.EffectiveConfig{
		TriggerUpPct:          0.03,
		TriggerDownPct:        -0.03,
		MinStockPct:           10,
		MaxStockPct:           90,
		MaxTradePctOfPosition: 50,
		CommissionRate:        0.001,
		MinNotional:           100,
	}
}

func dayMs(day string) int64 {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func TestRun_TriggerRoundTrip(t *testing.T) {
	// Bootstrap at 150, -3.45% dip buys, +3.1% recovery sells.
	input := &Input{
		Ticker:          "TEST",
		Bars:            makeBars([]float64{150, 145, 149.5}, 1_000_000, 60_000),
		InitialCash:     100_000,
		Config:          testConfig(),
		IntervalMinutes: 1,
	}

	result, err := Run(input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TradeCount() != 2 {
		t.Fatalf("expected 2 trades, got %d", result.TradeCount())
	}
	if result.TradeLog[0].Side != domain.SideBuy {
		t.Errorf("first trade should be BUY, got %s", result.TradeLog[0].Side)
	}
	if result.TradeLog[1].Side != domain.SideSell {
		t.Errorf("second trade should be SELL, got %s", result.TradeLog[1].Side)
	}
	if got := *result.FinalState.AnchorPrice; got != 149.5 {
		t.Errorf("anchor should rest at last execution price 149.5, got %v", got)
	}
}

func TestRun_PnLRoundTrip(t *testing.T) {
	input := &Input{
		Ticker:          "TEST",
		Bars:            makeBars([]float64{150, 145, 149.5, 144, 150}, 1_000_000, 60_000),
		InitialCash:     100_000,
		Config:          testConfig(),
		IntervalMinutes: 1,
	}

	result, err := Run(input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.AlgorithmPnL != result.FinalTotalValue-result.InitialCash {
		t.Errorf("pnl round-trip broken: pnl=%v final=%v initial=%v",
			result.AlgorithmPnL, result.FinalTotalValue, result.InitialCash)
	}
	if len(result.Equity) != 5 {
		t.Errorf("expected one equity point per bar, got %d", len(result.Equity))
	}
}

func TestRun_LightweightMode(t *testing.T) {
	bars := makeBars([]float64{150, 145, 149.5, 144, 150}, 1_000_000, 60_000)

	full, err := Run(&Input{Ticker: "TEST", Bars: bars, InitialCash: 100_000,
		Config: testConfig(), IntervalMinutes: 1})
	if err != nil {
		t.Fatalf("full run failed: %v", err)
	}

	light, err := Run(&Input{Ticker: "TEST", Bars: bars, InitialCash: 100_000,
		Config: testConfig(), IntervalMinutes: 1, Lightweight: true})
	if err != nil {
		t.Fatalf("lightweight run failed: %v", err)
	}

	if light.TickResults != nil {
		t.Errorf("lightweight mode must omit the tick trace")
	}
	if full.TickResults == nil {
		t.Errorf("full mode must retain the tick trace")
	}
	if len(light.Equity) != len(full.Equity) {
		t.Errorf("lightweight mode must keep equity snapshots for metrics")
	}
	if light.AlgorithmPnL != full.AlgorithmPnL || light.TradeCount() != full.TradeCount() {
		t.Errorf("lightweight mode changed the simulation outcome")
	}
}

func TestRun_Deterministic(t *testing.T) {
	input := func() *Input {
		return &Input{
			Ticker:          "TEST",
			Bars:            makeBars([]float64{150, 145, 149.5, 144, 150, 155, 149}, 1_000_000, 60_000),
			InitialCash:     100_000,
			Config:          testConfig(),
			IntervalMinutes: 1,
		}
	}

	first, err := Run(input())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for run := 1; run < 5; run++ {
		result, err := Run(input())
		if err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
		if result.AlgorithmPnL != first.AlgorithmPnL ||
			result.FinalTotalValue != first.FinalTotalValue ||
			result.TotalCommissions != first.TotalCommissions ||
			result.TradeCount() != first.TradeCount() {
			t.Fatalf("run %d: output differs from run 0", run)
		}
		for i, trade := range result.TradeLog {
			if *trade != *first.TradeLog[i] {
				t.Fatalf("run %d: trade %d differs", run, i)
			}
		}
	}
}

func TestRun_DividendAppliedOnce(t *testing.T) {
	// Two days of hourly bars; ex-date on the second day.
	day1 := dayMs("2024-03-14")
	day2 := dayMs("2024-03-15")
	bars := append(
		makeBars([]float64{150, 145, 144, 144}, day1, 3_600_000),
		makeBars([]float64{144, 144, 144, 144}, day2, 3_600_000)...,
	)

	input := &Input{
		Ticker: "TEST",
		Bars:   bars,
		Dividends: []*domain.Dividend{
			{Ticker: "TEST", ExDateMs: day2, AmountPerShare: 0.5},
		},
		InitialCash:     100_000,
		Config:          testConfig(),
		IntervalMinutes: 60,
	}

	result, err := Run(input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The dip at 145 buys on day 1, so shares are held over the ex-date.
	if result.TradeCount() == 0 {
		t.Fatal("expected the dip to trigger a buy before the ex-date")
	}
	sharesHeld := result.TradeLog[0].SharesAfter
	if want := sharesHeld * 0.5; result.DividendsReceived != want {
		t.Errorf("expected one dividend credit of %v, got %v", want, result.DividendsReceived)
	}
}

// The baseline and the tick loop must credit the same dividend set: an
// ex-date on a calendar day with no bars is invisible to both, so a flat
// no-trade run matches the baseline exactly.
func TestRun_BaselineSkipsBarlessExDates(t *testing.T) {
	day1 := dayMs("2024-03-14")
	day2 := dayMs("2024-03-15") // no bars on this day
	day3 := dayMs("2024-03-16")
	bars := append(
		makeBars([]float64{100, 100}, day1, 3_600_000),
		makeBars([]float64{100, 100}, day3, 3_600_000)...,
	)

	result, err := Run(&Input{
		Ticker: "TEST",
		Bars:   bars,
		Dividends: []*domain.Dividend{
			{Ticker: "TEST", ExDateMs: day2, AmountPerShare: 1.0},
		},
		InitialCash:     10_000,
		Config:          testConfig(),
		IntervalMinutes: 60,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.DividendsReceived != 0 {
		t.Errorf("tick loop credited a barless ex-date: %v", result.DividendsReceived)
	}
	if result.BuyHoldReturn != 0 {
		t.Errorf("baseline credited a barless ex-date: return %v on a flat series", result.BuyHoldReturn)
	}
}

func TestRun_BuyHoldBaseline(t *testing.T) {
	input := &Input{
		Ticker:          "TEST",
		Bars:            makeBars([]float64{100, 102, 110}, 1_000_000, 60_000),
		InitialCash:     10_000,
		Config:          testConfig(),
		IntervalMinutes: 1,
	}

	result, err := Run(input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got, want := result.BuyHoldReturn, 0.10; got < want-1e-12 || got > want+1e-12 {
		t.Errorf("expected buy-hold return %v, got %v", want, got)
	}
}

func TestRun_InputValidation(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name    string
		input   *Input
		wantErr error
	}{
		{"empty series", &Input{Ticker: "TEST", InitialCash: 1000, Config: cfg}, ErrEmptySeries},
		{"zero cash", &Input{Ticker: "TEST", Bars: makeBars([]float64{100}, 0, 60_000), Config: cfg}, ErrBadInitialCash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRun_UnorderedSeriesSorted(t *testing.T) {
	bars := makeBars([]float64{150, 145, 149.5}, 1_000_000, 60_000)
	shuffled := []*domain.PriceBar{bars[2], bars[0], bars[1]}

	ordered, err := Run(&Input{Ticker: "TEST", Bars: bars, InitialCash: 100_000,
		Config: testConfig(), IntervalMinutes: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	reordered, err := Run(&Input{Ticker: "TEST", Bars: shuffled, InitialCash: 100_000,
		Config: testConfig(), IntervalMinutes: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if ordered.AlgorithmPnL != reordered.AlgorithmPnL || ordered.TradeCount() != reordered.TradeCount() {
		t.Errorf("replay depends on input ordering")
	}
}
