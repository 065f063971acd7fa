package dividend

import (
	"testing"
	"time"

	"rebalance-lab/internal/domain"
)

func msAt(day string) int64 {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func makeBarOn(day string, offsetMinutes int) *domain.PriceBar {
	return &domain.PriceBar{
		Ticker:        "TEST",
		TimestampMs:   msAt(day) + int64(offsetMinutes)*60_000,
		Close:         100,
		IsMarketHours: true,
	}
}

func TestProcessor_AppliesOncePerExDate(t *testing.T) {
	proc := NewProcessor([]*domain.Dividend{
		{Ticker: "TEST", ExDateMs: msAt("2024-03-15"), AmountPerShare: 0.5},
	})
	state := &domain.PositionState{Quantity: 100, Cash: 1000}

	// Many intraday ticks on the ex-date: only the first credits.
	var total float64
	for i := 0; i < 78; i++ {
		total += proc.Apply(state, makeBarOn("2024-03-15", i*5))
	}

	if total != 50 {
		t.Errorf("expected one credit of 50, got %v", total)
	}
	if state.Cash != 1050 {
		t.Errorf("expected cash 1050, got %v", state.Cash)
	}
	if proc.AppliedCount() != 1 {
		t.Errorf("expected 1 applied ex-date, got %d", proc.AppliedCount())
	}
}

func TestProcessor_NoDividendDate(t *testing.T) {
	proc := NewProcessor([]*domain.Dividend{
		{Ticker: "TEST", ExDateMs: msAt("2024-03-15"), AmountPerShare: 0.5},
	})
	state := &domain.PositionState{Quantity: 100, Cash: 1000}

	if credit := proc.Apply(state, makeBarOn("2024-03-14", 0)); credit != 0 {
		t.Errorf("expected no credit on non-ex-date, got %v", credit)
	}
	if state.Cash != 1000 {
		t.Errorf("cash changed without a dividend: %v", state.Cash)
	}
}

func TestProcessor_QuantityAtMoment(t *testing.T) {
	proc := NewProcessor([]*domain.Dividend{
		{Ticker: "TEST", ExDateMs: msAt("2024-03-15"), AmountPerShare: 1.0},
	})

	state := &domain.PositionState{Quantity: 40, Cash: 0}
	proc.Apply(state, makeBarOn("2024-03-15", 0))

	// Quantity grows after the credit; later ticks on the same date must
	// not re-credit against the larger position.
	state.Quantity = 400
	proc.Apply(state, makeBarOn("2024-03-15", 60))

	if state.Cash != 40 {
		t.Errorf("expected credit against 40 shares, got cash %v", state.Cash)
	}
}

// Replaying the same date range at 5-minute and 60-minute resolution must
// credit an identical total dividend amount.
func TestProcessor_ResolutionIdempotence(t *testing.T) {
	dividends := []*domain.Dividend{
		{Ticker: "TEST", ExDateMs: msAt("2024-03-15"), AmountPerShare: 0.25},
		{Ticker: "TEST", ExDateMs: msAt("2024-06-14"), AmountPerShare: 0.30},
	}
	days := []string{"2024-03-14", "2024-03-15", "2024-06-14", "2024-06-15"}

	replay := func(intervalMinutes int) float64 {
		proc := NewProcessor(dividends)
		state := &domain.PositionState{Quantity: 200, Cash: 0}
		var total float64
		for _, day := range days {
			for m := 0; m < 390; m += intervalMinutes {
				total += proc.Apply(state, makeBarOn(day, m))
			}
		}
		return total
	}

	credit5m := replay(5)
	credit60m := replay(60)

	if credit5m != credit60m {
		t.Errorf("dividend credit depends on resolution: 5m=%v 60m=%v", credit5m, credit60m)
	}
	if want := 200 * (0.25 + 0.30); credit5m != want {
		t.Errorf("expected total credit %v, got %v", want, credit5m)
	}
}

func TestProcessor_SameDateDividendsMerge(t *testing.T) {
	proc := NewProcessor([]*domain.Dividend{
		{Ticker: "TEST", ExDateMs: msAt("2024-03-15"), AmountPerShare: 0.2},
		{Ticker: "TEST", ExDateMs: msAt("2024-03-15"), AmountPerShare: 0.3},
	})
	state := &domain.PositionState{Quantity: 10, Cash: 0}

	proc.Apply(state, makeBarOn("2024-03-15", 0))
	proc.Apply(state, makeBarOn("2024-03-15", 5))

	if state.Cash != 5 {
		t.Errorf("expected merged credit of 5, got %v", state.Cash)
	}
}
