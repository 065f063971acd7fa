package strategy

import (
	"testing"

	"rebalance-lab/internal/domain"
)

func TestSizeTrade_BuyBoundedByCash(t *testing.T) {
	cfg := testConfig()
	cfg.MaxStockPct = 100
	cfg.MaxTradePctOfPosition = 100

	// 1000 cash at price 99: cash is the binding constraint.
	state := &domain.PositionState{Quantity: 0, Cash: 1000}
	qty := sizeTrade(state, 99, domain.SideBuy, cfg)

	if qty != 10 {
		t.Errorf("expected 10 shares, got %v", qty)
	}

	cost := qty*99 + qty*99*cfg.CommissionRate
	if cost > state.Cash {
		t.Errorf("sized buy exceeds available cash: cost=%v cash=%v", cost, state.Cash)
	}
}

func TestSizeTrade_SellBoundedByShares(t *testing.T) {
	cfg := testConfig()
	cfg.MinStockPct = 0
	cfg.MaxTradePctOfPosition = 100

	state := &domain.PositionState{Quantity: 7, Cash: 100000}
	qty := sizeTrade(state, 100, domain.SideSell, cfg)

	if qty != 7 {
		t.Errorf("expected all 7 shares sellable, got %v", qty)
	}
}

func TestSizeTrade_BoundedByMaxTradePct(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTradePctOfPosition = 10

	// Total value 20000, so the trade notional is capped at 2000.
	state := &domain.PositionState{Quantity: 100, Cash: 10000}
	qty := sizeTrade(state, 100, domain.SideSell, cfg)

	if qty*100 > 2000 {
		t.Errorf("trade notional %v exceeds 10%% of position", qty*100)
	}
	if qty != 20 {
		t.Errorf("expected 20 shares, got %v", qty)
	}
}

func TestSizeTrade_InfeasibleReturnsZero(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name  string
		state *domain.PositionState
		price float64
		side  domain.Side
	}{
		{"no shares to sell", &domain.PositionState{Quantity: 0, Cash: 1000}, 100, domain.SideSell},
		{"no cash to buy", &domain.PositionState{Quantity: 10, Cash: 0}, 100, domain.SideBuy},
		{"zero price", &domain.PositionState{Quantity: 10, Cash: 1000}, 0, domain.SideBuy},
		{"empty position", &domain.PositionState{}, 100, domain.SideBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if qty := sizeTrade(tt.state, tt.price, tt.side, cfg); qty != 0 {
				t.Errorf("expected 0, got %v", qty)
			}
		})
	}
}

func TestSizeTrade_OutOfBandMustReachBand(t *testing.T) {
	cfg := testConfig()
	state := &domain.PositionState{Quantity: 0, Cash: 20000}

	// A 5% notional cap buys ~6 shares at 145, short of the ~14 needed to
	// lift a 0% allocation to the 10% lower rail.
	cfg.MaxTradePctOfPosition = 5
	if qty := sizeTrade(state, 145, domain.SideBuy, cfg); qty != 0 {
		t.Errorf("expected 0 when the band is unreachable, got %v", qty)
	}

	// A 50% cap clears the rail.
	cfg.MaxTradePctOfPosition = 50
	qty := sizeTrade(state, 145, domain.SideBuy, cfg)
	if qty == 0 {
		t.Fatal("expected a feasible quantity")
	}
	after := &domain.PositionState{Quantity: qty, Cash: state.Cash - qty*145*(1+cfg.CommissionRate)}
	if pct := after.StockPct(145); pct < cfg.MinStockPct {
		t.Errorf("post-trade allocation %.4f%% below min_stock_pct %v", pct, cfg.MinStockPct)
	}
}

func TestSizeTrade_WholeShares(t *testing.T) {
	cfg := testConfig()
	state := anchoredState(100, 15000, 150)

	qty := sizeTrade(state, 154.6, domain.SideSell, cfg)
	if qty != float64(int64(qty)) {
		t.Errorf("expected whole-share quantity, got %v", qty)
	}
}
