package strategy

import (
	"math"

	"rebalance-lab/internal/domain"
)

// sizeTrade returns the largest whole-share quantity satisfying all of:
//   - the post-trade stock allocation lands inside the guardrail band
//     [min_stock_pct, max_stock_pct],
//   - the trade notional does not exceed max_trade_pct_of_position of the
//     current total value,
//   - sufficient cash (buy) or shares (sell) exist, commission included.
//
// A position starting outside the band must cross into it in one trade:
// when the notional cap or available funds cannot carry the allocation to
// the near rail, no feasible quantity exists.
//
// Returns 0 when no feasible quantity exists.
func sizeTrade(state *domain.PositionState, price float64, side domain.Side, cfg *domain.EffectiveConfig) float64 {
	if price <= 0 {
		return 0
	}

	total := state.TotalValue(price)
	if total <= 0 {
		return 0
	}

	r := cfg.CommissionRate
	minFrac := cfg.MinStockPct / 100
	maxFrac := cfg.MaxStockPct / 100
	maxNotional := cfg.MaxTradePctOfPosition / 100 * total
	qtyByNotional := maxNotional / price

	// qtyByGuardrail caps the trade at the far rail; qtyIntoBand is the
	// minimum quantity that carries an out-of-band allocation to the near
	// rail (non-positive when already inside the band).
	var qtyByGuardrail, qtyIntoBand, qtyByFunds float64
	switch side {
	case domain.SideBuy:
		// Post-trade allocation: (S+q)p / (total - q*p*r).
		qtyByGuardrail = (maxFrac*total - state.Quantity*price) / (price * (1 + maxFrac*r))
		qtyIntoBand = (minFrac*total - state.Quantity*price) / (price * (1 + minFrac*r))
		qtyByFunds = state.Cash / (price * (1 + r))
	case domain.SideSell:
		// Post-trade allocation: (S-q)p / (total - q*p*r).
		qtyByGuardrail = (state.Quantity*price - minFrac*total) / (price * (1 - minFrac*r))
		qtyIntoBand = (state.Quantity*price - maxFrac*total) / (price * (1 - maxFrac*r))
		qtyByFunds = state.Quantity
	}

	qty := math.Floor(min3(qtyByGuardrail, qtyByNotional, qtyByFunds))
	if qty < 0 {
		return 0
	}
	if qty < math.Ceil(qtyIntoBand) {
		return 0
	}
	return qty
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}
