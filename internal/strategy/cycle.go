// Package strategy implements the per-tick evaluation cycle of the
// volatility-triggered rebalancing strategy: anchor bootstrap, trigger
// detection, guardrail-bounded order sizing and commission accounting.
package strategy

import (
	"rebalance-lab/internal/domain"
)

// EvaluateTick runs one tick evaluation cycle against a position snapshot.
// It is a pure function: for identical (state, bar, cfg) the output is
// bit-identical on every call. The input state is never mutated; the
// transition is expressed through StateBefore/StateAfter copies.
func EvaluateTick(state *domain.PositionState, bar *domain.PriceBar, cfg *domain.EffectiveConfig) *domain.TickResult {
	before := state.Clone()
	price := bar.EffectivePrice()

	hold := func(reason string, after *domain.PositionState) *domain.TickResult {
		return &domain.TickResult{
			Action:      domain.ActionHold,
			Reason:      reason,
			StateBefore: before,
			StateAfter:  after,
		}
	}

	// Market-hours policy comes first: after-hours ticks are never
	// evaluated against triggers unless explicitly enabled.
	if !cfg.IncludeAfterHours && !bar.IsMarketHours {
		return hold(domain.ReasonAfterHours, state.Clone())
	}

	// Bootstrap: the first evaluated tick seeds the anchor and holds.
	if state.AnchorPrice == nil {
		after := state.Clone()
		after.AnchorPrice = &price
		return hold(domain.ReasonBootstrap, after)
	}

	// Upside deviation is measured against the anchor, downside against the
	// current price. This keeps the trigger symmetric in ratio terms: a move
	// up that fires the sell trigger fires the buy trigger when fully
	// retraced, regardless of which leg came first.
	anchor := *state.AnchorPrice
	upDeviation := (price - anchor) / anchor
	downDeviation := (price - anchor) / price

	var side domain.Side
	var reason string
	switch {
	case upDeviation >= cfg.TriggerUpPct:
		side, reason = domain.SideSell, domain.ReasonTriggerUp
	case downDeviation <= cfg.TriggerDownPct:
		side, reason = domain.SideBuy, domain.ReasonTriggerDown
	default:
		return hold(domain.ReasonNoTrigger, state.Clone())
	}

	qty := sizeTrade(state, price, side, cfg)
	if qty < 1 || qty*price < cfg.MinNotional {
		return hold(domain.ReasonMinNotional, state.Clone())
	}

	after := executeTrade(state, price, side, qty, cfg)

	action := domain.ActionBuy
	if side == domain.SideSell {
		action = domain.ActionSell
	}
	return &domain.TickResult{
		Action:      action,
		QtyTraded:   qty,
		Commission:  qty * price * cfg.CommissionRate,
		Reason:      reason,
		StateBefore: before,
		StateAfter:  after,
	}
}

// executeTrade settles a sized trade against a copy of the state.
// The anchor resets to the execution price here and nowhere else.
func executeTrade(state *domain.PositionState, price float64, side domain.Side, qty float64, cfg *domain.EffectiveConfig) *domain.PositionState {
	after := state.Clone()
	notional := qty * price
	commission := notional * cfg.CommissionRate

	switch side {
	case domain.SideBuy:
		after.AvgCost = (after.Quantity*after.AvgCost + notional) / (after.Quantity + qty)
		after.Quantity += qty
		after.Cash -= notional + commission
	case domain.SideSell:
		after.Quantity -= qty
		after.Cash += notional - commission
		if after.Quantity == 0 {
			after.AvgCost = 0
		}
	}

	anchor := price
	after.AnchorPrice = &anchor
	return after
}
