package domain

import (
	"errors"
	"fmt"
)

// EffectiveConfig holds the resolved strategy parameters for one run.
// Built once per parameter combination and immutable for the run.
//
// Units: trigger thresholds and commission rate are decimal fractions
// (0.03 = 3%); allocation guardrails and max trade size are percent of
// total value in (0, 100].
type EffectiveConfig struct {
	TriggerUpPct          float64 // sell trigger deviation, > 0 (fraction)
	TriggerDownPct        float64 // buy trigger deviation, < 0 (fraction)
	MinStockPct           float64 // lower allocation guardrail, percent
	MaxStockPct           float64 // upper allocation guardrail, percent
	MaxTradePctOfPosition float64 // max trade notional as percent of total value, (0, 100]
	CommissionRate        float64 // commission as fraction of trade notional, >= 0
	MinNotional           float64 // trades below this notional are skipped, >= 0
	IncludeAfterHours     bool    // evaluate triggers outside regular trading hours
}

// Config validation errors.
var (
	ErrBadTriggerUp   = errors.New("trigger_up_pct must be > 0")
	ErrBadTriggerDown = errors.New("trigger_down_pct must be < 0")
	ErrBadGuardrails  = errors.New("min_stock_pct must be < max_stock_pct")
	ErrBadMaxTradePct = errors.New("max_trade_pct_of_position must be in (0, 100]")
	ErrBadCommission  = errors.New("commission_rate must be >= 0")
	ErrBadMinNotional = errors.New("min_notional must be >= 0")
)

// Validate checks all configuration invariants.
func (c *EffectiveConfig) Validate() error {
	if c.TriggerUpPct <= 0 {
		return fmt.Errorf("%w: got %v", ErrBadTriggerUp, c.TriggerUpPct)
	}
	if c.TriggerDownPct >= 0 {
		return fmt.Errorf("%w: got %v", ErrBadTriggerDown, c.TriggerDownPct)
	}
	if c.MinStockPct < 0 || c.MaxStockPct > 100 || c.MinStockPct >= c.MaxStockPct {
		return fmt.Errorf("%w: got [%v, %v]", ErrBadGuardrails, c.MinStockPct, c.MaxStockPct)
	}
	if c.MaxTradePctOfPosition <= 0 || c.MaxTradePctOfPosition > 100 {
		return fmt.Errorf("%w: got %v", ErrBadMaxTradePct, c.MaxTradePctOfPosition)
	}
	if c.CommissionRate < 0 {
		return fmt.Errorf("%w: got %v", ErrBadCommission, c.CommissionRate)
	}
	if c.MinNotional < 0 {
		return fmt.Errorf("%w: got %v", ErrBadMinNotional, c.MinNotional)
	}
	return nil
}

// DefaultConfig returns a baseline configuration used as the starting point
// when applying parameter combinations.
func DefaultConfig() EffectiveConfig {
	return EffectiveConfig{
		TriggerUpPct:          0.03,
		TriggerDownPct:        -0.03,
		MinStockPct:           10,
		MaxStockPct:           90,
		MaxTradePctOfPosition: 25,
		CommissionRate:        0.001,
		MinNotional:           100,
	}
}
