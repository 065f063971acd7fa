package optimizer

import (
	"errors"
	"fmt"

	"rebalance-lab/internal/domain"
)

// Sweepable parameter names. Every name accepted in a ParameterRanges map
// must appear here and in applyCombination.
const (
	ParamTriggerUpPct          = "trigger_up_pct"
	ParamTriggerDownPct        = "trigger_down_pct"
	ParamMinStockPct           = "min_stock_pct"
	ParamMaxStockPct           = "max_stock_pct"
	ParamMaxTradePctOfPosition = "max_trade_pct_of_position"
	ParamCommissionRate        = "commission_rate"
	ParamMinNotional           = "min_notional"
	ParamIncludeAfterHours     = "include_after_hours"
)

// Combination application errors.
var (
	ErrUnknownParameter  = errors.New("unknown parameter name")
	ErrBadParameterValue = errors.New("parameter value has wrong type")
)

// applyCombination overlays one combination onto the base strategy config
// and validates the merged result. An unknown name or a type mismatch is a
// per-combination failure, never a sweep abort.
func applyCombination(base domain.EffectiveConfig, combo *domain.ParameterCombination) (domain.EffectiveConfig, error) {
	cfg := base

	for _, name := range combo.Names {
		v := combo.Values[name]

		if name == ParamIncludeAfterHours {
			if v.Type != domain.ParameterBool {
				return cfg, fmt.Errorf("%w: %s=%s", ErrBadParameterValue, name, v.String())
			}
			cfg.IncludeAfterHours = v.Bool
			continue
		}

		f, ok := v.AsFloat()
		if !ok {
			return cfg, fmt.Errorf("%w: %s=%s", ErrBadParameterValue, name, v.String())
		}

		switch name {
		case ParamTriggerUpPct:
			cfg.TriggerUpPct = f
		case ParamTriggerDownPct:
			cfg.TriggerDownPct = f
		case ParamMinStockPct:
			cfg.MinStockPct = f
		case ParamMaxStockPct:
			cfg.MaxStockPct = f
		case ParamMaxTradePctOfPosition:
			cfg.MaxTradePctOfPosition = f
		case ParamCommissionRate:
			cfg.CommissionRate = f
		case ParamMinNotional:
			cfg.MinNotional = f
		default:
			return cfg, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
