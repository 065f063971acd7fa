package postgres

import (
	"encoding/json"
	"fmt"

	"rebalance-lab/internal/domain"
)

// JSONB payload shapes for the optimization tables. Kept separate from the
// domain types so column payloads stay snake_case and stable even when the
// in-memory types grow fields.

type rangeJSON struct {
	Type     string   `json:"type"`
	MinValue float64  `json:"min_value,omitempty"`
	MaxValue float64  `json:"max_value,omitempty"`
	StepSize float64  `json:"step_size,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

type constraintJSON struct {
	Metric string   `json:"metric"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

type criteriaJSON struct {
	PrimaryMetric    string             `json:"primary_metric"`
	SecondaryMetrics []string           `json:"secondary_metrics,omitempty"`
	Constraints      []constraintJSON   `json:"constraints,omitempty"`
	Weights          map[string]float64 `json:"weights,omitempty"`
}

type baseConfigJSON struct {
	TriggerUpPct          float64 `json:"trigger_up_pct"`
	TriggerDownPct        float64 `json:"trigger_down_pct"`
	MinStockPct           float64 `json:"min_stock_pct"`
	MaxStockPct           float64 `json:"max_stock_pct"`
	MaxTradePctOfPosition float64 `json:"max_trade_pct_of_position"`
	CommissionRate        float64 `json:"commission_rate"`
	MinNotional           float64 `json:"min_notional"`
	IncludeAfterHours     bool    `json:"include_after_hours"`
}

type valueJSON struct {
	Type  string  `json:"type"`
	Float float64 `json:"float,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
	Str   string  `json:"str,omitempty"`
}

type combinationJSON struct {
	Index  int                  `json:"index"`
	Names  []string             `json:"names"`
	Values map[string]valueJSON `json:"values"`
}

func encodeRanges(ranges map[string]domain.ParameterRange) ([]byte, error) {
	out := make(map[string]rangeJSON, len(ranges))
	for name, r := range ranges {
		out[name] = rangeJSON{
			Type:     string(r.Type),
			MinValue: r.MinValue,
			MaxValue: r.MaxValue,
			StepSize: r.StepSize,
			Choices:  r.Choices,
		}
	}
	return json.Marshal(out)
}

func decodeRanges(data []byte) (map[string]domain.ParameterRange, error) {
	var raw map[string]rangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode parameter ranges: %w", err)
	}
	out := make(map[string]domain.ParameterRange, len(raw))
	for name, r := range raw {
		out[name] = domain.ParameterRange{
			Type:     domain.ParameterType(r.Type),
			MinValue: r.MinValue,
			MaxValue: r.MaxValue,
			StepSize: r.StepSize,
			Choices:  r.Choices,
		}
	}
	return out, nil
}

func encodeCriteria(c domain.OptimizationCriteria) ([]byte, error) {
	out := criteriaJSON{
		PrimaryMetric:    c.PrimaryMetric,
		SecondaryMetrics: c.SecondaryMetrics,
		Weights:          c.Weights,
	}
	for _, mc := range c.Constraints {
		out.Constraints = append(out.Constraints, constraintJSON{
			Metric: mc.Metric,
			Min:    mc.Min,
			Max:    mc.Max,
		})
	}
	return json.Marshal(out)
}

func decodeCriteria(data []byte) (domain.OptimizationCriteria, error) {
	var raw criteriaJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.OptimizationCriteria{}, fmt.Errorf("decode criteria: %w", err)
	}
	out := domain.OptimizationCriteria{
		PrimaryMetric:    raw.PrimaryMetric,
		SecondaryMetrics: raw.SecondaryMetrics,
		Weights:          raw.Weights,
	}
	for _, mc := range raw.Constraints {
		out.Constraints = append(out.Constraints, domain.MetricConstraint{
			Metric: mc.Metric,
			Min:    mc.Min,
			Max:    mc.Max,
		})
	}
	return out, nil
}

func encodeBaseConfig(c domain.EffectiveConfig) ([]byte, error) {
	return json.Marshal(baseConfigJSON{
		TriggerUpPct:          c.TriggerUpPct,
		TriggerDownPct:        c.TriggerDownPct,
		MinStockPct:           c.MinStockPct,
		MaxStockPct:           c.MaxStockPct,
		MaxTradePctOfPosition: c.MaxTradePctOfPosition,
		CommissionRate:        c.CommissionRate,
		MinNotional:           c.MinNotional,
		IncludeAfterHours:     c.IncludeAfterHours,
	})
}

func decodeBaseConfig(data []byte) (domain.EffectiveConfig, error) {
	var raw baseConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.EffectiveConfig{}, fmt.Errorf("decode base config: %w", err)
	}
	return domain.EffectiveConfig{
		TriggerUpPct:          raw.TriggerUpPct,
		TriggerDownPct:        raw.TriggerDownPct,
		MinStockPct:           raw.MinStockPct,
		MaxStockPct:           raw.MaxStockPct,
		MaxTradePctOfPosition: raw.MaxTradePctOfPosition,
		CommissionRate:        raw.CommissionRate,
		MinNotional:           raw.MinNotional,
		IncludeAfterHours:     raw.IncludeAfterHours,
	}, nil
}

func encodeCombination(c *domain.ParameterCombination) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	out := combinationJSON{
		Index:  c.Index,
		Names:  c.Names,
		Values: make(map[string]valueJSON, len(c.Values)),
	}
	for name, v := range c.Values {
		out.Values[name] = valueJSON{
			Type:  string(v.Type),
			Float: v.Float,
			Int:   v.Int,
			Bool:  v.Bool,
			Str:   v.Str,
		}
	}
	return json.Marshal(out)
}

func decodeCombination(data []byte) (*domain.ParameterCombination, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw combinationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode combination: %w", err)
	}
	out := &domain.ParameterCombination{
		Index:  raw.Index,
		Names:  raw.Names,
		Values: make(map[string]domain.ParameterValue, len(raw.Values)),
	}
	for name, v := range raw.Values {
		out.Values[name] = domain.ParameterValue{
			Type:  domain.ParameterType(v.Type),
			Float: v.Float,
			Int:   v.Int,
			Bool:  v.Bool,
			Str:   v.Str,
		}
	}
	return out, nil
}

func encodeMetrics(metrics map[string]*float64) ([]byte, error) {
	if metrics == nil {
		return nil, nil
	}
	return json.Marshal(metrics)
}

func decodeMetrics(data []byte) (map[string]*float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out map[string]*float64
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return out, nil
}
