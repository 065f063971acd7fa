// Package config loads optimization sweep definitions from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"rebalance-lab/internal/domain"
)

// Loader errors.
var (
	ErrMissingTicker = errors.New("sweep file must set ticker")
	ErrMissingRange  = errors.New("sweep file must set start and end dates")
	ErrBadDate       = errors.New("date must be YYYY-MM-DD or RFC3339")
)

// sweepFile is the YAML schema of a sweep definition.
type sweepFile struct {
	ID                string  `yaml:"id"`
	Ticker            string  `yaml:"ticker"`
	Start             string  `yaml:"start"`
	End               string  `yaml:"end"`
	IntervalMinutes   int     `yaml:"interval_minutes"`
	InitialCash       float64 `yaml:"initial_cash"`
	IncludeAfterHours bool    `yaml:"include_after_hours"`
	MaxCombinations   int     `yaml:"max_combinations"`

	Base       baseSection             `yaml:"base"`
	Parameters map[string]rangeSection `yaml:"parameters"`
	Criteria   criteriaSection         `yaml:"criteria"`
}

// baseSection overrides the default strategy config. Pointer fields
// distinguish "absent" from an explicit zero.
type baseSection struct {
	TriggerUpPct          *float64 `yaml:"trigger_up_pct"`
	TriggerDownPct        *float64 `yaml:"trigger_down_pct"`
	MinStockPct           *float64 `yaml:"min_stock_pct"`
	MaxStockPct           *float64 `yaml:"max_stock_pct"`
	MaxTradePctOfPosition *float64 `yaml:"max_trade_pct_of_position"`
	CommissionRate        *float64 `yaml:"commission_rate"`
	MinNotional           *float64 `yaml:"min_notional"`
}

type rangeSection struct {
	Type    string   `yaml:"type"`
	Min     float64  `yaml:"min"`
	Max     float64  `yaml:"max"`
	Step    float64  `yaml:"step"`
	Choices []string `yaml:"choices"`
}

type criteriaSection struct {
	PrimaryMetric    string              `yaml:"primary_metric"`
	SecondaryMetrics []string            `yaml:"secondary_metrics"`
	Constraints      []constraintSection `yaml:"constraints"`
	Weights          map[string]float64  `yaml:"weights"`
}

type constraintSection struct {
	Metric string   `yaml:"metric"`
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
}

// LoadSweep reads a sweep definition and resolves it into an
// OptimizationConfig. A missing id gets a generated UUID; base fields not
// present in the file keep the built-in defaults. Full semantic validation
// is the optimizer's job.
func LoadSweep(path string) (*domain.OptimizationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep file: %w", err)
	}
	return ParseSweep(data)
}

// ParseSweep resolves raw YAML into an OptimizationConfig.
func ParseSweep(data []byte) (*domain.OptimizationConfig, error) {
	var f sweepFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sweep file: %w", err)
	}

	if f.Ticker == "" {
		return nil, ErrMissingTicker
	}
	if f.Start == "" || f.End == "" {
		return nil, ErrMissingRange
	}

	startMs, err := parseDateMs(f.Start, false)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	endMs, err := parseDateMs(f.End, true)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	id := f.ID
	if id == "" {
		id = uuid.NewString()
	}

	interval := f.IntervalMinutes
	if interval == 0 {
		interval = domain.Interval5Min
	}
	initialCash := f.InitialCash
	if initialCash == 0 {
		initialCash = 100_000
	}

	cfg := &domain.OptimizationConfig{
		ID:                id,
		Ticker:            f.Ticker,
		StartMs:           startMs,
		EndMs:             endMs,
		ParameterRanges:   resolveRanges(f.Parameters),
		Criteria:          resolveCriteria(f.Criteria),
		MaxCombinations:   f.MaxCombinations,
		InitialCash:       initialCash,
		IntervalMinutes:   interval,
		IncludeAfterHours: f.IncludeAfterHours,
		Base:              resolveBase(f.Base),
		Status:            domain.OptimizationPending,
		CreatedAtMs:       time.Now().UnixMilli(),
	}
	return cfg, nil
}

// parseDateMs accepts a calendar date or a full RFC3339 timestamp. A bare
// end date resolves to the last millisecond of that UTC day so the range
// stays inclusive.
func parseDateMs(s string, endOfDay bool) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}

	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t.UnixMilli(), nil
}

func resolveBase(b baseSection) domain.EffectiveConfig {
	cfg := domain.DefaultConfig()
	if b.TriggerUpPct != nil {
		cfg.TriggerUpPct = *b.TriggerUpPct
	}
	if b.TriggerDownPct != nil {
		cfg.TriggerDownPct = *b.TriggerDownPct
	}
	if b.MinStockPct != nil {
		cfg.MinStockPct = *b.MinStockPct
	}
	if b.MaxStockPct != nil {
		cfg.MaxStockPct = *b.MaxStockPct
	}
	if b.MaxTradePctOfPosition != nil {
		cfg.MaxTradePctOfPosition = *b.MaxTradePctOfPosition
	}
	if b.CommissionRate != nil {
		cfg.CommissionRate = *b.CommissionRate
	}
	if b.MinNotional != nil {
		cfg.MinNotional = *b.MinNotional
	}
	return cfg
}

func resolveRanges(sections map[string]rangeSection) map[string]domain.ParameterRange {
	if len(sections) == 0 {
		return nil
	}
	ranges := make(map[string]domain.ParameterRange, len(sections))
	for name, s := range sections {
		ranges[name] = domain.ParameterRange{
			Type:     domain.ParameterType(s.Type),
			MinValue: s.Min,
			MaxValue: s.Max,
			StepSize: s.Step,
			Choices:  s.Choices,
		}
	}
	return ranges
}

func resolveCriteria(c criteriaSection) domain.OptimizationCriteria {
	out := domain.OptimizationCriteria{
		PrimaryMetric:    c.PrimaryMetric,
		SecondaryMetrics: c.SecondaryMetrics,
		Weights:          c.Weights,
	}
	for _, cs := range c.Constraints {
		out.Constraints = append(out.Constraints, domain.MetricConstraint{
			Metric: cs.Metric,
			Min:    cs.Min,
			Max:    cs.Max,
		})
	}
	return out
}
