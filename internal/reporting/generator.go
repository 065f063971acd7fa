package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/heatmap"
	"rebalance-lab/internal/storage"
)

// defaultTopN caps the ranked results table when Options.TopN is unset.
const defaultTopN = 20

// Options controls report generation.
type Options struct {
	// TopN caps the ranked results table. Defaults to 20.
	TopN int

	// HeatmapX/HeatmapY select the heatmap axes. Both empty skips the
	// heatmap section.
	HeatmapX string
	HeatmapY string
}

// Generator produces reports from stored optimization data.
type Generator struct {
	configStore storage.OptimizationConfigStore
	resultStore storage.OptimizationResultStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(configStore storage.OptimizationConfigStore, resultStore storage.OptimizationResultStore) *Generator {
	return &Generator{
		configStore: configStore,
		resultStore: resultStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report for one optimization config.
func (g *Generator) Generate(ctx context.Context, configID string, opts Options) (*Report, error) {
	cfg, err := g.configStore.GetByID(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	results, err := g.resultStore.GetByConfigID(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	primary := cfg.Criteria.PrimaryMetric
	if primary == "" {
		primary = "total_return"
	}

	report := &Report{
		GeneratedAt: g.now(),
		Config: ConfigSummary{
			ID:              cfg.ID,
			Ticker:          cfg.Ticker,
			StartMs:         cfg.StartMs,
			EndMs:           cfg.EndMs,
			IntervalMinutes: cfg.IntervalMinutes,
			InitialCash:     cfg.InitialCash,
			Status:          cfg.Status,
			PrimaryMetric:   primary,
			SweptParameters: sweptParameters(cfg),
		},
		Totals: Totals{Combinations: len(results)},
	}

	ranked := make([]*domain.OptimizationResult, 0, len(results))
	for _, r := range results {
		if r.Status != domain.ResultSuccess {
			report.Totals.Failed++
			report.Failures = append(report.Failures, FailureRow{
				CombinationIndex: r.CombinationIndex,
				CombinationKey:   combinationKey(r),
				Error:            r.Error,
			})
			continue
		}
		report.Totals.Succeeded++
		if eligible(r, cfg.Criteria.Constraints) {
			ranked = append(ranked, r)
		}
	}

	report.TopResults = rank(ranked, cfg.Criteria, primary, topN(opts))

	if opts.HeatmapX != "" && opts.HeatmapY != "" {
		data, err := heatmap.Build(results, opts.HeatmapX, opts.HeatmapY, primary)
		if err != nil {
			return nil, fmt.Errorf("build heatmap: %w", err)
		}
		report.Heatmap = data
	}

	return report, nil
}

func topN(opts Options) int {
	if opts.TopN > 0 {
		return opts.TopN
	}
	return defaultTopN
}

// eligible applies the criteria constraints. A nil metric value fails any
// constraint on that metric.
func eligible(r *domain.OptimizationResult, constraints []domain.MetricConstraint) bool {
	for _, c := range constraints {
		v := r.Metrics[c.Metric]
		if v == nil {
			return false
		}
		if c.Min != nil && *v < *c.Min {
			return false
		}
		if c.Max != nil && *v > *c.Max {
			return false
		}
	}
	return true
}

// rank orders eligible results best-first and converts the head into rows.
// With weights the score is the weighted sum of the named metrics; without,
// the primary metric value. Results missing a scored metric rank last.
func rank(results []*domain.OptimizationResult, criteria domain.OptimizationCriteria, primary string, limit int) []ResultRow {
	type scored struct {
		result *domain.OptimizationResult
		score  float64
		ok     bool
	}

	items := make([]scored, len(results))
	for i, r := range results {
		score, ok := scoreOf(r, criteria, primary)
		items[i] = scored{result: r, score: score, ok: ok}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ok != items[j].ok {
			return items[i].ok
		}
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].result.CombinationIndex < items[j].result.CombinationIndex
	})

	if len(items) > limit {
		items = items[:limit]
	}

	shown := shownMetrics(criteria, primary)
	rows := make([]ResultRow, len(items))
	for i, item := range items {
		row := ResultRow{
			Rank:             i + 1,
			CombinationIndex: item.result.CombinationIndex,
			CombinationKey:   combinationKey(item.result),
			Score:            item.score,
			Metrics:          make(map[string]*float64, len(shown)),
		}
		for _, name := range shown {
			row.Metrics[name] = item.result.Metrics[name]
		}
		rows[i] = row
	}
	return rows
}

func scoreOf(r *domain.OptimizationResult, criteria domain.OptimizationCriteria, primary string) (float64, bool) {
	if len(criteria.Weights) > 0 {
		names := make([]string, 0, len(criteria.Weights))
		for name := range criteria.Weights {
			names = append(names, name)
		}
		sort.Strings(names)

		score := 0.0
		for _, name := range names {
			v := r.Metrics[name]
			if v == nil {
				return 0, false
			}
			score += criteria.Weights[name] * *v
		}
		return score, true
	}

	v := r.Metrics[primary]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// shownMetrics lists the metric columns of the results table: primary
// first, then secondaries in declared order.
func shownMetrics(criteria domain.OptimizationCriteria, primary string) []string {
	names := []string{primary}
	for _, name := range criteria.SecondaryMetrics {
		if name != primary {
			names = append(names, name)
		}
	}
	return names
}

func sweptParameters(cfg *domain.OptimizationConfig) []string {
	names := make([]string, 0, len(cfg.ParameterRanges))
	for name := range cfg.ParameterRanges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func combinationKey(r *domain.OptimizationResult) string {
	if r.Combination == nil {
		return ""
	}
	return r.Combination.Key()
}
