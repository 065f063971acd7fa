package reporting

import (
	"time"

	"rebalance-lab/internal/domain"
)

// Report represents a rendered optimization run summary.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Config      ConfigSummary

	// Totals
	Totals Totals

	// Ranked results, best first by score. Length is capped by the
	// generator's TopN option.
	TopResults []ResultRow

	// Failed combinations with their reasons.
	Failures []FailureRow

	// Optional 2-D projection of the primary metric.
	Heatmap *domain.HeatmapData
}

// ConfigSummary describes the optimization run the report covers.
type ConfigSummary struct {
	ID              string
	Ticker          string
	StartMs         int64 // Unix ms
	EndMs           int64 // Unix ms
	IntervalMinutes int
	InitialCash     float64
	Status          domain.OptimizationStatus
	PrimaryMetric   string
	SweptParameters []string // sorted
}

// Totals counts combination outcomes.
type Totals struct {
	Combinations int
	Succeeded    int
	Failed       int
}

// ResultRow is one ranked combination.
type ResultRow struct {
	Rank             int
	CombinationIndex int
	CombinationKey   string
	Score            float64

	// Metrics holds the metric values shown in the results table,
	// keyed by metric name. Nil entries render as n/a.
	Metrics map[string]*float64
}

// FailureRow is one failed combination and its reason.
type FailureRow struct {
	CombinationIndex int
	CombinationKey   string
	Error            string
}
