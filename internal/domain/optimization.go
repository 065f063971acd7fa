package domain

// OptimizationStatus represents the lifecycle state of an optimization run.
type OptimizationStatus string

// Optimization status constants.
const (
	OptimizationPending   OptimizationStatus = "PENDING"
	OptimizationRunning   OptimizationStatus = "RUNNING"
	OptimizationCompleted OptimizationStatus = "COMPLETED"
	OptimizationFailed    OptimizationStatus = "FAILED"
	OptimizationCancelled OptimizationStatus = "CANCELLED"
)

// IsTerminal returns true if the status permits no further transitions.
func (s OptimizationStatus) IsTerminal() bool {
	return s == OptimizationCompleted || s == OptimizationFailed || s == OptimizationCancelled
}

// IsValid returns true if the status is a known OptimizationStatus.
func (s OptimizationStatus) IsValid() bool {
	switch s {
	case OptimizationPending, OptimizationRunning, OptimizationCompleted,
		OptimizationFailed, OptimizationCancelled:
		return true
	default:
		return false
	}
}

// ResultStatus represents the outcome of one parameter combination.
type ResultStatus string

// Result status constants.
const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailed  ResultStatus = "FAILED"
)

// OptimizationCriteria selects and weights the metrics an optimization
// run is ranked by.
type OptimizationCriteria struct {
	PrimaryMetric    string
	SecondaryMetrics []string
	Constraints      []MetricConstraint
	Weights          map[string]float64
}

// MetricConstraint bounds a metric for a combination to count as acceptable.
type MetricConstraint struct {
	Metric string
	Min    *float64
	Max    *float64
}

// OptimizationConfig is the full configuration surface accepted by the
// optimization orchestrator.
type OptimizationConfig struct {
	ID     string
	Ticker string

	// Date range, Unix milliseconds (UTC).
	StartMs int64
	EndMs   int64

	ParameterRanges map[string]ParameterRange
	Criteria        OptimizationCriteria

	MaxCombinations   int
	InitialCash       float64
	IntervalMinutes   int
	IncludeAfterHours bool

	// Base holds the strategy defaults that swept parameters override.
	Base EffectiveConfig

	Status      OptimizationStatus
	CreatedAtMs int64

	// Error holds the fatal failure reason when Status is FAILED.
	Error string
}

// OptimizationResult records the outcome of one parameter combination.
// Exactly one result exists per combination.
type OptimizationResult struct {
	ConfigID         string
	CombinationIndex int
	ResultID         string // deterministic hash of (config_id, combination key)
	Combination      *ParameterCombination
	Status           ResultStatus

	// Metrics maps metric name to value. Nil entries mark metrics that
	// could not be computed (zero-trade or zero-variance runs).
	Metrics map[string]*float64

	// Error holds the failure reason when Status is FAILED.
	Error string
}

// Progress is the externally visible state of a running optimization.
type Progress struct {
	ConfigID           string
	Status             OptimizationStatus
	Completed          int
	Total              int
	CurrentCombination string
	ETAMs              int64 // estimated remaining milliseconds; 0 when unknown
	Error              string
}
