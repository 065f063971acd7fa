package domain

// EquityPoint is one timestamped total-value snapshot of a running
// simulation. The metrics calculator derives periodic returns from these.
type EquityPoint struct {
	TimestampMs int64
	TotalValue  float64
}

// SimulationResult is the output of one simulation runner invocation.
type SimulationResult struct {
	Ticker      string
	InitialCash float64

	TradeLog   []*Trade
	FinalState *PositionState

	// AlgorithmPnL = final total value - initial cash.
	AlgorithmPnL    float64
	FinalTotalValue float64

	// BuyHoldReturn is the fractional return of investing all initial cash
	// at the first bar and holding through the last, dividends credited.
	BuyHoldReturn float64

	TotalCommissions  float64
	DividendsReceived float64

	// Equity holds total-value snapshots, one per tick. Present in both
	// full and lightweight mode (metrics depend on it).
	Equity []EquityPoint

	// TickResults holds the full per-tick evaluation trace. Nil in
	// lightweight mode.
	TickResults []*TickResult

	// PeriodsPerYear is the annualization factor implied by the bar
	// interval of the replayed series.
	PeriodsPerYear float64
}

// TradeCount returns the number of executed trades.
func (r *SimulationResult) TradeCount() int {
	return len(r.TradeLog)
}
