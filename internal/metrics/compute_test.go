package metrics

import (
	"math"
	"testing"

	"rebalance-lab/internal/domain"
)

func makeResult(values []float64, initialCash float64) *domain.SimulationResult {
	equity := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		equity[i] = domain.EquityPoint{TimestampMs: int64(i) * 60_000, TotalValue: v}
	}
	final := 0.0
	if len(values) > 0 {
		final = values[len(values)-1]
	}
	return &domain.SimulationResult{
		Ticker:          "TEST",
		InitialCash:     initialCash,
		FinalTotalValue: final,
		AlgorithmPnL:    final - initialCash,
		Equity:          equity,
		PeriodsPerYear:  252,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute_KnownCurve(t *testing.T) {
	// Returns: +10%, -10%, +10%.
	result := makeResult([]float64{100, 110, 99, 108.9}, 100)

	m := Compute(result)

	if got := *m[MetricTotalReturn]; !approxEqual(got, 0.089) {
		t.Errorf("total_return: got %v, want 0.089", got)
	}
	if got := *m[MetricMaxDrawdown]; !approxEqual(got, -0.1) {
		t.Errorf("max_drawdown: got %v, want -0.1", got)
	}
	if got := *m[MetricCalmarRatio]; !approxEqual(got, 0.89) {
		t.Errorf("calmar_ratio: got %v, want 0.89", got)
	}
	if got := *m[MetricWinRate]; !approxEqual(got, 2.0/3.0) {
		t.Errorf("win_rate: got %v, want 2/3", got)
	}
	if got := *m[MetricProfitFactor]; !approxEqual(got, 2.0) {
		t.Errorf("profit_factor: got %v, want 2", got)
	}
	if m[MetricSharpeRatio] == nil || *m[MetricSharpeRatio] <= 0 {
		t.Errorf("sharpe_ratio should be positive for a net-up curve")
	}
	if m[MetricSortinoRatio] == nil {
		t.Errorf("sortino_ratio should be computable with downside periods")
	}
}

func TestCompute_ZeroVarianceYieldsNilRatios(t *testing.T) {
	result := makeResult([]float64{100, 100, 100, 100}, 100)

	m := Compute(result)

	if m[MetricSharpeRatio] != nil {
		t.Errorf("sharpe_ratio should be nil for zero-variance run, got %v", *m[MetricSharpeRatio])
	}
	if m[MetricSortinoRatio] != nil {
		t.Errorf("sortino_ratio should be nil for zero-variance run")
	}
	if m[MetricProfitFactor] != nil {
		t.Errorf("profit_factor should be nil without losing periods")
	}
	if m[MetricCalmarRatio] != nil {
		t.Errorf("calmar_ratio should be nil without drawdown")
	}
	if got := *m[MetricVolatility]; got != 0 {
		t.Errorf("volatility should be 0 for a flat curve, got %v", got)
	}
}

func TestCompute_ZeroTradeRun(t *testing.T) {
	result := makeResult([]float64{100}, 100)

	m := Compute(result)

	if got := *m[MetricTradeCount]; got != 0 {
		t.Errorf("trade_count: got %v, want 0", got)
	}
	if m[MetricSharpeRatio] != nil || m[MetricWinRate] != nil {
		t.Errorf("ratio metrics should be nil with a single snapshot")
	}
	if m[MetricAvgTradeDuration] != nil {
		t.Errorf("avg_trade_duration should be nil without trades")
	}
	if m[MetricTotalReturn] == nil {
		t.Errorf("total_return should always be present")
	}
}

func TestCompute_AllKnownMetricsPresent(t *testing.T) {
	m := Compute(makeResult([]float64{100, 110, 99, 108.9}, 100))

	for _, name := range KnownMetrics {
		if _, ok := m[name]; !ok {
			t.Errorf("metric %q missing from result map", name)
		}
	}
	if len(m) != len(KnownMetrics) {
		t.Errorf("unexpected extra metrics: got %d, want %d", len(m), len(KnownMetrics))
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"monotonic up", []float64{100, 110, 120}, 0},
		{"single dip", []float64{100, 80, 120}, -0.2},
		{"deepest after new peak", []float64{100, 120, 90, 130, 91}, -0.3},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equity := make([]domain.EquityPoint, len(tt.values))
			for i, v := range tt.values {
				equity[i] = domain.EquityPoint{TotalValue: v}
			}
			if got := maxDrawdown(equity); !approxEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAvgTradeDuration(t *testing.T) {
	hour := int64(3_600_000)
	trades := []*domain.Trade{
		{TimestampMs: 0, Side: domain.SideBuy},
		{TimestampMs: 2 * hour, Side: domain.SideSell},
		{TimestampMs: 3 * hour, Side: domain.SideBuy},
		{TimestampMs: 7 * hour, Side: domain.SideSell},
	}

	got := avgTradeDuration(trades)
	if got == nil {
		t.Fatal("expected a duration for two round trips")
	}
	if !approxEqual(*got, 3) {
		t.Errorf("expected mean of 2h and 4h = 3h, got %v", *got)
	}

	if d := avgTradeDuration(trades[:1]); d != nil {
		t.Errorf("open position only: expected nil, got %v", *d)
	}
}
