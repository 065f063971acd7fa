// Package metrics computes performance statistics from simulation results.
// All computations are pure; degenerate runs yield nil metrics rather than
// errors, flagged invalid downstream.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"rebalance-lab/internal/domain"
)

// Metric name constants, used by optimization criteria, result maps and
// heatmap lookups.
const (
	MetricTotalReturn      = "total_return"
	MetricSharpeRatio      = "sharpe_ratio"
	MetricSortinoRatio     = "sortino_ratio"
	MetricCalmarRatio      = "calmar_ratio"
	MetricMaxDrawdown      = "max_drawdown"
	MetricVolatility       = "volatility"
	MetricWinRate          = "win_rate"
	MetricProfitFactor     = "profit_factor"
	MetricTradeCount       = "trade_count"
	MetricAvgTradeDuration = "avg_trade_duration"
	MetricTotalCommissions = "total_commissions"
	MetricBuyHoldReturn    = "buy_hold_return"
)

// KnownMetrics lists every metric name Compute produces.
var KnownMetrics = []string{
	MetricTotalReturn, MetricSharpeRatio, MetricSortinoRatio, MetricCalmarRatio,
	MetricMaxDrawdown, MetricVolatility, MetricWinRate, MetricProfitFactor,
	MetricTradeCount, MetricAvgTradeDuration, MetricTotalCommissions,
	MetricBuyHoldReturn,
}

// Compute derives the full metric set from a simulation result. Ratio
// metrics that cannot be computed (zero-trade or zero-variance runs) are
// nil entries in the returned map.
func Compute(result *domain.SimulationResult) map[string]*float64 {
	m := make(map[string]*float64, len(KnownMetrics))

	totalReturn := 0.0
	if result.InitialCash > 0 {
		totalReturn = (result.FinalTotalValue - result.InitialCash) / result.InitialCash
	}
	m[MetricTotalReturn] = ptr(totalReturn)
	m[MetricTradeCount] = ptr(float64(result.TradeCount()))
	m[MetricTotalCommissions] = ptr(result.TotalCommissions)
	m[MetricBuyHoldReturn] = ptr(result.BuyHoldReturn)
	m[MetricAvgTradeDuration] = avgTradeDuration(result.TradeLog)

	returns := periodicReturns(result.Equity)
	m[MetricMaxDrawdown] = ptr(maxDrawdown(result.Equity))
	m[MetricCalmarRatio] = calmarRatio(totalReturn, *m[MetricMaxDrawdown])

	if len(returns) < 2 {
		m[MetricSharpeRatio] = nil
		m[MetricSortinoRatio] = nil
		m[MetricVolatility] = nil
		m[MetricWinRate] = nil
		m[MetricProfitFactor] = nil
		return m
	}

	mean := stat.Mean(returns, nil)
	stddev := stat.StdDev(returns, nil)
	annualize := math.Sqrt(result.PeriodsPerYear)

	m[MetricVolatility] = ptr(stddev * annualize)
	m[MetricSharpeRatio] = ratio(mean, stddev, annualize)
	m[MetricSortinoRatio] = ratio(mean, downsideDeviation(returns), annualize)
	m[MetricWinRate] = ptr(winRate(returns))
	m[MetricProfitFactor] = profitFactor(returns)

	return m
}

// periodicReturns derives simple returns from consecutive total-value
// snapshots. Non-positive predecessors are skipped.
func periodicReturns(equity []domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].TotalValue
		if prev <= 0 {
			continue
		}
		returns = append(returns, equity[i].TotalValue/prev-1)
	}
	return returns
}

// maxDrawdown returns the worst peak-to-trough decline as a non-positive
// fraction: min over t of (value_t - running_max_t) / running_max_t.
func maxDrawdown(equity []domain.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	runningMax := equity[0].TotalValue
	worst := 0.0
	for _, p := range equity {
		if p.TotalValue > runningMax {
			runningMax = p.TotalValue
		}
		if runningMax > 0 {
			dd := (p.TotalValue - runningMax) / runningMax
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// calmarRatio is total return over absolute max drawdown; nil for
// drawdown-free runs.
func calmarRatio(totalReturn, maxDD float64) *float64 {
	if maxDD == 0 {
		return nil
	}
	return ptr(totalReturn / math.Abs(maxDD))
}

// ratio returns num/denom scaled by the annualization factor, nil when the
// denominator is zero or non-finite.
func ratio(num, denom, annualize float64) *float64 {
	if denom == 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		return nil
	}
	v := num / denom * annualize
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return ptr(v)
}

// downsideDeviation is the root mean square of negative returns only.
func downsideDeviation(returns []float64) float64 {
	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	return math.Sqrt(sumSq / float64(len(returns)))
}

// winRate is the fraction of periods with positive return.
func winRate(returns []float64) float64 {
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// profitFactor is gross gains over gross losses across periods; nil for
// loss-free runs.
func profitFactor(returns []float64) *float64 {
	var gains, losses float64
	for _, r := range returns {
		if r > 0 {
			gains += r
		} else {
			losses -= r
		}
	}
	if losses == 0 {
		return nil
	}
	return ptr(gains / losses)
}

// avgTradeDuration pairs each buy with the next sell and returns the mean
// holding duration in hours; nil when no round trip completed.
func avgTradeDuration(trades []*domain.Trade) *float64 {
	var totalMs, pairs int64
	var openBuyMs int64 = -1
	for _, t := range trades {
		switch t.Side {
		case domain.SideBuy:
			if openBuyMs < 0 {
				openBuyMs = t.TimestampMs
			}
		case domain.SideSell:
			if openBuyMs >= 0 {
				totalMs += t.TimestampMs - openBuyMs
				pairs++
				openBuyMs = -1
			}
		}
	}
	if pairs == 0 {
		return nil
	}
	hours := float64(totalMs) / float64(pairs) / 3_600_000
	return ptr(hours)
}

func ptr(v float64) *float64 {
	return &v
}
