// Package simulation replays a prefetched price/dividend series through the
// tick evaluation cycle and dividend processor, producing a deterministic
// trade log and the inputs the metrics calculator needs.
package simulation

import (
	"errors"
	"fmt"
	"sort"

	"rebalance-lab/internal/dividend"
	"rebalance-lab/internal/domain"
	"rebalance-lab/internal/strategy"
)

// Runner errors.
var (
	ErrEmptySeries    = errors.New("price series is empty")
	ErrBadInitialCash = errors.New("initial cash must be > 0")
)

// Input holds everything one simulation run needs. The series is injected,
// never fetched here: the single prefetch is the caller's responsibility.
type Input struct {
	Ticker      string
	Bars        []*domain.PriceBar
	Dividends   []*domain.Dividend
	InitialCash float64
	Config      *domain.EffectiveConfig

	// IntervalMinutes is the bar resolution of the series, used to derive
	// the annualization factor for metrics.
	IntervalMinutes int

	// Lightweight drops the per-tick evaluation trace, retaining only the
	// trade log and equity snapshots the metrics calculator needs. Used by
	// the optimizer's inner loop.
	Lightweight bool
}

// Run executes one simulation over the injected series. Bars are replayed
// in chronological order; each tick passes through the dividend processor
// and the tick evaluation cycle exactly once. The run owns its dividend
// dedup state, which makes concurrent runs safe.
func Run(input *Input) (*domain.SimulationResult, error) {
	if len(input.Bars) == 0 {
		return nil, ErrEmptySeries
	}
	if input.InitialCash <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrBadInitialCash, input.InitialCash)
	}
	if err := input.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	bars := sortedBars(input.Bars)
	proc := dividend.NewProcessor(input.Dividends)
	state := domain.NewPositionState(input.InitialCash)

	result := &domain.SimulationResult{
		Ticker:         input.Ticker,
		InitialCash:    input.InitialCash,
		Equity:         make([]domain.EquityPoint, 0, len(bars)),
		PeriodsPerYear: periodsPerYear(input.IntervalMinutes),
	}
	if !input.Lightweight {
		result.TickResults = make([]*domain.TickResult, 0, len(bars))
	}

	for _, bar := range bars {
		result.DividendsReceived += proc.Apply(state, bar)

		tick := strategy.EvaluateTick(state, bar, input.Config)
		state = tick.StateAfter

		if tick.Executed() {
			side := domain.SideBuy
			if tick.Action == domain.ActionSell {
				side = domain.SideSell
			}
			result.TradeLog = append(result.TradeLog, &domain.Trade{
				TimestampMs: bar.TimestampMs,
				Side:        side,
				Quantity:    tick.QtyTraded,
				Price:       bar.EffectivePrice(),
				Commission:  tick.Commission,
				CashAfter:   state.Cash,
				SharesAfter: state.Quantity,
			})
			result.TotalCommissions += tick.Commission
		}

		result.Equity = append(result.Equity, domain.EquityPoint{
			TimestampMs: bar.TimestampMs,
			TotalValue:  state.TotalValue(bar.EffectivePrice()),
		})

		if !input.Lightweight {
			result.TickResults = append(result.TickResults, tick)
		}
	}

	last := bars[len(bars)-1]
	result.FinalState = state
	result.FinalTotalValue = state.TotalValue(last.EffectivePrice())
	result.AlgorithmPnL = result.FinalTotalValue - input.InitialCash
	result.BuyHoldReturn = buyHoldReturn(bars, input.Dividends, input.InitialCash)

	return result, nil
}

// sortedBars returns a copy of the series ordered by timestamp ASC.
// Replay order must not depend on provider ordering quirks.
func sortedBars(bars []*domain.PriceBar) []*domain.PriceBar {
	sorted := make([]*domain.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})
	return sorted
}

// periodsPerYear derives the annualization factor from the bar interval:
// 252 trading days, 390 regular-session minutes per day for intraday bars.
func periodsPerYear(intervalMinutes int) float64 {
	if intervalMinutes <= 0 || intervalMinutes >= domain.Interval1Day {
		return 252
	}
	return 252 * 390 / float64(intervalMinutes)
}
