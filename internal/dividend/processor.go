// Package dividend applies discrete cash dividend events to a position
// exactly once per ex-dividend date, regardless of intraday resolution.
package dividend

import (
	"rebalance-lab/internal/domain"
)

// Processor credits cash dividends to a position. Its applied-date set is
// scoped to one simulation run: create a fresh Processor per run and never
// share one across concurrently executing runs.
type Processor struct {
	// byDate indexes pending dividends by UTC calendar-date key.
	byDate map[string]*domain.Dividend
	// applied records ex-date keys already credited this run.
	applied map[string]struct{}
}

// NewProcessor creates a per-run processor over the given dividend events.
// Multiple dividends on the same ex-date are summed into one credit.
func NewProcessor(dividends []*domain.Dividend) *Processor {
	byDate := make(map[string]*domain.Dividend, len(dividends))
	for _, d := range dividends {
		key := d.DateKey()
		if existing, ok := byDate[key]; ok {
			merged := *existing
			merged.AmountPerShare += d.AmountPerShare
			byDate[key] = &merged
			continue
		}
		byDate[key] = d
	}
	return &Processor{
		byDate:  byDate,
		applied: make(map[string]struct{}, len(byDate)),
	}
}

// Apply credits the dividend for the bar's date, if one exists and has not
// been credited yet this run. The credit uses the quantity held at the
// moment of the first tick on the ex-date. Returns the cash credited,
// zero for no-op ticks.
func (p *Processor) Apply(state *domain.PositionState, bar *domain.PriceBar) float64 {
	key := bar.DateKey()
	div, ok := p.byDate[key]
	if !ok {
		return 0
	}
	if _, done := p.applied[key]; done {
		return 0
	}
	p.applied[key] = struct{}{}

	credit := state.Quantity * div.AmountPerShare
	state.Cash += credit
	return credit
}

// AppliedCount returns how many ex-dates have been credited this run.
func (p *Processor) AppliedCount() int {
	return len(p.applied)
}
