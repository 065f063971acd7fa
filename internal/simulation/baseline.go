package simulation

import (
	"rebalance-lab/internal/domain"
)

// buyHoldReturn computes the fractional return of investing all initial cash
// at the first bar and holding through the last. Fractional shares are
// allowed: the baseline measures the market, not execution constraints.
//
// Dividends are credited by the same calendar-date-key rule the tick loop
// uses: an ex-date counts only when a bar exists on that UTC day, so both
// paths see the identical dividend set.
func buyHoldReturn(bars []*domain.PriceBar, dividends []*domain.Dividend, initialCash float64) float64 {
	if len(bars) == 0 || initialCash <= 0 {
		return 0
	}

	entry := bars[0].EffectivePrice()
	if entry <= 0 {
		return 0
	}
	shares := initialCash / entry

	barDays := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		barDays[b.DateKey()] = struct{}{}
	}

	var divCash float64
	for _, d := range dividends {
		if _, ok := barDays[d.DateKey()]; ok {
			divCash += shares * d.AmountPerShare
		}
	}

	final := shares*bars[len(bars)-1].EffectivePrice() + divCash
	return (final - initialCash) / initialCash
}
