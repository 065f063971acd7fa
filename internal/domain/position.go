package domain

// PositionState is the mutable cash/quantity/anchor snapshot one simulation
// run operates on. It is created at run start from initial cash, mutated once
// per executed trade, and discarded at run end.
type PositionState struct {
	Quantity    float64  // shares held, never negative
	Cash        float64  // free cash, never negative
	AnchorPrice *float64 // reference price for trigger deviation; nil until bootstrapped
	AvgCost     float64  // volume-weighted average entry price of the open quantity
}

// NewPositionState creates a flat position holding only cash.
func NewPositionState(initialCash float64) *PositionState {
	return &PositionState{Cash: initialCash}
}

// TotalValue returns cash plus the position marked at the given price.
func (p *PositionState) TotalValue(price float64) float64 {
	return p.Cash + p.Quantity*price
}

// StockPct returns the percentage of total value held in the asset at the
// given price, in [0, 100]. A zero total value reports 0.
func (p *PositionState) StockPct(price float64) float64 {
	total := p.TotalValue(price)
	if total <= 0 {
		return 0
	}
	return p.Quantity * price / total * 100
}

// Clone returns a deep copy of the state.
func (p *PositionState) Clone() *PositionState {
	c := *p
	if p.AnchorPrice != nil {
		anchor := *p.AnchorPrice
		c.AnchorPrice = &anchor
	}
	return &c
}
