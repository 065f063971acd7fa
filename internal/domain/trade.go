package domain

// Side represents the direction of an executed trade.
type Side string

// Side constants.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Action represents the outcome of one tick evaluation.
type Action string

// Action constants.
const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Hold reason codes emitted by the tick evaluation cycle.
const (
	ReasonAfterHours  = "after_hours"
	ReasonBootstrap   = "bootstrap"
	ReasonNoTrigger   = "no_trigger"
	ReasonMinNotional = "min_notional"
	ReasonTriggerUp   = "trigger_up"
	ReasonTriggerDown = "trigger_down"
)

// Trade represents one executed buy or sell. Appended to the trade log on
// each executed action, never mutated.
type Trade struct {
	TimestampMs int64   // execution timestamp (bar timestamp)
	Side        Side    // BUY or SELL
	Quantity    float64 // shares traded, > 0
	Price       float64 // execution price, > 0
	Commission  float64 // quantity * price * commission_rate
	CashAfter   float64 // cash after the trade settled
	SharesAfter float64 // shares held after the trade settled
}

// TickResult is the output of one tick evaluation cycle.
type TickResult struct {
	Action      Action
	QtyTraded   float64
	Commission  float64
	Reason      string
	StateBefore *PositionState
	StateAfter  *PositionState
}

// Executed reports whether the tick produced a trade.
func (r *TickResult) Executed() bool {
	return r.Action == ActionBuy || r.Action == ActionSell
}
