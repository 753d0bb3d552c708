package order

import "github.com/epic1st/execengine/internal/domain/values"

// OrderType enumerates the supported order types. Limit and StopLimit orders
// must carry a limit price (I1); Stop and StopLimit must carry a stop price
// (I2).
type OrderType string

const (
	Market OrderType = "Market"
	Limit OrderType = "Limit"
	Stop OrderType = "Stop"
	StopLimit OrderType = "StopLimit"
)

// TimeInForce is the order's validity constraint.
type TimeInForce string

const (
	Day TimeInForce = "Day"
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

// Purpose records the strategic role of an order within a position's
// lifecycle. Bracket orders attach StopLoss/TakeProfit legs to an Entry
// or Exit parent using this same attribute.
type Purpose string

const (
	Entry Purpose = "Entry"
	Exit Purpose = "Exit"
	StopLoss Purpose = "StopLoss"
	TakeProfit Purpose = "TakeProfit"
)

// Status is the Order aggregate's lifecycle state machine.
type Status string

const (
	New Status = "New"
	PendingNew Status = "PendingNew"
	Accepted Status = "Accepted"
	PartiallyFilled Status = "PartiallyFilled"
	PendingCancel Status = "PendingCancel"
	Filled Status = "Filled"
	Canceled Status = "Canceled"
	Rejected Status = "Rejected"
	Expired Status = "Expired"
)

// IsTerminal reports whether the status is a sink state (I5).
func (s Status) IsTerminal() bool {
	switch s {
	case Filled, Canceled, Rejected, Expired:
		return true
	default:
		return false
	}
}

// CanFill reports whether a fill may be applied while in this status.
func (s Status) CanFill() bool {
	return s == Accepted || s == PartiallyFilled
}

// IsCancelable reports whether cancel() is permitted from this status.
func (s Status) IsCancelable() bool {
	switch s {
	case New, Accepted, PartiallyFilled, PendingCancel:
		return true
	default:
		return false
	}
}

// CancelReason explains why an order was canceled.
type CancelReason string

const (
	CancelReasonUser CancelReason = "UserRequested"
	CancelReasonEndOfDay CancelReason = "EndOfDay"
	CancelReasonRiskHalt CancelReason = "RiskHalt"
	CancelReasonSafetySupervisor CancelReason = "SafetySupervisorMassCancel"
	CancelReasonReconciliation CancelReason = "ReconciliationMarkFailed"
)

// RejectReason explains why an order or a reject transition occurred.
type RejectReason string

// OrderLine is one leg of a (possibly multi-leg) order, owned exclusively
// by its parent Order (I6).
type OrderLine struct {
	Sequence int
	InstrumentID values.Symbol
	Side values.Side
	Quantity values.Quantity
	Status Status
}

// StrategyFamily classifies multi-leg option strategies routed as a single
// atomic broker order.
type StrategyFamily string

const (
	SingleLeg StrategyFamily = ""
	VerticalSpread StrategyFamily = "VerticalSpread"
	IronCondor StrategyFamily = "IronCondor"
	Straddle StrategyFamily = "Straddle"
	Strangle StrategyFamily = "Strangle"
	CalendarSpread StrategyFamily = "CalendarSpread"
)

// IsMultiLeg reports whether this strategy family is routed as a single
// multi-leg order rather than independent single-leg orders.
func (f StrategyFamily) IsMultiLeg() bool {
	switch f {
	case VerticalSpread, IronCondor, Straddle, Strangle, CalendarSpread:
		return true
	default:
		return false
	}
}
