package order

import (
	"time"

	"github.com/epic1st/execengine/internal/domain/values"
)

// Event is the common interface implemented by every OrderEvent. Events
// reference their Order by OrderId only — no back-pointer to the aggregate
// — so they remain plain values safe to hand to an EventPublisher port
//.
type Event interface {
	OrderID() values.OrderId
	OccurredAt() values.Timestamp
	eventName() string
}

type base struct {
	orderID values.OrderId
	at values.Timestamp
}

func (b base) OrderID() values.OrderId { return b.orderID }
func (b base) OccurredAt() values.Timestamp { return b.at }

func newBase(id values.OrderId, t time.Time) base {
	return base{orderID: id, at: values.NewTimestamp(t)}
}

// Submitted is emitted by new().
type Submitted struct {
	base
	Symbol values.Symbol
	Side values.Side
	OrderType OrderType
	Quantity values.Quantity
	LimitPrice *values.Money
	StopPrice *values.Money
	TIF TimeInForce
	Purpose Purpose
}

func (Submitted) eventName() string { return "OrderSubmitted" }

// Accepted is emitted by accept().
type Accepted struct {
	base
	BrokerID values.BrokerId
}

func (Accepted) eventName() string { return "OrderAccepted" }

// PartiallyFilled is emitted once per applied fill, whether or not that
// fill happens to complete the order (see Filled below, emitted in
// addition on completion).
type PartiallyFilled struct {
	base
	FillID values.FillId
	Quantity values.Quantity
	Price values.Money
	CumQty values.Quantity
	LeavesQty values.Quantity
	AvgPx values.Money
}

func (PartiallyFilled) eventName() string { return "OrderPartiallyFilled" }

// Filled is emitted in addition to the terminal PartiallyFilled event when
// LeavesQty reaches zero.
type Filled struct {
	base
	CumQty values.Quantity
	AvgPx values.Money
}

func (Filled) eventName() string { return "OrderFilled" }

// Canceled is emitted by cancel().
type Canceled struct {
	base
	Reason CancelReason
	CumQtyAtCancel values.Quantity
}

func (Canceled) eventName() string { return "OrderCanceled" }

// Expired is emitted by expire(), distinct from Canceled so that a
// locally expired order's wire status matches a broker-reported
// "expired" status rather than colliding with "canceled".
type Expired struct {
	base
	CumQtyAtExpiry values.Quantity
}

func (Expired) eventName() string { return "OrderExpired" }

// Rejected is emitted by reject().
type Rejected struct {
	base
	Reason RejectReason
}

func (Rejected) eventName() string { return "OrderRejected" }

// EventName returns an event's wire name (e.g. "OrderFilled"), for
// publishers outside this package that need a stable string without a
// type switch over every concrete event type.
func EventName(e Event) string { return e.eventName() }
