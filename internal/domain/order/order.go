// Package order implements the Order aggregate: a FIX-semantics
// lifecycle state machine with partial-fill accounting. The Order is
// the exclusive owner of its lines and fill state; all mutation goes
// through its methods, which emit pending events rather than performing
// I/O or publishing directly.
package order

import (
	"time"

	"github.com/epic1st/execengine/internal/domain/values"
)

// Order is the aggregate root.
type Order struct {
	id values.OrderId
	brokerID values.BrokerId
	symbol values.Symbol
	side values.Side
	orderType OrderType
	quantity values.Quantity
	limitPrice *values.Money
	stopPrice *values.Money
	tif TimeInForce
	purpose Purpose
	status Status
	strategy StrategyFamily
	legs []OrderLine
	fill *PartialFillState
	createdAt values.Timestamp
	updatedAt values.Timestamp

	pending []Event
}

// New validates the command (I1, I2, I6) and creates an Order in status
// New, emitting Submitted.
func New(cmd CreateCommand) (*Order, error) {
	if cmd.Symbol == "" {
		return nil, &InvalidParametersError{Field: "symbol", Message: "must not be empty"}
	}
	if !cmd.Side.Valid() {
		return nil, &InvalidParametersError{Field: "side", Message: "must be Buy or Sell"}
	}
	if !cmd.Quantity.IsPositive() {
		return nil, &InvalidParametersError{Field: "quantity", Message: "must be > 0"}
	}
	switch cmd.OrderType {
	case Market, Limit, Stop, StopLimit:
	default:
		return nil, &InvalidParametersError{Field: "order_type", Message: "unknown order type"}
	}
	// I1
	if cmd.OrderType == Limit || cmd.OrderType == StopLimit {
		if cmd.LimitPrice == nil || !cmd.LimitPrice.IsPositive() {
			return nil, &InvalidParametersError{Field: "limit_price", Message: "required and must be > 0 for Limit/StopLimit orders"}
		}
	}
	// I2
	if cmd.OrderType == Stop || cmd.OrderType == StopLimit {
		if cmd.StopPrice == nil || !cmd.StopPrice.IsPositive() {
			return nil, &InvalidParametersError{Field: "stop_price", Message: "required and must be > 0 for Stop/StopLimit orders"}
		}
	}
	switch cmd.TIF {
	case Day, GTC, IOC, FOK:
	default:
		return nil, &InvalidParametersError{Field: "time_in_force", Message: "unknown time in force"}
	}
	switch cmd.Purpose {
	case Entry, Exit, StopLoss, TakeProfit:
	default:
		return nil, &InvalidParametersError{Field: "purpose", Message: "unknown purpose"}
	}
	// I6
	if cmd.Strategy.IsMultiLeg() && len(cmd.Legs) < 2 {
		return nil, &InvalidParametersError{Field: "legs", Message: "multi-leg strategies require at least 2 legs"}
	}

	id := values.NewOrderId()
	now := time.Now()

	legs := make([]OrderLine, 0, len(cmd.Legs))
	for i, l := range cmd.Legs {
		if !l.Side.Valid() {
			return nil, &InvalidParametersError{Field: "legs.side", Message: "must be Buy or Sell"}
		}
		if !l.Quantity.IsPositive() {
			return nil, &InvalidParametersError{Field: "legs.quantity", Message: "must be > 0"}
		}
		legs = append(legs, OrderLine{
			Sequence: i + 1,
			InstrumentID: l.InstrumentID,
			Side: l.Side,
			Quantity: l.Quantity,
			Status: New,
		})
	}

	o := &Order{
		id: id,
		symbol: cmd.Symbol,
		side: cmd.Side,
		orderType: cmd.OrderType,
		quantity: cmd.Quantity,
		limitPrice: cmd.LimitPrice,
		stopPrice: cmd.StopPrice,
		tif: cmd.TIF,
		purpose: cmd.Purpose,
		status: New,
		strategy: cmd.Strategy,
		legs: legs,
		fill: NewPartialFillState(id, cmd.Quantity),
		createdAt: values.NewTimestamp(now),
		updatedAt: values.NewTimestamp(now),
	}

	o.emit(Submitted{
		base: newBase(id, now),
		Symbol: cmd.Symbol,
		Side: cmd.Side,
		OrderType: cmd.OrderType,
		Quantity: cmd.Quantity,
		LimitPrice: cmd.LimitPrice,
		StopPrice: cmd.StopPrice,
		TIF: cmd.TIF,
		Purpose: cmd.Purpose,
	})

	return o, nil
}

// Reconstitute rebuilds an Order from persisted state without emitting any
// events (P5).
func Reconstitute(p ReconstituteParams) *Order {
	fill := p.Fill
	if fill == nil {
		fill = NewPartialFillState(p.OrderID, p.Quantity)
	}
	return &Order{
		id: p.OrderID,
		brokerID: p.BrokerID,
		symbol: p.Symbol,
		side: p.Side,
		orderType: p.OrderType,
		quantity: p.Quantity,
		limitPrice: p.LimitPrice,
		stopPrice: p.StopPrice,
		tif: p.TIF,
		purpose: p.Purpose,
		status: p.Status,
		strategy: p.Strategy,
		legs: append([]OrderLine(nil), p.Legs...),
		fill: fill,
		createdAt: p.CreatedAt,
		updatedAt: p.UpdatedAt,
	}
}

// Accept transitions {New,PendingNew}->Accepted, recording the broker id
// and propagating to legs.
func (o *Order) Accept(brokerID values.BrokerId) error {
	if o.status != New && o.status != PendingNew {
		return &InvalidStateTransitionError{From: o.status, To: Accepted, Reason: "accept only valid from New or PendingNew"}
	}
	now := time.Now()
	o.brokerID = brokerID
	o.status = Accepted
	for i := range o.legs {
		o.legs[i].Status = Accepted
	}
	o.updatedAt = values.NewTimestamp(now)
	o.emit(Accepted{base: newBase(o.id, now), BrokerID: brokerID})
	return nil
}

// ApplyFill appends a fill to the partial-fill accumulator and reclassifies
// status. Permitted only when status.CanFill(). Emits PartiallyFilled, plus
// Filled when LeavesQty reaches zero.
func (o *Order) ApplyFill(fillID values.FillId, qty values.Quantity, price values.Money, venue string) error {
	if !o.status.CanFill() {
		return &CannotFillError{Status: o.status}
	}

	now := time.Now()
	if err := o.fill.Apply(fillID, qty, price, now, venue); err != nil {
		return err
	}

	if o.fill.IsComplete() {
		o.status = Filled
	} else {
		o.status = PartiallyFilled
	}
	o.updatedAt = values.NewTimestamp(now)

	o.emit(PartiallyFilled{
		base: newBase(o.id, now),
		FillID: fillID,
		Quantity: qty,
		Price: price,
		CumQty: o.fill.CumQty(),
		LeavesQty: o.fill.LeavesQty(),
		AvgPx: o.fill.AvgPx(),
	})

	if o.status == Filled {
		for i := range o.legs {
			o.legs[i].Status = Filled
		}
		o.emit(Filled{base: newBase(o.id, now), CumQty: o.fill.CumQty(), AvgPx: o.fill.AvgPx()})
	}

	return nil
}

// Cancel transitions a cancelable order to Canceled, preserving CumQty.
func (o *Order) Cancel(reason CancelReason) error {
	if !o.status.IsCancelable() {
		return &CannotCancelError{Status: o.status}
	}
	now := time.Now()
	o.status = Canceled
	for i := range o.legs {
		o.legs[i].Status = Canceled
	}
	o.updatedAt = values.NewTimestamp(now)
	o.emit(Canceled{base: newBase(o.id, now), Reason: reason, CumQtyAtCancel: o.fill.CumQty()})
	return nil
}

// Reject transitions {New,PendingNew}->Rejected. Rejecting an accepted
// order is not permitted — cancel is the correct verb.
func (o *Order) Reject(reason RejectReason) error {
	if o.status != New && o.status != PendingNew {
		return &InvalidStateTransitionError{From: o.status, To: Rejected, Reason: "reject only valid from New or PendingNew; use cancel afterward"}
	}
	now := time.Now()
	o.status = Rejected
	for i := range o.legs {
		o.legs[i].Status = Rejected
	}
	o.updatedAt = values.NewTimestamp(now)
	o.emit(Rejected{base: newBase(o.id, now), Reason: reason})
	return nil
}

// Expire transitions a non-terminal order to the distinct Expired
// terminal status (I5). Disallowed from terminal states.
func (o *Order) Expire() error {
	if o.status.IsTerminal() {
		return &InvalidStateTransitionError{From: o.status, To: Expired, Reason: "cannot expire a terminal order"}
	}
	now := time.Now()
	o.status = Expired
	for i := range o.legs {
		if !o.legs[i].Status.IsTerminal() {
			o.legs[i].Status = Expired
		}
	}
	o.updatedAt = values.NewTimestamp(now)
	o.emit(Expired{base: newBase(o.id, now), CumQtyAtExpiry: o.fill.CumQty()})
	return nil
}

// DrainEvents returns and clears the pending event queue, in the order
// they were emitted (P4).
func (o *Order) DrainEvents() []Event {
	events := o.pending
	o.pending = nil
	return events
}

func (o *Order) emit(e Event) {
	o.pending = append(o.pending, e)
}

// Accessors — the aggregate is otherwise opaque so callers cannot mutate
// state except through the methods above.

func (o *Order) ID() values.OrderId { return o.id }
func (o *Order) BrokerID() values.BrokerId { return o.brokerID }
func (o *Order) Symbol() values.Symbol { return o.symbol }
func (o *Order) Side() values.Side { return o.side }
func (o *Order) OrderType() OrderType { return o.orderType }
func (o *Order) Quantity() values.Quantity { return o.quantity }
func (o *Order) LimitPrice() *values.Money { return o.limitPrice }
func (o *Order) StopPrice() *values.Money { return o.stopPrice }
func (o *Order) TIF() TimeInForce { return o.tif }
func (o *Order) Purpose() Purpose { return o.purpose }
func (o *Order) Status() Status { return o.status }
func (o *Order) Strategy() StrategyFamily { return o.strategy }
func (o *Order) CreatedAt() values.Timestamp { return o.createdAt }
func (o *Order) UpdatedAt() values.Timestamp { return o.updatedAt }
func (o *Order) CumQty() values.Quantity { return o.fill.CumQty() }
func (o *Order) LeavesQty() values.Quantity { return o.fill.LeavesQty() }
func (o *Order) AvgPx() values.Money { return o.fill.AvgPx() }
func (o *Order) Fills() []FillReport { return o.fill.Fills() }
func (o *Order) PartialFillState() *PartialFillState { return o.fill }

func (o *Order) Legs() []OrderLine {
	out := make([]OrderLine, len(o.legs))
	copy(out, o.legs)
	return out
}
