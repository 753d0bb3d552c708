package order

import (
	"time"

	"github.com/epic1st/execengine/internal/domain/values"
)

// FillReport is a single execution report applied to an order.
type FillReport struct {
	FillID values.FillId
	Quantity values.Quantity
	Price values.Money
	Time values.Timestamp
	Venue string
}

// PartialFillState tracks CumQty/LeavesQty/AvgPx under the FIX
// invariants. It is owned by the Order aggregate for the Order's entire
// lifetime and is never shared across orders. Fills are append-only;
// AvgPx is recomputed on each append using the quantity-weighted mean.
type PartialFillState struct {
	orderID values.OrderId
	orderQty values.Quantity
	cumQty values.Quantity
	leavesQty values.Quantity
	avgPx values.Money
	fills []FillReport
}

// NewPartialFillState initializes accounting for a freshly created order:
// CumQty=0, LeavesQty=OrderQty.
func NewPartialFillState(orderID values.OrderId, orderQty values.Quantity) *PartialFillState {
	return &PartialFillState{
		orderID: orderID,
		orderQty: orderQty,
		cumQty: values.ZeroQuantity(),
		leavesQty: orderQty,
		avgPx: values.ZeroMoney(),
		fills: nil,
	}
}

// Reconstitute rebuilds a PartialFillState from persisted fields without
// replaying fills (the fills themselves are still carried for audit / P2
// verification, but CumQty/LeavesQty/AvgPx come directly from storage).
func ReconstitutePartialFillState(
	orderID values.OrderId,
	orderQty, cumQty, leavesQty values.Quantity,
	avgPx values.Money,
	fills []FillReport,
) *PartialFillState {
	return &PartialFillState{
		orderID: orderID,
		orderQty: orderQty,
		cumQty: cumQty,
		leavesQty: leavesQty,
		avgPx: avgPx,
		fills: fills,
	}
}

func (p *PartialFillState) OrderQty() values.Quantity { return p.orderQty }
func (p *PartialFillState) CumQty() values.Quantity { return p.cumQty }
func (p *PartialFillState) LeavesQty() values.Quantity { return p.leavesQty }
func (p *PartialFillState) AvgPx() values.Money { return p.avgPx }
func (p *PartialFillState) Fills() []FillReport {
	out := make([]FillReport, len(p.fills))
	copy(out, p.fills)
	return out
}

// Apply appends a fill and updates CumQty/LeavesQty/AvgPx atomically. It
// rejects zero-quantity fills and fills that would overfill the order (I3);
// an overfill is never partially accepted.
func (p *PartialFillState) Apply(fillID values.FillId, qty values.Quantity, price values.Money, at time.Time, venue string) error {
	if !qty.IsPositive() {
		return &FixInvariantViolationError{Invariant: "I3", State: "fill quantity must be positive"}
	}
	if qty.GreaterThan(p.leavesQty) {
		return &FixInvariantViolationError{
			Invariant: "I3",
			State: "fill quantity " + qty.String() + " exceeds LeavesQty " + p.leavesQty.String(),
		}
	}

	newCum := p.cumQty.Add(qty)

	// AvgPx_k = (AvgPx_{k-1}*CumQty_{k-1} + p_k*q_k) / (CumQty_{k-1}+q_k)
	weightedPrior := p.avgPx.Decimal().Mul(p.cumQty.Decimal())
	weightedNew := price.Decimal().Mul(qty.Decimal())
	newAvgPxDecimal := weightedPrior.Add(weightedNew).Div(newCum.Decimal())

	p.cumQty = newCum
	p.leavesQty = p.orderQty.Sub(newCum)
	p.avgPx = values.NewMoney(newAvgPxDecimal)
	p.fills = append(p.fills, FillReport{
		FillID: fillID,
		Quantity: qty,
		Price: price,
		Time: values.NewTimestamp(at),
		Venue: venue,
	})

	return nil
}

// IsComplete reports whether LeavesQty has reached zero.
func (p *PartialFillState) IsComplete() bool {
	return p.leavesQty.IsZero()
}
