// Package reconciliation compares the engine's local order/position state
// against the broker's, surfaces discrepancies in a Report, and optionally
// applies resolutions for orphaned or mismatched orders.
package reconciliation

import (
	"time"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

// Severity classifies a discrepancy.
type Severity string

const (
	Info Severity = "Info"
	Warning Severity = "Warning"
	Critical Severity = "Critical"
)

// OrphanKind names why a local/broker order pairing is inconsistent.
type OrphanKind string

const (
	UnknownInBroker OrphanKind = "UnknownInBroker"
	MissingInBroker OrphanKind = "MissingInBroker"
	StateMismatch OrphanKind = "StateMismatch"
	Zombie OrphanKind = "Zombie"
)

// Orphan is one order-level discrepancy.
type Orphan struct {
	Kind OrphanKind
	Severity Severity
	BrokerOrderID values.BrokerId
	LocalOrderID values.OrderId
	LocalStatus order.Status
	BrokerStatus string
	Age time.Duration
	Detail string
}

// PositionDiscrepancyKind names the position-compare outcome.
type PositionDiscrepancyKind string

const (
	NoLocal PositionDiscrepancyKind = "NoLocal"
	NoBroker PositionDiscrepancyKind = "NoBroker"
	QtyMismatch PositionDiscrepancyKind = "QtyMismatch"
	PriceMismatch PositionDiscrepancyKind = "PriceMismatch"
)

// PositionDiscrepancy is one symbol-level position-compare finding.
type PositionDiscrepancy struct {
	Kind PositionDiscrepancyKind
	Severity Severity
	Symbol values.Symbol
	LocalQty, BrokerQty values.Quantity
	Detail string
}

// Report is reconcile()'s output.
type Report struct {
	Orphans []Orphan
	PositionDiscrepancies []PositionDiscrepancy
	StartedAt, FinishedAt time.Time
	OrdersCompared, PositionsCompared int
}

func (r Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func (r Report) HasCritical() bool {
	for _, o := range r.Orphans {
		if o.Severity == Critical {
			return true
		}
	}
	for _, p := range r.PositionDiscrepancies {
		if p.Severity == Critical {
			return true
		}
	}
	return false
}
