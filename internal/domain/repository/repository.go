// Package repository defines the persistence-agnostic Order repository
// port and a Postgres-backed implementation wired to
// github.com/jackc/pgx/v5. The interface is deliberately narrow:
// save/find/status queries only, so that whatever concrete storage
// engine backs it is free to choose its own transaction model.
package repository

import (
	"context"
	"errors"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

var ErrNotFound = errors.New("order not found")

// OrderRepository is the port the Submit/Cancel use cases and the
// reconciliation engine depend on. Save writes one order's whole current
// state in a single guarded step; the repository does not serialize a
// caller's own load-mutate-save sequence on one OrderId.
type OrderRepository interface {
	// Save persists the order's current state. Implementations must not
	// perform broker I/O while holding whatever lock guards the write.
	Save(ctx context.Context, o *order.Order) error

	FindByID(ctx context.Context, id values.OrderId) (*order.Order, error)

	// FindByBrokerID looks an order up by its broker-assigned id, keyed on
	// a secondary index.
	FindByBrokerID(ctx context.Context, brokerID values.BrokerId) (*order.Order, error)

	// FindByStatus scans a secondary index on status, used both by
	// reconciliation (active-order set) and the safety supervisor
	// (open-order set for mass cancel).
	FindByStatus(ctx context.Context, statuses ...order.Status) ([]*order.Order, error)

	// FindActive returns every order not yet in a terminal status —
	// the local side of the reconciliation engine's order index.
	FindActive(ctx context.Context) ([]*order.Order, error)
}
