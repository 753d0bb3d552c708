package repository

import (
	"context"
	"sync"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

// MemoryRepository is an in-process OrderRepository guarded by a single
// RWMutex: reads take the read lock and run in parallel, writes (Save)
// take the exclusive lock and perform no I/O while held. It backs unit
// tests and can stand in for the Postgres-backed implementation in
// Backtest mode, where durable persistence is unnecessary.
type MemoryRepository struct {
	mu sync.RWMutex
	byID map[values.OrderId]*order.Order
	byBrokerID map[values.BrokerId]values.OrderId
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[values.OrderId]*order.Order),
		byBrokerID: make(map[values.BrokerId]values.OrderId),
	}
}

func (r *MemoryRepository) Save(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[o.ID()] = o
	if !o.BrokerID().IsEmpty() {
		r.byBrokerID[o.BrokerID()] = o.ID()
	}
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id values.OrderId) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepository) FindByBrokerID(_ context.Context, brokerID values.BrokerId) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byBrokerID[brokerID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) FindByStatus(_ context.Context, statuses ...order.Status) ([]*order.Order, error) {
	want := make(map[order.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*order.Order
	for _, o := range r.byID {
		if want[o.Status()] {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *MemoryRepository) FindActive(ctx context.Context) ([]*order.Order, error) {
	return r.FindByStatus(ctx,
		order.New, order.PendingNew, order.Accepted, order.PartiallyFilled, order.PendingCancel)
}
