// Package eventbus implements in-process fan-out of domain.Order events
// to subscribers — persistence, the streaming publisher, audit logging
// — using a mutex-guarded subscriber map with one buffered channel per
// subscriber.
package eventbus

import (
	"sync"

	"github.com/epic1st/execengine/internal/domain/order"
)

// Subscriber receives every event published to the bus. Publish never
// blocks on a slow subscriber for longer than its channel's buffer
// allows — a full subscriber channel drops the event rather than stall
// the publisher.
type Subscriber struct {
	ch chan order.Event
}

func (s *Subscriber) Events() <-chan order.Event { return s.ch }

// Bus is an in-process fan-out hub. Safe for concurrent Publish and
// Subscribe/Unsubscribe.
type Bus struct {
	mu sync.RWMutex
	subscribers map[*Subscriber]bool
	bufferSize int
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		subscribers: make(map[*Subscriber]bool),
		bufferSize: bufferSize,
	}
}

func (b *Bus) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan order.Event, b.bufferSize)}
	b.mu.Lock()
	b.subscribers[s] = true
	b.mu.Unlock()
	return s
}

func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s]; ok {
		delete(b.subscribers, s)
		close(s.ch)
	}
}

// Publish fans an event out to every current subscriber.
func (b *Bus) Publish(events ...order.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range events {
		for s := range b.subscribers {
			select {
			case s.ch <- e:
			default:
				// Subscriber channel full — drop rather than block the publisher.
			}
		}
	}
}

// PublishFrom drains o's pending events and publishes them, the idiom
// every use case should call immediately after mutating an Order
// aggregate.
func (b *Bus) PublishFrom(o *order.Order) {
	b.Publish(o.DrainEvents()...)
}
