// Package safety implements a heartbeat monitor that mass-cancels open
// orders when the broker connection is lost past a grace period: record
// last-seen, periodically compare against a timeout, act when it trips.
package safety

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/epic1st/execengine/internal/broker"
	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/repository"
	"github.com/epic1st/execengine/internal/domain/values"
)

// GTCPolicy governs whether GTC orders are included in a mass cancel.
type GTCPolicy string

const (
	Include GTCPolicy = "Include" // default: safer, cancel everything
	Exclude GTCPolicy = "Exclude"
)

// Config parameterizes the supervisor.
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout time.Duration
	GracePeriod time.Duration
	GTCPolicy GTCPolicy
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 2 * time.Second,
		HeartbeatTimeout: 10 * time.Second,
		GracePeriod: 15 * time.Second,
		GTCPolicy: Include,
	}
}

// Heartbeater is the minimal broker call the supervisor needs to prove
// liveness — satisfied by *broker.Adapter's HealthCheck.
type Heartbeater interface {
	HealthCheck(ctx context.Context) (broker.HealthStatus, error)
}

// CancelPort is what the supervisor calls to mass-cancel — satisfied by
// *broker.Adapter's CancelOrder.
type CancelPort interface {
	CancelOrder(ctx context.Context, brokerOrderID values.BrokerId) error
}

// Supervisor tracks last-seen broker liveness and triggers a mass cancel
// once heartbeat loss outlasts the grace period.
type Supervisor struct {
	heartbeater Heartbeater
	canceler CancelPort
	repo repository.OrderRepository
	cfg Config

	mu sync.Mutex
	lastSeen time.Time
	lossObserved bool
	lossAt time.Time
	canceled bool
}

func NewSupervisor(heartbeater Heartbeater, canceler CancelPort, repo repository.OrderRepository, cfg Config) *Supervisor {
	return &Supervisor{
		heartbeater: heartbeater,
		canceler: canceler,
		repo: repo,
		cfg: cfg,
		lastSeen: time.Time{},
	}
}

// Run blocks, polling HealthCheck at HeartbeatInterval and triggering
// MassCancel when heartbeat loss outlasts GracePeriod, until ctx is
// canceled. Disabled in Backtest mode — the caller simply never starts
// it there.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Supervisor) poll(ctx context.Context) {
	now := time.Now()
	status, err := s.heartbeater.HealthCheck(ctx)
	alive := err == nil && status.Healthy

	s.mu.Lock()
	if alive {
		s.lastSeen = now
		s.lossObserved = false
		s.canceled = false
		s.mu.Unlock()
		return
	}
	if !s.lossObserved {
		s.lossObserved = true
		s.lossAt = now
	}
	lossDuration := now.Sub(s.lossAt)
	sinceLastSeen := now.Sub(s.lastSeen)
	shouldCancel := !s.canceled && sinceLastSeen >= s.cfg.HeartbeatTimeout && lossDuration >= s.cfg.GracePeriod
	if shouldCancel {
		s.canceled = true
	}
	s.mu.Unlock()

	if shouldCancel {
		_ = s.MassCancel(ctx)
	}
}

// MassCancel cancels every open order, honoring GTCPolicy. Cancels are
// dispatched concurrently via a plain WaitGroup rather than
// errgroup.WithContext: one order's broker rejection must not cancel
// the context passed to its siblings' still-in-flight HTTP calls, so
// every order gets an attempt regardless of how the others finish.
func (s *Supervisor) MassCancel(ctx context.Context) error {
	openOrders, err := s.repo.FindActive(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	for _, o := range openOrders {
		o := o
		if s.cfg.GTCPolicy == Exclude && o.TIF() == order.GTC {
			continue
		}
		if o.BrokerID().IsEmpty() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.canceler.CancelOrder(ctx, o.BrokerID()); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// LastSeen reports when the broker was last confirmed alive.
func (s *Supervisor) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
