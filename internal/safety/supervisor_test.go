package safety

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/epic1st/execengine/internal/broker"
	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/repository"
	"github.com/epic1st/execengine/internal/domain/values"
)

var errCancelRejected = errors.New("broker rejected cancel")

type fakeHeartbeater struct {
	mu sync.Mutex
	alive bool
}

func (f *fakeHeartbeater) setAlive(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = v
}

func (f *fakeHeartbeater) HealthCheck(ctx context.Context) (broker.HealthStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return broker.HealthStatus{Healthy: f.alive}, nil
}

type fakeCanceler struct {
	mu sync.Mutex
	calls []values.BrokerId
	failFor values.BrokerId
}

func (f *fakeCanceler) CancelOrder(ctx context.Context, brokerOrderID values.BrokerId) error {
	f.mu.Lock()
	f.calls = append(f.calls, brokerOrderID)
	f.mu.Unlock()
	if f.failFor != "" && brokerOrderID == f.failFor {
		return errCancelRejected
	}
	return nil
}

func (f *fakeCanceler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func sym(t *testing.T, s string) values.Symbol {
	t.Helper()
	v, err := values.NewSymbol(s)
	require.NoError(t, err)
	return v
}

func acceptedOrder(t *testing.T, brokerID string, tif order.TimeInForce) *order.Order {
	t.Helper()
	o, err := order.New(order.CreateCommand{
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		OrderType: order.Market,
		Quantity: values.MustQuantity("10"),
		TIF: tif,
		Purpose: order.Entry,
	})
	require.NoError(t, err)
	require.NoError(t, o.Accept(values.BrokerId(brokerID)))
	return o
}

func TestMassCancel_CancelsAllOpenOrdersByDefault(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-1", order.Day)))
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-2", order.GTC)))

	hb := &fakeHeartbeater{}
	canceler := &fakeCanceler{}
	sup := NewSupervisor(hb, canceler, repo, DefaultConfig())

	require.NoError(t, sup.MassCancel(ctx))
	require.Equal(t, 2, canceler.callCount())
}

func TestMassCancel_ExcludesGTCWhenPolicyExclude(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-1", order.Day)))
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-2", order.GTC)))

	hb := &fakeHeartbeater{}
	canceler := &fakeCanceler{}
	cfg := DefaultConfig()
	cfg.GTCPolicy = Exclude
	sup := NewSupervisor(hb, canceler, repo, cfg)

	require.NoError(t, sup.MassCancel(ctx))
	require.Equal(t, 1, canceler.callCount())
}

func TestSupervisor_TriggersMassCancelAfterGracePeriod(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-1", order.Day)))

	hb := &fakeHeartbeater{alive: true}
	canceler := &fakeCanceler{}
	cfg := Config{
		HeartbeatInterval: 5 * time.Millisecond,
		HeartbeatTimeout: 10 * time.Millisecond,
		GracePeriod: 10 * time.Millisecond,
		GTCPolicy: Include,
	}
	sup := NewSupervisor(hb, canceler, repo, cfg)
	sup.lastSeen = time.Now().Add(-time.Hour) // Run resets lastSeen on start; the cancel comes from the loss outlasting timeout and grace
	hb.setAlive(false)

	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = sup.Run(runCtx)

	require.GreaterOrEqual(t, canceler.callCount(), 1)
}

// A broker rejection on one order must not stop MassCancel from attempting
// every other open order — the opposite of errgroup.WithContext's
// cancel-on-first-error behavior.
func TestMassCancel_OneFailureDoesNotAbortSiblings(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-1", order.Day)))
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-2", order.Day)))
	require.NoError(t, repo.Save(ctx, acceptedOrder(t, "b-3", order.Day)))

	hb := &fakeHeartbeater{}
	canceler := &fakeCanceler{failFor: values.BrokerId("b-2")}
	sup := NewSupervisor(hb, canceler, repo, DefaultConfig())

	err := sup.MassCancel(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, errCancelRejected)
	require.Equal(t, 3, canceler.callCount())
}
