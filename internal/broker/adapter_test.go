package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/epic1st/execengine/internal/resilience"
)

type fakeTransport struct {
	submitCalls int
	submitFn func(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}

func (f *fakeTransport) SubmitOrder(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	f.submitCalls++
	if f.submitFn != nil {
		return f.submitFn(ctx, req)
	}
	return SubmitResult{BrokerOrderID: values.BrokerId("b-1"), Status: order.PendingNew, SubmittedAt: time.Now()}, nil
}
func (f *fakeTransport) GetOrderStatus(ctx context.Context, id values.BrokerId) (OrderStatus, error) {
	return OrderStatus{BrokerOrderID: id}, nil
}
func (f *fakeTransport) CancelOrder(ctx context.Context, id values.BrokerId) error { return nil }
func (f *fakeTransport) GetAccount(ctx context.Context) (Account, error) { return Account{}, nil }
func (f *fakeTransport) GetPositions(ctx context.Context) ([]Position, error) { return nil, nil }
func (f *fakeTransport) GetBars(ctx context.Context, symbols []values.Symbol, tf string, start, end time.Time, limit int) ([]Bar, error) {
	return nil, nil
}
func (f *fakeTransport) GetQuotes(ctx context.Context, symbols []values.Symbol) ([]Quote, error) {
	return nil, nil
}
func (f *fakeTransport) GetOptionSnapshots(ctx context.Context, underlying values.Symbol) ([]OptionSnapshot, error) {
	return nil, nil
}
func (f *fakeTransport) HealthCheck(ctx context.Context) (HealthStatus, error) {
	return HealthStatus{Healthy: true}, nil
}

func testAdapter(t *testing.T, transport Transport) *Adapter {
	t.Helper()
	cfg := AdapterConfig{
		Environment: Paper,
		Backoff: resilience.BackoffConfig{Initial: time.Millisecond, Multiplier: 2, MaxInterval: 5 * time.Millisecond, MaxAttempts: 3, Jitter: 0},
		Breaker: resilience.BreakerConfig{WindowSize: 10, MinimumCalls: 5, FailureRateThreshold: 0.5, WaitDurationInOpen: 10 * time.Millisecond, PermittedCallsInHalfOpen: 1},
	}
	return NewAdapter(transport, cfg)
}

func sym(t *testing.T, s string) values.Symbol {
	t.Helper()
	v, err := values.NewSymbol(s)
	require.NoError(t, err)
	return v
}

func TestAdapter_EnvironmentMismatchNeverForwarded(t *testing.T) {
	ft := &fakeTransport{}
	a := testAdapter(t, ft)

	_, err := a.SubmitOrders(context.Background(), SubmitRequest{
		Environment: Live,
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		OrderType: order.Market,
		Quantity: values.MustQuantity("10"),
		TIF: order.Day,
	})

	require.Error(t, err)
	var mismatch *EnvironmentMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 0, ft.submitCalls)
}

func TestAdapter_SingleLegSubmitAssignsIdempotentClientOrderID(t *testing.T) {
	var seenID string
	ft := &fakeTransport{submitFn: func(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
		seenID = req.ClientOrderID
		return SubmitResult{BrokerOrderID: values.BrokerId("b-1")}, nil
	}}
	a := testAdapter(t, ft)

	result, err := a.SubmitOrders(context.Background(), SubmitRequest{
		Environment: Paper,
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		OrderType: order.Market,
		Quantity: values.MustQuantity("10"),
		TIF: order.Day,
	})

	require.NoError(t, err)
	require.Equal(t, values.BrokerId("b-1"), result.BrokerOrderID)
	require.Equal(t, 1, ft.submitCalls)
	require.NotEmpty(t, seenID)
}

func TestAdapter_MultiLegRejectsTooManyLegs(t *testing.T) {
	ft := &fakeTransport{}
	a := testAdapter(t, ft)

	net := values.MustMoney("1.50")
	legs := make([]LegRequest, 5)
	for i := range legs {
		legs[i] = LegRequest{InstrumentID: sym(t, "AAPL"), Side: values.Buy, RatioQty: 1}
	}

	_, err := a.SubmitOrders(context.Background(), SubmitRequest{
		Environment: Paper,
		Symbol: sym(t, "AAPL"),
		OrderType: order.Limit,
		TIF: order.Day,
		Strategy: order.VerticalSpread,
		Legs: legs,
		NetLimitPrice: &net,
	})

	require.Error(t, err)
	var mlErr *MultiLegValidationError
	require.ErrorAs(t, err, &mlErr)
	require.Equal(t, 0, ft.submitCalls)
}

func TestAdapter_MultiLegRejectsNonUnitGCD(t *testing.T) {
	ft := &fakeTransport{}
	a := testAdapter(t, ft)

	net := values.MustMoney("1.50")
	_, err := a.SubmitOrders(context.Background(), SubmitRequest{
		Environment: Paper,
		Symbol: sym(t, "AAPL"),
		OrderType: order.Limit,
		TIF: order.Day,
		Strategy: order.VerticalSpread,
		Legs: []LegRequest{
			{InstrumentID: sym(t, "AAPL_190P"), Side: values.Buy, RatioQty: 2},
			{InstrumentID: sym(t, "AAPL_185P"), Side: values.Sell, RatioQty: 4},
		},
		NetLimitPrice: &net,
	})

	require.Error(t, err)
	var mlErr *MultiLegValidationError
	require.ErrorAs(t, err, &mlErr)
}

func TestAdapter_MultiLegAcceptsValidVerticalSpread(t *testing.T) {
	ft := &fakeTransport{}
	a := testAdapter(t, ft)

	net := values.MustMoney("1.50")
	_, err := a.SubmitOrders(context.Background(), SubmitRequest{
		Environment: Paper,
		Symbol: sym(t, "AAPL"),
		OrderType: order.Limit,
		TIF: order.Day,
		Strategy: order.VerticalSpread,
		Legs: []LegRequest{
			{InstrumentID: sym(t, "AAPL_190P"), Side: values.Buy, RatioQty: 10},
			{InstrumentID: sym(t, "AAPL_185P"), Side: values.Sell, RatioQty: 10},
		},
		NetLimitPrice: &net,
	})

	require.NoError(t, err)
	require.Equal(t, 1, ft.submitCalls)
}

func TestAdapter_RetriesRetryableTransportError(t *testing.T) {
	calls := 0
	ft := &fakeTransport{submitFn: func(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
		calls++
		if calls < 2 {
			return SubmitResult{}, &transportError{status: 503, body: "unavailable"}
		}
		return SubmitResult{BrokerOrderID: values.BrokerId("b-2")}, nil
	}}
	a := testAdapter(t, ft)

	result, err := a.SubmitOrders(context.Background(), SubmitRequest{
		Environment: Paper,
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		OrderType: order.Market,
		Quantity: values.MustQuantity("10"),
		TIF: order.Day,
	})

	require.NoError(t, err)
	require.Equal(t, values.BrokerId("b-2"), result.BrokerOrderID)
	require.Equal(t, 2, calls)
}

type fakeIdempotencyStore struct {
	values map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string]string{}}
}

func (s *fakeIdempotencyStore) Get(ctx context.Context, orderID string) (string, bool, error) {
	v, ok := s.values[orderID]
	return v, ok, nil
}

func (s *fakeIdempotencyStore) Set(ctx context.Context, orderID, clientOrderID string, ttl time.Duration) error {
	s.values[orderID] = clientOrderID
	return nil
}

func TestAdapter_ReusesClientOrderIDForSameLocalOrderAcrossCalls(t *testing.T) {
	store := newFakeIdempotencyStore()
	var seen []string
	ft := &fakeTransport{submitFn: func(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
		seen = append(seen, req.ClientOrderID)
		return SubmitResult{BrokerOrderID: values.BrokerId("b-1")}, nil
	}}

	cfg := AdapterConfig{
		Environment: Paper,
		Backoff: resilience.BackoffConfig{Initial: time.Millisecond, Multiplier: 2, MaxInterval: 5 * time.Millisecond, MaxAttempts: 3, Jitter: 0},
		Breaker: resilience.BreakerConfig{WindowSize: 10, MinimumCalls: 5, FailureRateThreshold: 0.5, WaitDurationInOpen: 10 * time.Millisecond, PermittedCallsInHalfOpen: 1},
		Idempotency: store,
	}
	a := NewAdapter(ft, cfg)

	req := SubmitRequest{
		Environment: Paper,
		LocalOrderID: "local-order-1",
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		OrderType: order.Market,
		Quantity: values.MustQuantity("10"),
		TIF: order.Day,
	}

	_, err := a.SubmitOrders(context.Background(), req)
	require.NoError(t, err)
	_, err = a.SubmitOrders(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.Equal(t, seen[0], seen[1])
}

func TestAdapter_NonRetryableTransportErrorFailsImmediately(t *testing.T) {
	ft := &fakeTransport{submitFn: func(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
		return SubmitResult{}, &transportError{status: 400, body: "bad request"}
	}}
	a := testAdapter(t, ft)

	_, err := a.SubmitOrders(context.Background(), SubmitRequest{
		Environment: Paper,
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		OrderType: order.Market,
		Quantity: values.MustQuantity("10"),
		TIF: order.Day,
	})

	require.Error(t, err)
	require.Equal(t, 1, ft.submitCalls)
}
