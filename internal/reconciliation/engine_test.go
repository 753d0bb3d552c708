package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/repository"
	"github.com/epic1st/execengine/internal/domain/values"
)

func sym(t *testing.T, s string) values.Symbol {
	t.Helper()
	v, err := values.NewSymbol(s)
	require.NoError(t, err)
	return v
}

func newAcceptedOrder(t *testing.T, brokerID string) *order.Order {
	t.Helper()
	o, err := order.New(order.CreateCommand{
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		OrderType: order.Market,
		Quantity: values.MustQuantity("10"),
		TIF: order.Day,
		Purpose: order.Entry,
	})
	require.NoError(t, err)
	require.NoError(t, o.Accept(values.BrokerId(brokerID)))
	return o
}

func TestReconcile_UnknownInBrokerSkippedWithinProtectionWindow(t *testing.T) {
	repo := repository.NewMemoryRepository()
	engine := NewEngine(repo, &TradingHalt{})
	now := time.Now()

	state := BrokerState{Orders: []BrokerOrderSnapshot{
		{BrokerOrderID: "b-1", Symbol: sym(t, "AAPL"), RawStatus: "accepted", SubmittedAt: now.Add(-1 * time.Second)},
	}}

	report, err := engine.Reconcile(context.Background(), state, nil, nil, DefaultConfig(), now)
	require.NoError(t, err)
	require.Empty(t, report.Orphans)
}

func TestReconcile_UnknownInBrokerFlaggedPastProtectionWindow(t *testing.T) {
	repo := repository.NewMemoryRepository()
	engine := NewEngine(repo, &TradingHalt{})
	now := time.Now()

	state := BrokerState{Orders: []BrokerOrderSnapshot{
		{BrokerOrderID: "b-1", Symbol: sym(t, "AAPL"), RawStatus: "accepted", SubmittedAt: now.Add(-time.Hour)},
	}}

	report, err := engine.Reconcile(context.Background(), state, nil, nil, DefaultConfig(), now)
	require.NoError(t, err)
	require.Len(t, report.Orphans, 1)
	require.Equal(t, UnknownInBroker, report.Orphans[0].Kind)
	require.Equal(t, Warning, report.Orphans[0].Severity)
}

func TestReconcile_MissingInBrokerFlagged(t *testing.T) {
	repo := repository.NewMemoryRepository()
	halt := &TradingHalt{}
	engine := NewEngine(repo, halt)
	now := time.Now()

	o := newAcceptedOrder(t, "b-missing")

	report, err := engine.Reconcile(context.Background(), BrokerState{}, []*order.Order{o}, nil, DefaultConfig(), now)
	require.NoError(t, err)
	require.Len(t, report.Orphans, 1)
	require.Equal(t, MissingInBroker, report.Orphans[0].Kind)
}

func TestReconcile_StateMismatchFilledVsLocalActiveIsCritical(t *testing.T) {
	repo := repository.NewMemoryRepository()
	halt := &TradingHalt{}
	engine := NewEngine(repo, halt)
	now := time.Now()

	o := newAcceptedOrder(t, "b-1")
	state := BrokerState{Orders: []BrokerOrderSnapshot{
		{BrokerOrderID: "b-1", Symbol: sym(t, "AAPL"), RawStatus: "filled", SubmittedAt: now.Add(-time.Hour)},
	}}

	report, err := engine.Reconcile(context.Background(), state, []*order.Order{o}, nil, DefaultConfig(), now)
	require.NoError(t, err)
	require.Len(t, report.Orphans, 1)
	require.Equal(t, StateMismatch, report.Orphans[0].Kind)
	require.Equal(t, Critical, report.Orphans[0].Severity)

	halted, _ := halt.IsHalted()
	require.True(t, halted)
}

func TestReconcile_PositionQtyMismatchSeverity(t *testing.T) {
	repo := repository.NewMemoryRepository()
	engine := NewEngine(repo, &TradingHalt{})
	now := time.Now()

	state := BrokerState{Positions: []BrokerPositionSnapshot{
		{Symbol: sym(t, "AAPL"), Quantity: values.MustQuantity("40"), AvgPrice: values.MustMoney("150")},
	}}
	localPositions := []LocalPosition{{Symbol: sym(t, "AAPL"), Quantity: values.MustQuantity("100")}}

	report, err := engine.Reconcile(context.Background(), state, nil, localPositions, DefaultConfig(), now)
	require.NoError(t, err)
	require.Len(t, report.PositionDiscrepancies, 1)
	require.Equal(t, QtyMismatch, report.PositionDiscrepancies[0].Kind)
	require.Equal(t, Critical, report.PositionDiscrepancies[0].Severity)
}

func TestEngine_IsDue(t *testing.T) {
	repo := repository.NewMemoryRepository()
	engine := NewEngine(repo, &TradingHalt{})
	now := time.Now()
	cfg := DefaultConfig()
	cfg.PeriodicInterval = time.Minute

	require.True(t, engine.IsDue(now, cfg))
	_, err := engine.Reconcile(context.Background(), BrokerState{}, nil, nil, cfg, now)
	require.NoError(t, err)

	require.False(t, engine.IsDue(now.Add(10*time.Second), cfg))
	require.True(t, engine.IsDue(now.Add(2*time.Minute), cfg))
}

func TestTradingHalt_SetAndResume(t *testing.T) {
	h := &TradingHalt{}
	halted, _ := h.IsHalted()
	require.False(t, halted)

	h.Set("test")
	halted, reason := h.IsHalted()
	require.True(t, halted)
	require.Equal(t, "test", reason)

	h.Resume()
	halted, _ = h.IsHalted()
	require.False(t, halted)
}
