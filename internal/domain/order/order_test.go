package order

import (
	"errors"
	"testing"

	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/stretchr/testify/require"
)

func mustSymbol(t *testing.T, s string) values.Symbol {
	t.Helper()
	sym, err := values.NewSymbol(s)
	require.NoError(t, err)
	return sym
}

func newLimitOrder(t *testing.T, qty, px string) *Order {
	t.Helper()
	q := values.MustQuantity(qty)
	p := values.MustMoney(px)
	o, err := New(CreateCommand{
		Symbol: mustSymbol(t, "AAPL"),
		Side: values.Buy,
		OrderType: Limit,
		Quantity: q,
		LimitPrice: &p,
		TIF: Day,
		Purpose: Entry,
	})
	require.NoError(t, err)
	return o
}

// Scenario 1: partial fill then completion.
func TestScenario_PartialFillThenCompletion(t *testing.T) {
	o := newLimitOrder(t, "100", "150")
	require.NoError(t, o.Accept(values.BrokerId("brokerX")))

	require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity("30"), values.MustMoney("149.00"), "NASDAQ"))
	require.Equal(t, PartiallyFilled, o.Status())

	require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity("50"), values.MustMoney("150.00"), "NASDAQ"))
	require.Equal(t, PartiallyFilled, o.Status())

	require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity("20"), values.MustMoney("151.00"), "NASDAQ"))
	require.Equal(t, Filled, o.Status())

	require.Equal(t, "100", o.CumQty().String())
	require.Equal(t, "0", o.LeavesQty().String())
	// (30*149.00 + 50*150.00 + 20*151.00) / 100 = 149.90
	require.Equal(t, "149.90", o.AvgPx().Round(2).String())

	events := o.DrainEvents()
	require.Len(t, events, 6)
	wantNames := []string{"OrderSubmitted", "OrderAccepted", "OrderPartiallyFilled", "OrderPartiallyFilled", "OrderPartiallyFilled", "OrderFilled"}
	for i, e := range events {
		require.Equal(t, wantNames[i], e.(interface{ eventName() string }).eventName())
	}
}

// Scenario 2: overfill rejection.
func TestScenario_OverfillRejection(t *testing.T) {
	q := values.MustQuantity("100")
	o, err := New(CreateCommand{
		Symbol: mustSymbol(t, "AAPL"),
		Side: values.Buy,
		OrderType: Market,
		Quantity: q,
		TIF: Day,
		Purpose: Entry,
	})
	require.NoError(t, err)
	require.NoError(t, o.Accept(values.BrokerId("brokerX")))

	err = o.ApplyFill(values.NewFillId(), values.MustQuantity("150"), values.MustMoney("150"), "NASDAQ")
	require.Error(t, err)
	var fixErr *FixInvariantViolationError
	require.True(t, errors.As(err, &fixErr))

	require.Equal(t, "0", o.CumQty().String())
	require.Equal(t, Accepted, o.Status())
}

func TestNew_RequiresLimitPriceForLimitOrders(t *testing.T) {
	_, err := New(CreateCommand{
		Symbol: mustSymbol(t, "AAPL"),
		Side: values.Buy,
		OrderType: Limit,
		Quantity: values.MustQuantity("1"),
		TIF: Day,
		Purpose: Entry,
	})
	require.Error(t, err)
	var invalid *InvalidParametersError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, "limit_price", invalid.Field)
}

func TestNew_RequiresStopPriceForStopOrders(t *testing.T) {
	_, err := New(CreateCommand{
		Symbol: mustSymbol(t, "AAPL"),
		Side: values.Sell,
		OrderType: Stop,
		Quantity: values.MustQuantity("1"),
		TIF: Day,
		Purpose: Exit,
	})
	require.Error(t, err)
	var invalid *InvalidParametersError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, "stop_price", invalid.Field)
}

func TestNew_MultiLegRequiresAtLeastTwoLegs(t *testing.T) {
	_, err := New(CreateCommand{
		Symbol: mustSymbol(t, "AAPL"),
		Side: values.Buy,
		OrderType: Limit,
		Quantity: values.MustQuantity("1"),
		LimitPrice: func() *values.Money { m := values.MustMoney("1"); return &m }(),
		TIF: Day,
		Purpose: Entry,
		Strategy: VerticalSpread,
		Legs: []LegCommand{{InstrumentID: mustSymbol(t, "AAPL"), Side: values.Buy, Quantity: values.MustQuantity("1")}},
	})
	require.Error(t, err)
}

// P3 — terminal sink: once terminal, no subsequent operation changes status.
func TestProperty_TerminalSink(t *testing.T) {
	o := newLimitOrder(t, "10", "100")
	require.NoError(t, o.Accept(values.BrokerId("b")))
	require.NoError(t, o.Cancel(CancelReasonUser))
	require.Equal(t, Canceled, o.Status())

	require.Error(t, o.Accept(values.BrokerId("b2")))
	require.Equal(t, Canceled, o.Status())

	require.Error(t, o.ApplyFill(values.NewFillId(), values.MustQuantity("1"), values.MustMoney("100"), "X"))
	require.Equal(t, Canceled, o.Status())

	require.Error(t, o.Cancel(CancelReasonUser))
	require.Equal(t, Canceled, o.Status())

	require.Error(t, o.Expire())
	require.Equal(t, Canceled, o.Status())
}

func TestExpire_TransitionsLiveOrderToExpired(t *testing.T) {
	o := newLimitOrder(t, "10", "100")
	require.NoError(t, o.Accept(values.BrokerId("b")))
	require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity("4"), values.MustMoney("100"), "X"))

	require.NoError(t, o.Expire())
	require.Equal(t, Expired, o.Status())
	require.True(t, o.Status().IsTerminal())

	events := o.DrainEvents()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, "OrderExpired", last.(interface{ eventName() string }).eventName())
	expired, ok := last.(Expired)
	require.True(t, ok)
	require.Equal(t, "4", expired.CumQtyAtExpiry.String())

	for _, leg := range o.Legs() {
		require.True(t, leg.Status.IsTerminal())
	}
}

// P1 — FIX invariant holds after any sequence of valid operations.
func TestProperty_FixInvariantHolds(t *testing.T) {
	o := newLimitOrder(t, "100", "10")
	require.NoError(t, o.Accept(values.BrokerId("b")))

	fills := []string{"10", "20", "5", "65"}
	for _, q := range fills {
		require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity(q), values.MustMoney("10"), "X"))
		require.True(t, o.CumQty().Add(o.LeavesQty()).Cmp(o.Quantity()) == 0)
	}
	require.Equal(t, Filled, o.Status())
}

// P2 — AvgPx law: AvgPx * CumQty = sum(p_k * q_k).
func TestProperty_AvgPxLaw(t *testing.T) {
	o := newLimitOrder(t, "50", "10")
	require.NoError(t, o.Accept(values.BrokerId("b")))

	type fill struct{ qty, px string }
	fills := []fill{{"10", "9.50"}, {"15", "10.25"}, {"25", "10.75"}}

	total := values.ZeroMoney()
	for _, f := range fills {
		require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity(f.qty), values.MustMoney(f.px), "X"))
		weighted := values.MustQuantity(f.qty).Decimal().Mul(values.MustMoney(f.px).Decimal())
		total = values.NewMoney(total.Decimal().Add(weighted))
	}

	got := o.AvgPx().Decimal().Mul(o.CumQty().Decimal())
	require.True(t, got.Equal(total.Decimal()))
}

// P5 — reconstitution fidelity.
func TestProperty_ReconstitutionFidelity(t *testing.T) {
	o := newLimitOrder(t, "100", "10")
	require.NoError(t, o.Accept(values.BrokerId("brokerY")))
	require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity("40"), values.MustMoney("10.05"), "X"))
	o.DrainEvents()

	rebuilt := Reconstitute(ReconstituteParams{
		OrderID: o.ID(),
		BrokerID: o.BrokerID(),
		Symbol: o.Symbol(),
		Side: o.Side(),
		OrderType: o.OrderType(),
		Quantity: o.Quantity(),
		LimitPrice: o.LimitPrice(),
		StopPrice: o.StopPrice(),
		TIF: o.TIF(),
		Purpose: o.Purpose(),
		Status: o.Status(),
		Legs: o.Legs(),
		Strategy: o.Strategy(),
		Fill: ReconstitutePartialFillState(
			o.ID(), o.Quantity(), o.CumQty(), o.LeavesQty(), o.AvgPx(), o.Fills(),
		),
		CreatedAt: o.CreatedAt(),
		UpdatedAt: o.UpdatedAt(),
	})

	require.Equal(t, o.ID(), rebuilt.ID())
	require.Equal(t, o.Status(), rebuilt.Status())
	require.Equal(t, o.CumQty().String(), rebuilt.CumQty().String())
	require.Equal(t, o.LeavesQty().String(), rebuilt.LeavesQty().String())
	require.Equal(t, o.AvgPx().String(), rebuilt.AvgPx().String())
	require.Empty(t, rebuilt.DrainEvents())
}

func TestReject_OnlyFromNewOrPendingNew(t *testing.T) {
	o := newLimitOrder(t, "10", "10")
	require.NoError(t, o.Accept(values.BrokerId("b")))
	err := o.Reject("too risky")
	require.Error(t, err)
	var invalid *InvalidStateTransitionError
	require.True(t, errors.As(err, &invalid))
}

func TestCancel_PreservesCumQty(t *testing.T) {
	o := newLimitOrder(t, "100", "10")
	require.NoError(t, o.Accept(values.BrokerId("b")))
	require.NoError(t, o.ApplyFill(values.NewFillId(), values.MustQuantity("30"), values.MustMoney("10"), "X"))
	require.NoError(t, o.Cancel(CancelReasonUser))
	require.Equal(t, "30", o.CumQty().String())
	require.Equal(t, Canceled, o.Status())
}
