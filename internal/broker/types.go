// Package broker implements the single seam between the execution
// engine and an upstream trading venue: a Transport port abstracting
// venue-specific request shapes, with resilience wired in from the
// resilience package rather than left to the caller.
package broker

import (
	"time"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

// Environment is the adapter's configured mode. Every submission must
// match it.
type Environment string

const (
	Backtest Environment = "Backtest"
	Paper Environment = "Paper"
	Live Environment = "Live"
)

// SubmitRequest is a single- or multi-leg order submission.
type SubmitRequest struct {
	Environment Environment
	ClientOrderID string // idempotency key, reused across retries 
	LocalOrderID string // Order aggregate id, used to look up/persist ClientOrderID in an IdempotencyStore across restarts
	Symbol values.Symbol
	Side values.Side
	OrderType order.OrderType
	Quantity values.Quantity
	LimitPrice *values.Money
	StopPrice *values.Money
	TIF order.TimeInForce
	Strategy order.StrategyFamily
	Legs []LegRequest
	NetLimitPrice *values.Money
	BracketStop *BracketLeg
	BracketTarget *BracketLeg
}

// LegRequest is one ratio-quantity leg of a multi-leg submission.
type LegRequest struct {
	InstrumentID values.Symbol
	Side values.Side
	RatioQty int
}

// BracketLeg attaches a StopLoss or TakeProfit child order to an Entry
// parent.
type BracketLeg struct {
	TriggerPrice values.Money
	LimitPrice *values.Money
}

// SubmitResult is the broker's acknowledgement of a submission.
type SubmitResult struct {
	BrokerOrderID values.BrokerId
	Status order.Status
	SubmittedAt time.Time
}

// OrderStatus is a point-in-time broker-side view of an order, used by
// the reconciliation engine to compare against local state.
type OrderStatus struct {
	BrokerOrderID values.BrokerId
	Symbol values.Symbol
	Status order.Status
	CumQty values.Quantity
	LeavesQty values.Quantity
	AvgPx values.Money
	UpdatedAt time.Time
}

// Position is a broker-side net position in one instrument.
type Position struct {
	Symbol values.Symbol
	Quantity values.Quantity // non-negative size; short positions are not represented (HTTPTransport.GetPositions returns an error for a negative quantity)
	AvgPrice values.Money
	UnrealizedPL values.Money
}

// Account is broker-side account/margin state, consumed by the risk
// validator's PortfolioSnapshot.
type Account struct {
	Equity values.Money
	Cash values.Money
	BuyingPower values.Money
	MarginUsed values.Money
	RemainingBuyingPowerRatio float64
}

// Bar is one OHLCV bar.
type Bar struct {
	Symbol values.Symbol
	Time time.Time
	Open, High, Low, Close values.Money
	Volume values.Quantity
}

// Quote is a top-of-book snapshot.
type Quote struct {
	Symbol values.Symbol
	BidPrice, AskPrice values.Money
	BidSize, AskSize values.Quantity
	Time time.Time
}

// OptionSnapshot is a single option contract's quote plus greeks, used by
// the risk validator's options checks.
type OptionSnapshot struct {
	Symbol values.Symbol
	Underlying values.Symbol
	Quote Quote
	Delta, Gamma, Vega, Theta float64
}

// HealthStatus reports adapter reachability.
type HealthStatus struct {
	Healthy bool
	Detail string
	CheckedAt time.Time
}
