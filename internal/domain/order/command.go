package order

import "github.com/epic1st/execengine/internal/domain/values"

// CreateCommand carries the caller-supplied intent for new(). Validation of
// every field here is what produces InvalidParametersError.
type CreateCommand struct {
	Symbol values.Symbol
	Side values.Side
	OrderType OrderType
	Quantity values.Quantity
	LimitPrice *values.Money
	StopPrice *values.Money
	TIF TimeInForce
	Purpose Purpose
	Legs []LegCommand
	Strategy StrategyFamily
}

// LegCommand describes one leg of a multi-leg order request.
type LegCommand struct {
	InstrumentID values.Symbol
	Side values.Side
	Quantity values.Quantity
}

// ReconstituteParams carries the full persisted state needed to rebuild an
// Order without emitting events (reconstitute()).
type ReconstituteParams struct {
	OrderID values.OrderId
	BrokerID values.BrokerId
	Symbol values.Symbol
	Side values.Side
	OrderType OrderType
	Quantity values.Quantity
	LimitPrice *values.Money
	StopPrice *values.Money
	TIF TimeInForce
	Purpose Purpose
	Status Status
	Legs []OrderLine
	Strategy StrategyFamily
	Fill *PartialFillState
	CreatedAt values.Timestamp
	UpdatedAt values.Timestamp
}
