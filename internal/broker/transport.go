package broker

import (
	"context"
	"time"

	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/epic1st/execengine/internal/resilience"
)

// Transport is the raw, unauthenticated-retry venue call surface — one
// implementation per venue (a REST client, a FIX gateway, etc). Adapter
// wraps a Transport with the environment guard, multi-leg validation,
// and backoff/circuit-breaking; a Transport implementation is a bare
// caller with no retry logic of its own.
type Transport interface {
	SubmitOrder(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	GetOrderStatus(ctx context.Context, brokerOrderID values.BrokerId) (OrderStatus, error)
	CancelOrder(ctx context.Context, brokerOrderID values.BrokerId) error
	GetAccount(ctx context.Context) (Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetBars(ctx context.Context, symbols []values.Symbol, timeframe string, start, end time.Time, limit int) ([]Bar, error)
	GetQuotes(ctx context.Context, symbols []values.Symbol) ([]Quote, error)
	GetOptionSnapshots(ctx context.Context, underlying values.Symbol) ([]OptionSnapshot, error)
	HealthCheck(ctx context.Context) (HealthStatus, error)
}

// CategorizableError classifies a Transport error for the resilience layer. A
// Transport implementation should return errors that satisfy
// CategorizableError so Adapter can make correct retry/breaker decisions
// without string-matching error text.
type CategorizableError interface {
	error
	Category() resilience.Category
	RetryAfter() time.Duration // meaningful only when Category() == resilience.RateLimited
}
