package broker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/epic1st/execengine/internal/resilience"
)

const maxLegs = 4

// AdapterConfig configures the resilience wrapping around a Transport.
type AdapterConfig struct {
	Environment Environment
	Backoff resilience.BackoffConfig
	Breaker resilience.BreakerConfig
	Idempotency IdempotencyStore // optional; nil means in-memory-only reuse within a single SubmitOrders call
	IdempotencyTTL time.Duration
}

// Adapter wraps a bare Transport with an environment guard, multi-leg
// validation, idempotent client-order-id assignment, and resilience
// (backoff retries plus a circuit breaker).
type Adapter struct {
	transport Transport
	cfg AdapterConfig
	breaker *resilience.Breaker
}

func NewAdapter(transport Transport, cfg AdapterConfig) *Adapter {
	cfg.Breaker.Name = "broker:" + string(cfg.Environment)
	if cfg.IdempotencyTTL == 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &Adapter{
		transport: transport,
		cfg: cfg,
		breaker: resilience.NewBreaker(cfg.Breaker),
	}
}

// SubmitOrders guards the environment, validates multi-leg constraints,
// assigns an idempotent client order id if the caller didn't supply one
// — reusing one already recorded for this LocalOrderID when an
// IdempotencyStore is configured, so a process restart between
// submission and broker acknowledgement doesn't risk a duplicate
// execution — and submits through the resilient call path.
func (a *Adapter) SubmitOrders(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if req.Environment != a.cfg.Environment {
		return SubmitResult{}, &EnvironmentMismatchError{Configured: a.cfg.Environment, Requested: req.Environment}
	}

	if req.Strategy.IsMultiLeg() {
		if err := validateMultiLeg(req); err != nil {
			return SubmitResult{}, err
		}
	}

	if req.ClientOrderID == "" {
		req.ClientOrderID = a.resolveClientOrderID(ctx, req.LocalOrderID)
	}

	var result SubmitResult
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		result, err = a.transport.SubmitOrder(ctx, req)
		return err
	})
	return result, err
}

// resolveClientOrderID reuses a previously recorded id for localOrderID
// when a store is configured and has one, otherwise generates and (if a
// store is configured) persists a new one.
func (a *Adapter) resolveClientOrderID(ctx context.Context, localOrderID string) string {
	if a.cfg.Idempotency == nil || localOrderID == "" {
		return uuid.NewString()
	}
	if existing, ok, err := a.cfg.Idempotency.Get(ctx, localOrderID); err == nil && ok {
		return existing
	}
	id := uuid.NewString()
	_ = a.cfg.Idempotency.Set(ctx, localOrderID, id, a.cfg.IdempotencyTTL)
	return id
}

// validateMultiLeg enforces the multi-leg constraints: at most 4 legs,
// a ratio-quantity GCD of 1, and Limit + Day only.
func validateMultiLeg(req SubmitRequest) error {
	if len(req.Legs) == 0 {
		return &MultiLegValidationError{Reason: "multi-leg strategy requires at least one leg"}
	}
	if len(req.Legs) > maxLegs {
		return &MultiLegValidationError{Reason: "more than 4 legs"}
	}
	if req.OrderType != order.Limit {
		return &MultiLegValidationError{Reason: "multi-leg orders must be Limit"}
	}
	if req.TIF != order.Day {
		return &MultiLegValidationError{Reason: "multi-leg orders must be Day"}
	}
	if req.NetLimitPrice == nil {
		return &MultiLegValidationError{Reason: "multi-leg orders require a net limit price"}
	}

	g := req.Legs[0].RatioQty
	for _, leg := range req.Legs[1:] {
		g = gcd(g, leg.RatioQty)
	}
	if g != 1 {
		return &MultiLegValidationError{Reason: "leg ratio quantities must have GCD 1"}
	}
	return nil
}

func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (a *Adapter) GetOrderStatus(ctx context.Context, id values.BrokerId) (OrderStatus, error) {
	var out OrderStatus
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.transport.GetOrderStatus(ctx, id)
		return err
	})
	return out, err
}

func (a *Adapter) CancelOrder(ctx context.Context, id values.BrokerId) error {
	return a.call(ctx, func(ctx context.Context) error {
		return a.transport.CancelOrder(ctx, id)
	})
}

func (a *Adapter) GetAccount(ctx context.Context) (Account, error) {
	var out Account
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.transport.GetAccount(ctx)
		return err
	})
	return out, err
}

func (a *Adapter) GetPositions(ctx context.Context) ([]Position, error) {
	var out []Position
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.transport.GetPositions(ctx)
		return err
	})
	return out, err
}

func (a *Adapter) GetBars(ctx context.Context, symbols []values.Symbol, timeframe string, start, end time.Time, limit int) ([]Bar, error) {
	var out []Bar
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.transport.GetBars(ctx, symbols, timeframe, start, end, limit)
		return err
	})
	return out, err
}

func (a *Adapter) GetQuotes(ctx context.Context, symbols []values.Symbol) ([]Quote, error) {
	var out []Quote
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.transport.GetQuotes(ctx, symbols)
		return err
	})
	return out, err
}

func (a *Adapter) GetOptionSnapshots(ctx context.Context, underlying values.Symbol) ([]OptionSnapshot, error) {
	var out []OptionSnapshot
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.transport.GetOptionSnapshots(ctx, underlying)
		return err
	})
	return out, err
}

func (a *Adapter) HealthCheck(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := a.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = a.transport.HealthCheck(ctx)
		return err
	})
	return out, err
}

// call is the single resilient call path every public method routes
// through: circuit breaker admission, then backoff-wrapped retries, with
// the breaker recording the terminal outcome of the whole retry loop.
func (a *Adapter) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := a.breaker.Allow(time.Now()); err != nil {
		return err
	}

	err := resilience.Run(ctx, a.cfg.Backoff, func(ctx context.Context, attemptNum int) resilience.Outcome {
		callErr := fn(ctx)
		if callErr == nil {
			return resilience.Outcome{}
		}
		if ce, ok := callErr.(CategorizableError); ok {
			return resilience.Outcome{Err: callErr, Category: ce.Category(), RetryAfter: ce.RetryAfter()}
		}
		return resilience.Outcome{Err: callErr, Category: resilience.CategorizeNetworkError(callErr)}
	})

	a.breaker.Record(time.Now(), err != nil)
	return err
}
