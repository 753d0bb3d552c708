// Package usecase is the orchestration layer that ties the Order
// aggregate, the risk validator, the broker adapter and the repository
// together into a validate -> submit -> persist -> emit pipeline, with
// domain invariants owned by the Order aggregate rather than the use
// case itself.
package usecase

import (
	"context"
	"fmt"

	"github.com/epic1st/execengine/internal/broker"
	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/repository"
	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/epic1st/execengine/internal/eventbus"
	"github.com/epic1st/execengine/internal/reconciliation"
	"github.com/epic1st/execengine/internal/risk"
)

// TradingHaltedError is returned when the reconciliation engine's halt
// flag is set.
type TradingHaltedError struct {
	Reason string
}

func (e *TradingHaltedError) Error() string { return "trading halted: " + e.Reason }

// RiskRejectedError wraps a risk.Result with Passed() == false.
type RiskRejectedError struct {
	Violations []string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("risk validation rejected order: %v", e.Violations)
}

// PortfolioSnapshotProvider supplies the current portfolio state the risk
// validator checks a candidate against — implemented by whatever owns the
// account/position cache; an interface here so Submit never needs to
// know its source.
type PortfolioSnapshotProvider interface {
	Snapshot(ctx context.Context) (risk.PortfolioSnapshot, error)
}

// Submitter orchestrates order creation through to broker submission.
type Submitter struct {
	repo repository.OrderRepository
	adapter *broker.Adapter
	halt *reconciliation.TradingHalt
	constraints risk.Constraints
	portfolio PortfolioSnapshotProvider
	environment broker.Environment
	bus *eventbus.Bus
}

func NewSubmitter(
	repo repository.OrderRepository,
	adapter *broker.Adapter,
	halt *reconciliation.TradingHalt,
	constraints risk.Constraints,
	portfolio PortfolioSnapshotProvider,
	environment broker.Environment,
	bus *eventbus.Bus,
) *Submitter {
	return &Submitter{
		repo: repo,
		adapter: adapter,
		halt: halt,
		constraints: constraints,
		portfolio: portfolio,
		environment: environment,
		bus: bus,
	}
}

// SubmitSingleLegRequest is a caller's intent for a non-multi-leg order.
type SubmitSingleLegRequest struct {
	Symbol values.Symbol
	Side values.Side
	OrderType order.OrderType
	Quantity values.Quantity
	LimitPrice *values.Money
	StopPrice *values.Money
	TIF order.TimeInForce
	Purpose order.Purpose
	EstimatedPrice values.Money // for risk notional estimation
}

// Submit validates risk, creates the Order aggregate, submits it to the
// broker, and persists the result. It refuses outright when trading is
// halted.
func (s *Submitter) Submit(ctx context.Context, req SubmitSingleLegRequest) (*order.Order, error) {
	if halted, reason := s.halt.IsHalted(); halted {
		return nil, &TradingHaltedError{Reason: reason}
	}

	snap, err := s.portfolio.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch portfolio snapshot: %w", err)
	}

	candidate := risk.Candidate{
		Symbol: req.Symbol,
		Side: req.Side,
		Quantity: req.Quantity,
		EstimatedPrice: req.EstimatedPrice,
	}
	result := risk.Validate(candidate, snap, s.constraints)
	if !result.Passed() {
		return nil, &RiskRejectedError{Violations: result.Reasons()}
	}

	o, err := order.New(order.CreateCommand{
		Symbol: req.Symbol,
		Side: req.Side,
		OrderType: req.OrderType,
		Quantity: req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice: req.StopPrice,
		TIF: req.TIF,
		Purpose: req.Purpose,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("persist new order: %w", err)
	}

	submitResult, err := s.adapter.SubmitOrders(ctx, broker.SubmitRequest{
		Environment: s.environment,
		LocalOrderID: o.ID().String(),
		Symbol: req.Symbol,
		Side: req.Side,
		OrderType: req.OrderType,
		Quantity: req.Quantity,
		LimitPrice: req.LimitPrice,
		StopPrice: req.StopPrice,
		TIF: req.TIF,
	})
	if err != nil {
		_ = o.Reject(order.RejectReason(err.Error()))
		_ = s.repo.Save(ctx, o)
		return o, err
	}

	if err := o.Accept(submitResult.BrokerOrderID); err != nil {
		return o, err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return o, fmt.Errorf("persist accepted order: %w", err)
	}

	s.bus.PublishFrom(o)
	return o, nil
}

// Cancel issues a broker cancel and marks the local order Canceled,
// grounded on the same validate-then-mutate-then-persist shape as Submit.
func (s *Submitter) Cancel(ctx context.Context, id values.OrderId, reason order.CancelReason) error {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !o.Status().IsCancelable() {
		return fmt.Errorf("order %s in status %s is not cancelable", id, o.Status())
	}

	if !o.BrokerID().IsEmpty() {
		if err := s.adapter.CancelOrder(ctx, o.BrokerID()); err != nil {
			return fmt.Errorf("broker cancel: %w", err)
		}
	}

	if err := o.Cancel(reason); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return fmt.Errorf("persist canceled order: %w", err)
	}
	s.bus.PublishFrom(o)
	return nil
}
