package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epic1st/execengine/internal/broker"
	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/repository"
	"github.com/epic1st/execengine/internal/domain/values"
)

// CriticalAction is what the engine does when a Critical discrepancy is
// found.
type CriticalAction string

const (
	Halt CriticalAction = "Halt"
	LogAndContinue CriticalAction = "LogAndContinue"
	AlertAction CriticalAction = "Alert"
)

// Config parameterizes one run.
type Config struct {
	ProtectionWindow time.Duration
	MaxOrderAge time.Duration
	AutoResolveOrphans bool
	CriticalAction CriticalAction
	QtyTolerance values.Quantity
	PriceTolerancePct decimal.Decimal
	PeriodicInterval time.Duration
}

// DefaultConfig is the fail-safe default: CriticalAction defaults to
// Halt rather than logging and continuing.
func DefaultConfig() Config {
	return Config{
		ProtectionWindow: 30 * time.Second,
		MaxOrderAge: 24 * time.Hour,
		AutoResolveOrphans: true,
		CriticalAction: Halt,
		QtyTolerance: values.ZeroQuantity(),
		PriceTolerancePct: decimal.NewFromFloat(0.001),
		PeriodicInterval: 60 * time.Second,
	}
}

// BrokerOrderSnapshot is one broker-side order as reported by
// get_order_status/get_account-style broker calls, carrying the venue's
// own status vocabulary.
type BrokerOrderSnapshot struct {
	BrokerOrderID values.BrokerId
	Symbol values.Symbol
	RawStatus string
	SubmittedAt time.Time
}

// BrokerPositionSnapshot is one broker-side net position.
type BrokerPositionSnapshot struct {
	Symbol values.Symbol
	Quantity values.Quantity
	AvgPrice values.Money
}

// BrokerState is the broker-state argument to reconcile().
type BrokerState struct {
	Orders []BrokerOrderSnapshot
	Positions []BrokerPositionSnapshot
}

// LocalPosition is the engine's own view of a net position, supplied by
// the caller (the engine itself has no position-tracking component of its
// own — it is derived from filled order state elsewhere).
type LocalPosition struct {
	Symbol values.Symbol
	Quantity values.Quantity
}

// TradingHalt is the process-wide flag the Submit use case consults
// before accepting new orders. Safe for concurrent use.
type TradingHalt struct {
	mu sync.RWMutex
	halted bool
	reason string
}

func (h *TradingHalt) Set(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = true
	h.reason = reason
}

func (h *TradingHalt) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = false
	h.reason = ""
}

func (h *TradingHalt) IsHalted() (bool, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.halted, h.reason
}

// Engine runs reconcile() against a repository and (optionally) applies
// resolutions through a broker adapter.
type Engine struct {
	repo repository.OrderRepository
	halt *TradingHalt
	lastRun time.Time
	lastRunSet bool
	mu sync.Mutex
}

func NewEngine(repo repository.OrderRepository, halt *TradingHalt) *Engine {
	return &Engine{repo: repo, halt: halt}
}

// IsDue reports true iff no prior run exists or the elapsed time since
// the last run is at least cfg.PeriodicInterval.
func (e *Engine) IsDue(now time.Time, cfg Config) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.lastRunSet {
		return true
	}
	return now.Sub(e.lastRun) >= cfg.PeriodicInterval
}

func (e *Engine) markRun(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastRun = now
	e.lastRunSet = true
}

// Reconcile runs the order/position comparison algorithm: unknown,
// missing and mismatched orders, then position-quantity drift. It must
// not be invoked in Backtest mode — Engine itself has no mode awareness,
// so the caller (the scheduling loop) owns that check and the calling
// cadence.
func (e *Engine) Reconcile(ctx context.Context, state BrokerState, localOrders []*order.Order, localPositions []LocalPosition, cfg Config, now time.Time) (Report, error) {
	report := Report{StartedAt: now}

	localByBrokerID := make(map[values.BrokerId]*order.Order, len(localOrders))
	for _, o := range localOrders {
		if !o.BrokerID().IsEmpty() {
			localByBrokerID[o.BrokerID()] = o
		}
	}
	brokerByID := make(map[values.BrokerId]BrokerOrderSnapshot, len(state.Orders))
	for _, bo := range state.Orders {
		brokerByID[bo.BrokerOrderID] = bo
	}

	// Step 2: unknown-in-broker.
	for _, bo := range state.Orders {
		if _, ok := localByBrokerID[bo.BrokerOrderID]; ok {
			continue
		}
		age := now.Sub(bo.SubmittedAt)
		if age < cfg.ProtectionWindow {
			continue
		}
		report.Orphans = append(report.Orphans, Orphan{
			Kind: UnknownInBroker,
			Severity: Warning,
			BrokerOrderID: bo.BrokerOrderID,
			BrokerStatus: bo.RawStatus,
			Age: age,
			Detail: fmt.Sprintf("broker order %s has no local record", bo.BrokerOrderID),
		})
	}

	// Step 3: missing-in-broker.
	for _, o := range localOrders {
		if o.BrokerID().IsEmpty() {
			continue
		}
		if _, ok := brokerByID[o.BrokerID()]; ok {
			continue
		}
		report.Orphans = append(report.Orphans, Orphan{
			Kind: MissingInBroker,
			Severity: Warning,
			BrokerOrderID: o.BrokerID(),
			LocalOrderID: o.ID(),
			LocalStatus: o.Status(),
			Detail: fmt.Sprintf("local order %s references broker id %s not present at broker", o.ID(), o.BrokerID()),
		})
	}

	// Step 4: state mismatch.
	for brokerID, o := range localByBrokerID {
		bo, ok := brokerByID[brokerID]
		if !ok {
			continue
		}
		report.OrdersCompared++
		if statusesEquivalent(o.Status(), bo.RawStatus) {
			continue
		}
		severity := Warning
		mappedBrokerStatus, _ := mapBrokerStatus(bo.RawStatus)
		if mappedBrokerStatus == order.Filled && !o.Status().IsTerminal() {
			severity = Critical
		}
		report.Orphans = append(report.Orphans, Orphan{
			Kind: StateMismatch,
			Severity: severity,
			BrokerOrderID: brokerID,
			LocalOrderID: o.ID(),
			LocalStatus: o.Status(),
			BrokerStatus: bo.RawStatus,
			Detail: fmt.Sprintf("local %s vs broker %s", o.Status(), bo.RawStatus),
		})
	}

	// Step 5: position compare.
	localBySymbol := make(map[values.Symbol]LocalPosition, len(localPositions))
	for _, lp := range localPositions {
		localBySymbol[lp.Symbol] = lp
	}
	brokerBySymbol := make(map[values.Symbol]BrokerPositionSnapshot, len(state.Positions))
	for _, bp := range state.Positions {
		brokerBySymbol[bp.Symbol] = bp
	}

	for sym, bp := range brokerBySymbol {
		report.PositionsCompared++
		lp, ok := localBySymbol[sym]
		if !ok {
			report.PositionDiscrepancies = append(report.PositionDiscrepancies, PositionDiscrepancy{
				Kind: NoLocal, Severity: Warning, Symbol: sym, BrokerQty: bp.Quantity,
				Detail: fmt.Sprintf("broker holds %s %s with no local position", bp.Quantity, sym),
			})
			continue
		}
		diff := lp.Quantity.Decimal().Sub(bp.Quantity.Decimal()).Abs()
		if diff.GreaterThan(cfg.QtyTolerance.Decimal()) {
			severity := Warning
			if lp.Quantity.IsPositive() {
				halfLocal := lp.Quantity.Decimal().Div(decimal.NewFromInt(2))
				if diff.GreaterThan(halfLocal) {
					severity = Critical
				}
			}
			report.PositionDiscrepancies = append(report.PositionDiscrepancies, PositionDiscrepancy{
				Kind: QtyMismatch, Severity: severity, Symbol: sym,
				LocalQty: lp.Quantity, BrokerQty: bp.Quantity,
				Detail: fmt.Sprintf("qty diff %s exceeds tolerance", diff),
			})
		}
	}
	for sym, lp := range localBySymbol {
		if _, ok := brokerBySymbol[sym]; ok {
			continue
		}
		report.PositionDiscrepancies = append(report.PositionDiscrepancies, PositionDiscrepancy{
			Kind: NoBroker, Severity: Warning, Symbol: sym, LocalQty: lp.Quantity,
			Detail: fmt.Sprintf("local holds %s %s with no broker position", lp.Quantity, sym),
		})
	}

	report.FinishedAt = now
	e.markRun(now)

	if report.HasCritical() {
		e.applyCriticalAction(cfg)
	}

	return report, nil
}

func (e *Engine) applyCriticalAction(cfg Config) {
	switch cfg.CriticalAction {
	case Halt, "":
		e.halt.Set("critical reconciliation discrepancy")
	case LogAndContinue, AlertAction:
		// Alerting/logging is handled by the caller observing the Report;
		// the engine itself only owns the halt flag.
	}
}

// ReconcileWithExecution wraps Reconcile and applies the resolution policy
// against the broker adapter and
// repository when auto_resolve_orphans is enabled.
func (e *Engine) ReconcileWithExecution(ctx context.Context, state BrokerState, localOrders []*order.Order, localPositions []LocalPosition, cfg Config, now time.Time, adapter *broker.Adapter) (Report, error) {
	report, err := e.Reconcile(ctx, state, localOrders, localPositions, cfg, now)
	if err != nil {
		return report, err
	}
	if !cfg.AutoResolveOrphans {
		return report, nil
	}

	for _, o := range report.Orphans {
		if o.Age < cfg.ProtectionWindow && o.Kind != StateMismatch && o.Kind != MissingInBroker {
			continue // Ignore: within protection window.
		}
		switch o.Kind {
		case UnknownInBroker, Zombie:
			if o.Age <= cfg.MaxOrderAge {
				// Adopt: left to the caller, which owns order creation from a
				// broker snapshot; the engine only classifies.
				continue
			}
			_ = adapter.CancelOrder(ctx, o.BrokerOrderID)
		case MissingInBroker:
			local, err := e.repo.FindByID(ctx, o.LocalOrderID)
			if err != nil {
				continue
			}
			if err := local.Reject(order.RejectReason("ReconciliationMarkFailed")); err == nil {
				_ = e.repo.Save(ctx, local)
			}
		case StateMismatch:
			// SyncFromBroker: left to the caller, which has the authoritative
			// broker snapshot needed to reconstitute fill history.
		}
	}

	return report, nil
}
