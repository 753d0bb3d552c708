package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/epic1st/execengine/internal/broker"
	"github.com/epic1st/execengine/internal/controlplane"
	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/repository"
	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/epic1st/execengine/internal/eventbus"
	"github.com/epic1st/execengine/internal/platform/config"
	"github.com/epic1st/execengine/internal/platform/logging"
	"github.com/epic1st/execengine/internal/reconciliation"
	"github.com/epic1st/execengine/internal/resilience"
	"github.com/epic1st/execengine/internal/risk"
	"github.com/epic1st/execengine/internal/safety"
	"github.com/epic1st/execengine/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use: "serve",
	Short: "run the execution engine: broker adapter, reconciliation loop, safety supervisor, and event stream",
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cfg.Environment, "execengine")
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting execution engine",
		zap.String("environment", cfg.Environment),
		zap.String("broker", cfg.Broker.Name),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repo, err := newRepository(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building repository: %w", err)
	}

	transport := broker.NewHTTPTransport(cfg.Broker.BaseURL, cfg.Broker.APIKey, cfg.Broker.APISecret)
	adapter := broker.NewAdapter(transport, broker.AdapterConfig{
		Environment: broker.Environment(cfg.Environment),
		Backoff: resilience.DefaultBackoffConfig(),
		Breaker: resilience.BreakerConfig{
			Name: "broker:" + cfg.Environment,
			WindowSize: cfg.CircuitBreaker.WindowSize,
			MinimumCalls: cfg.CircuitBreaker.MinimumCalls,
			FailureRateThreshold: cfg.CircuitBreaker.FailureRateThreshold,
			WaitDurationInOpen: cfg.CircuitBreaker.WaitDurationInOpen,
			PermittedCallsInHalfOpen: cfg.CircuitBreaker.PermittedCallsInHalfOpen,
		},
		Idempotency: newIdempotencyStore(cfg),
	})

	halt := &reconciliation.TradingHalt{}

	bus := eventbus.NewBus(256)
	streamHub := eventbus.NewStreamHub()
	go streamHub.Relay(bus.Subscribe())

	submitter := usecase.NewSubmitter(
		repo,
		adapter,
		halt,
		buildRiskConstraints(cfg),
		&accountPortfolioProvider{adapter: adapter},
		broker.Environment(cfg.Environment),
		bus,
	)

	reconEngine := reconciliation.NewEngine(repo, halt)
	reconCfg := buildReconciliationConfig(cfg)
	if cfg.Environment != "backtest" {
		go runReconciliationLoop(ctx, log, reconEngine, adapter, repo, reconCfg)
	}

	supervisor := safety.NewSupervisor(adapter, adapter, repo, safety.Config{
		HeartbeatInterval: cfg.Safety.HeartbeatInterval,
		HeartbeatTimeout: cfg.Safety.HeartbeatTimeout,
		GracePeriod: cfg.Safety.GracePeriod,
		GTCPolicy: gtcPolicyFromString(cfg.Safety.GTCPolicy),
	})
	go func() {
		if cfg.Environment == "backtest" {
			return
		}
		if err := supervisor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("safety supervisor stopped", zap.Error(err))
		}
	}()

	cpServer := controlplane.NewServer(controlplane.Config{
		Bind: cfg.Server.Bind,
		Port: cfg.Server.Port,
		JWTSecret: []byte(cfg.Auth.JWTSecret),
	}, controlplane.Dependencies{ControlPlane: submitter}, log)
	go func() {
		if err := cpServer.Start(); err != nil {
			log.Error("control-plane server stopped", zap.Error(err))
		}
	}()

	log.Info("execution engine running", zap.String("bind", cfg.Server.Bind), zap.String("port", cfg.Server.Port))
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return cpServer.Shutdown(shutdownCtx)
}

// newIdempotencyStore builds a Redis-backed client-order-id cache when a
// Redis address is configured, so a process restart between submission and
// broker acknowledgement reuses the same client order id on retry rather
// than falling back to a fresh uuid every time. Returns nil (in-memory
// fallback only) when no Redis address is set.
func newIdempotencyStore(cfg *config.Config) broker.IdempotencyStore {
	if cfg.Persistence.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Persistence.RedisAddr,
		DB: cfg.Persistence.RedisDB,
	})
	return broker.NewRedisIdempotencyStore(client, "")
}

func newRepository(ctx context.Context, cfg *config.Config) (repository.OrderRepository, error) {
	if cfg.Persistence.PostgresDSN == "" {
		return repository.NewMemoryRepository(), nil
	}
	pool, err := pgxpool.New(ctx, cfg.Persistence.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return repository.NewPostgresRepository(pool), nil
}

func buildRiskConstraints(cfg *config.Config) risk.Constraints {
	instr := map[values.Symbol]risk.InstrumentConstraints{}
	maxNotional, err := decimal.NewFromString(cfg.Risk.MaxNotionalPerOrder)
	if err != nil {
		maxNotional = decimal.Zero
	}
	for _, s := range cfg.Feed.Symbols {
		sym, err := values.NewSymbol(s)
		if err != nil {
			continue
		}
		instr[sym] = risk.InstrumentConstraints{MaxNotional: values.NewMoney(maxNotional)}
	}
	return risk.Constraints{Instrument: instr}
}

func buildReconciliationConfig(cfg *config.Config) reconciliation.Config {
	rc := reconciliation.DefaultConfig()
	rc.ProtectionWindow = cfg.Reconciliation.ProtectionWindow
	rc.MaxOrderAge = cfg.Reconciliation.MaxOrderAge
	rc.AutoResolveOrphans = cfg.Reconciliation.AutoResolveOrphans
	rc.CriticalAction = criticalActionFromString(cfg.Reconciliation.CriticalAction)
	rc.PeriodicInterval = cfg.Reconciliation.PeriodicInterval
	if qty, err := decimal.NewFromString(cfg.Reconciliation.QtyTolerance); err == nil {
		if q, qerr := values.NewQuantity(qty); qerr == nil {
			rc.QtyTolerance = q
		}
	}
	if pct, err := decimal.NewFromString(cfg.Reconciliation.PriceTolerancePct); err == nil {
		rc.PriceTolerancePct = pct
	}
	return rc
}

func gtcPolicyFromString(s string) safety.GTCPolicy {
	if s == "exclude" {
		return safety.Exclude
	}
	return safety.Include
}

func criticalActionFromString(s string) reconciliation.CriticalAction {
	switch s {
	case "log_and_continue":
		return reconciliation.LogAndContinue
	case "alert":
		return reconciliation.AlertAction
	default:
		return reconciliation.Halt
	}
}

// runReconciliationLoop polls the broker on cfg.PeriodicInterval and runs
// the reconciliation algorithm whenever the engine says it is due.
func runReconciliationLoop(ctx context.Context, log *zap.Logger, engine *reconciliation.Engine, adapter *broker.Adapter, repo repository.OrderRepository, cfg reconciliation.Config) {
	ticker := time.NewTicker(cfg.PeriodicInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !engine.IsDue(time.Now(), cfg) {
				continue
			}
			if _, err := adapter.HealthCheck(ctx); err != nil {
				log.Warn("reconciliation: broker health check failed, skipping this cycle", zap.Error(err))
				continue
			}
			localOrders, err := repo.FindActive(ctx)
			if err != nil {
				log.Warn("reconciliation: local order fetch failed", zap.Error(err))
				continue
			}
			positions, err := adapter.GetPositions(ctx)
			if err != nil {
				log.Warn("reconciliation: broker position fetch failed", zap.Error(err))
				continue
			}
			localPositions := make([]reconciliation.LocalPosition, 0, len(positions))
			brokerPositions := make([]reconciliation.BrokerPositionSnapshot, 0, len(positions))
			for _, p := range positions {
				localPositions = append(localPositions, reconciliation.LocalPosition{Symbol: p.Symbol, Quantity: p.Quantity})
				brokerPositions = append(brokerPositions, reconciliation.BrokerPositionSnapshot{Symbol: p.Symbol, Quantity: p.Quantity, AvgPrice: p.AvgPrice})
			}

			brokerOrders := fetchBrokerOrderSnapshots(ctx, log, adapter, localOrders)

			state := reconciliation.BrokerState{Orders: brokerOrders, Positions: brokerPositions}
			report, err := engine.ReconcileWithExecution(ctx, state, localOrders, localPositions, cfg, time.Now(), adapter)
			if err != nil {
				log.Error("reconciliation cycle failed", zap.Error(err))
				continue
			}
			if report.HasCritical() {
				log.Error("reconciliation found critical discrepancies, trading halted",
					zap.Int("orphans", len(report.Orphans)),
					zap.Int("position_discrepancies", len(report.PositionDiscrepancies)),
				)
			}
		}
	}
}

// fetchBrokerOrderSnapshots fetches one GetOrderStatus per local order
// concurrently, capped at 8 in flight. Uses a zero-value errgroup.Group
// rather than errgroup.WithContext: one broker order's fetch failure is
// logged and skipped, not allowed to cancel the context every sibling
// fetch shares, matching the non-canceling fan-out the mass-cancel path
// already relies on.
func fetchBrokerOrderSnapshots(ctx context.Context, log *zap.Logger, adapter *broker.Adapter, localOrders []*order.Order) []reconciliation.BrokerOrderSnapshot {
	var g errgroup.Group
	g.SetLimit(8)

	var mu sync.Mutex
	snapshots := make([]reconciliation.BrokerOrderSnapshot, 0, len(localOrders))

	for _, lo := range localOrders {
		lo := lo
		if lo.BrokerID() == "" {
			continue
		}
		g.Go(func() error {
			status, err := adapter.GetOrderStatus(ctx, lo.BrokerID())
			if err != nil {
				log.Warn("reconciliation: broker order status fetch failed", zap.String("broker_order_id", string(lo.BrokerID())), zap.Error(err))
				return nil
			}
			snap := reconciliation.BrokerOrderSnapshot{
				BrokerOrderID: status.BrokerOrderID,
				Symbol: status.Symbol,
				RawStatus: string(status.Status),
				SubmittedAt: status.UpdatedAt,
			}
			mu.Lock()
			snapshots = append(snapshots, snap)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return snapshots
}

type accountPortfolioProvider struct {
	adapter *broker.Adapter
}

// Snapshot implements usecase.PortfolioSnapshotProvider by asking the
// broker adapter for current account equity and positions — the engine
// has no account cache of its own.
func (p *accountPortfolioProvider) Snapshot(ctx context.Context) (risk.PortfolioSnapshot, error) {
	account, err := p.adapter.GetAccount(ctx)
	if err != nil {
		return risk.PortfolioSnapshot{}, err
	}
	positions, err := p.adapter.GetPositions(ctx)
	if err != nil {
		return risk.PortfolioSnapshot{}, err
	}

	instrNotional := make(map[values.Symbol]values.Money, len(positions))
	instrUnits := make(map[values.Symbol]values.Quantity, len(positions))
	for _, pos := range positions {
		instrNotional[pos.Symbol] = values.NewMoney(pos.Quantity.Decimal().Mul(pos.AvgPrice.Decimal()))
		instrUnits[pos.Symbol] = pos.Quantity
	}

	return risk.PortfolioSnapshot{
		Equity: account.Equity,
		InstrumentNotional: instrNotional,
		InstrumentUnits: instrUnits,
	}, nil
}
