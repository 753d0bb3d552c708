// Package config loads the execution engine's typed Config from
// environment variables and an optional config file via
// github.com/spf13/viper, binding and unmarshaling into a single struct
// so adding an option group never requires a matching getEnv call.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config covers every recognized option group: server, feed, broker,
// pricing, risk, observability, circuit breaker, persistence, recovery,
// reconciliation, safety and stop-management.
type Config struct {
	Server ServerConfig
	Feed FeedConfig
	Broker BrokerConfig
	Pricing PricingConfig
	Risk RiskConfig
	Observability ObservabilityConfig
	CircuitBreaker CircuitBreakerConfig
	Persistence PersistenceConfig
	Recovery RecoveryConfig
	Reconciliation ReconciliationConfig
	Safety SafetyConfig
	Stops StopsConfig
	Auth AuthConfig
	Environment string // backtest | paper | live
}

type ServerConfig struct {
	Port string
	Bind string
}

// AuthConfig governs the control plane's JWT bearer auth. An empty
// JWTSecret disables auth — intended for local/paper deployments only.
type AuthConfig struct {
	JWTSecret string
}

type FeedConfig struct {
	APIKey string
	APISecret string
	Symbols []string
}

type BrokerConfig struct {
	Name string
	APIKey string
	APISecret string
	BaseURL string
	StreamURL string
}

type PricingConfig struct {
	TickSize string
	PriceTolerancePct string
}

type RiskConfig struct {
	MaxNotionalPerOrder string
	MaxPositionNotional string
	MaxOrdersPerMinute int
}

type ObservabilityConfig struct {
	LogLevel string
	LogFormat string
}

type CircuitBreakerConfig struct {
	WindowSize int
	MinimumCalls int
	FailureRateThreshold float64
	WaitDurationInOpen time.Duration
	PermittedCallsInHalfOpen int
}

type PersistenceConfig struct {
	PostgresDSN string
	RedisAddr string
	RedisDB int
}

type RecoveryConfig struct {
	Enabled bool
}

type ReconciliationConfig struct {
	ProtectionWindow time.Duration
	MaxOrderAge time.Duration
	PeriodicInterval time.Duration
	AutoResolveOrphans bool
	CriticalAction string // halt | log_and_continue | alert
	QtyTolerance string
	PriceTolerancePct string
}

type SafetyConfig struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout time.Duration
	GracePeriod time.Duration
	GTCPolicy string // include | exclude
}

type StopsConfig struct {
	SameBarPriority string // stop_first | target_first | high_low_order
}

// Load builds a Config from environment variables (EXEC_ prefix, nested
// keys joined with underscore, e.g. EXEC_SERVER_PORT) and, if present, a
// config file named by configPath. An empty configPath skips the file
// and relies on environment + defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EXEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Bind: v.GetString("server.bind"),
		},
		Feed: FeedConfig{
			APIKey: v.GetString("feed.api_key"),
			APISecret: v.GetString("feed.api_secret"),
			Symbols: v.GetStringSlice("feed.symbols"),
		},
		Broker: BrokerConfig{
			Name: v.GetString("broker.name"),
			APIKey: v.GetString("broker.api_key"),
			APISecret: v.GetString("broker.api_secret"),
			BaseURL: v.GetString("broker.base_url"),
			StreamURL: v.GetString("broker.stream_url"),
		},
		Pricing: PricingConfig{
			TickSize: v.GetString("pricing.tick_size"),
			PriceTolerancePct: v.GetString("pricing.price_tolerance_pct"),
		},
		Risk: RiskConfig{
			MaxNotionalPerOrder: v.GetString("risk.max_notional_per_order"),
			MaxPositionNotional: v.GetString("risk.max_position_notional"),
			MaxOrdersPerMinute: v.GetInt("risk.max_orders_per_minute"),
		},
		Observability: ObservabilityConfig{
			LogLevel: v.GetString("observability.logging.level"),
			LogFormat: v.GetString("observability.logging.format"),
		},
		CircuitBreaker: CircuitBreakerConfig{
			WindowSize: v.GetInt("circuit_breaker.window_size"),
			MinimumCalls: v.GetInt("circuit_breaker.minimum_calls"),
			FailureRateThreshold: v.GetFloat64("circuit_breaker.failure_rate_threshold"),
			WaitDurationInOpen: v.GetDuration("circuit_breaker.wait_duration_in_open"),
			PermittedCallsInHalfOpen: v.GetInt("circuit_breaker.permitted_calls_in_half_open"),
		},
		Persistence: PersistenceConfig{
			PostgresDSN: v.GetString("persistence.postgres_dsn"),
			RedisAddr: v.GetString("persistence.redis_addr"),
			RedisDB: v.GetInt("persistence.redis_db"),
		},
		Recovery: RecoveryConfig{
			Enabled: v.GetBool("recovery.enabled"),
		},
		Reconciliation: ReconciliationConfig{
			ProtectionWindow: v.GetDuration("reconciliation.protection_window"),
			MaxOrderAge: v.GetDuration("reconciliation.max_order_age"),
			PeriodicInterval: v.GetDuration("reconciliation.periodic_interval"),
			AutoResolveOrphans: v.GetBool("reconciliation.auto_resolve_orphans"),
			CriticalAction: v.GetString("reconciliation.critical_action"),
			QtyTolerance: v.GetString("reconciliation.qty_tolerance"),
			PriceTolerancePct: v.GetString("reconciliation.price_tolerance_pct"),
		},
		Safety: SafetyConfig{
			HeartbeatInterval: v.GetDuration("safety.heartbeat_interval"),
			HeartbeatTimeout: v.GetDuration("safety.heartbeat_timeout"),
			GracePeriod: v.GetDuration("safety.grace_period"),
			GTCPolicy: v.GetString("safety.gtc_policy"),
		},
		Stops: StopsConfig{
			SameBarPriority: v.GetString("stops.same_bar_priority"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Environment: v.GetString("environment"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Environment {
	case "backtest", "paper", "live":
	default:
		return fmt.Errorf("config: environment must be one of backtest|paper|live, got %q", c.Environment)
	}
	if c.Broker.Name == "" {
		return fmt.Errorf("config: broker.name is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.bind", "0.0.0.0")
	v.SetDefault("environment", "paper")
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("circuit_breaker.window_size", 20)
	v.SetDefault("circuit_breaker.minimum_calls", 10)
	v.SetDefault("circuit_breaker.failure_rate_threshold", 0.5)
	v.SetDefault("circuit_breaker.wait_duration_in_open", 30*time.Second)
	v.SetDefault("circuit_breaker.permitted_calls_in_half_open", 3)
	v.SetDefault("persistence.redis_db", 0)
	v.SetDefault("reconciliation.protection_window", 5*time.Second)
	v.SetDefault("reconciliation.max_order_age", 2*time.Minute)
	v.SetDefault("reconciliation.periodic_interval", 30*time.Second)
	v.SetDefault("reconciliation.auto_resolve_orphans", false)
	v.SetDefault("reconciliation.critical_action", "halt")
	v.SetDefault("reconciliation.qty_tolerance", "0.0001")
	v.SetDefault("reconciliation.price_tolerance_pct", "0.001")
	v.SetDefault("safety.heartbeat_interval", 5*time.Second)
	v.SetDefault("safety.heartbeat_timeout", 15*time.Second)
	v.SetDefault("safety.grace_period", 30*time.Second)
	v.SetDefault("safety.gtc_policy", "include")
	v.SetDefault("stops.same_bar_priority", "stop_first")
}
