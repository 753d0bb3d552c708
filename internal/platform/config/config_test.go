package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndRequiredFields(t *testing.T) {
	t.Setenv("EXEC_BROKER_NAME", "oanda")
	t.Setenv("EXEC_ENVIRONMENT", "paper")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "oanda", cfg.Broker.Name)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "halt", cfg.Reconciliation.CriticalAction)
	require.Equal(t, 10, cfg.CircuitBreaker.MinimumCalls)
}

func TestLoad_RejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("EXEC_BROKER_NAME", "oanda")
	t.Setenv("EXEC_ENVIRONMENT", "production")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_RequiresBrokerName(t *testing.T) {
	t.Setenv("EXEC_ENVIRONMENT", "paper")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_EnvOverridesNestedKey(t *testing.T) {
	t.Setenv("EXEC_BROKER_NAME", "oanda")
	t.Setenv("EXEC_ENVIRONMENT", "live")
	t.Setenv("EXEC_SERVER_PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "live", cfg.Environment)
}

func TestLoad_AuthJWTSecretDefaultsEmpty(t *testing.T) {
	t.Setenv("EXEC_BROKER_NAME", "oanda")
	t.Setenv("EXEC_ENVIRONMENT", "paper")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_AuthJWTSecretFromEnv(t *testing.T) {
	t.Setenv("EXEC_BROKER_NAME", "oanda")
	t.Setenv("EXEC_ENVIRONMENT", "paper")
	t.Setenv("EXEC_AUTH_JWT_SECRET", "s3cr3t")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", cfg.Auth.JWTSecret)
}
