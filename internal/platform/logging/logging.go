// Package logging wraps go.uber.org/zap with a constructor that
// pre-loads process-wide fields (component, environment, hostname, pid)
// so call sites only need to attach request-scoped fields on top. Field
// names are chosen to need no remapping on ELK/Datadog/CloudWatch style
// log consumers.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger at the given level ("debug","info","warn",
// "error") and format ("json" or "console"), pre-loaded with process
// fields. component identifies the subsystem (e.g. "broker-adapter",
// "reconciliation-engine").
func New(level, format, environment, component string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapLevel)
	logger := zap.New(core)

	hostname, _ := os.Hostname()
	return logger.With(
		zap.String("component", component),
		zap.String("environment", environment),
		zap.String("hostname", hostname),
		zap.Int("pid", os.Getpid()),
	), nil
}

// OrderFields returns the request-scoped fields attached to every
// order-lifecycle log line: order_id, symbol, account_id.
func OrderFields(orderID, symbol, accountID string) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if orderID != "" {
		fields = append(fields, zap.String("order_id", orderID))
	}
	if symbol != "" {
		fields = append(fields, zap.String("symbol", symbol))
	}
	if accountID != "" {
		fields = append(fields, zap.String("account_id", accountID))
	}
	return fields
}

// BrokerOrderField attaches the broker-assigned order id once known.
func BrokerOrderField(brokerOrderID string) zap.Field {
	return zap.String("broker_order_id", brokerOrderID)
}
