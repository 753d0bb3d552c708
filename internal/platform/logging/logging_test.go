package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_BuildsLoggerWithProcessFields(t *testing.T) {
	logger, err := New("info", "json", "paper", "broker-adapter")
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestOrderFields_OmitsEmptyValues(t *testing.T) {
	fields := OrderFields("", "AAPL", "")
	require.Len(t, fields, 1)
	require.Equal(t, "symbol", fields[0].Key)
}

func TestOrderFields_IncludesAllWhenPresent(t *testing.T) {
	fields := OrderFields("ord-1", "AAPL", "acct-1")
	require.Len(t, fields, 3)
}
