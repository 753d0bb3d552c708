package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/epic1st/execengine/internal/domain/values"
)

func sym(t *testing.T, s string) values.Symbol {
	t.Helper()
	v, err := values.NewSymbol(s)
	require.NoError(t, err)
	return v
}

func TestValidate_PassesWithinLimits(t *testing.T) {
	c := Candidate{
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		Quantity: values.MustQuantity("10"),
		EstimatedPrice: values.MustMoney("150"),
	}
	snap := PortfolioSnapshot{
		Equity: values.MustMoney("100000"),
		GrossNotional: values.MustMoney("1500"),
		NetNotional: values.MustMoney("1500"),
		InstrumentNotional: map[values.Symbol]values.Money{},
		InstrumentUnits: map[values.Symbol]values.Quantity{},
	}
	limits := Constraints{
		Instrument: map[values.Symbol]InstrumentConstraints{
			sym(t, "AAPL"): {
				MaxNotional: values.MustMoney("10000"),
				MaxUnits: values.MustQuantity("1000"),
				MaxEquityPct: decimal.NewFromFloat(0.5),
			},
		},
		Portfolio: PortfolioConstraints{
			MaxGrossNotional: values.MustMoney("50000"),
			MaxNetNotional: values.MustMoney("50000"),
			MaxLeverage: decimal.NewFromInt(5),
		},
	}

	result := Validate(c, snap, limits)
	require.True(t, result.Passed())
}

func TestValidate_RejectsOverNotional(t *testing.T) {
	c := Candidate{
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		Quantity: values.MustQuantity("1000"),
		EstimatedPrice: values.MustMoney("150"),
	}
	snap := PortfolioSnapshot{
		Equity: values.MustMoney("100000"),
		InstrumentNotional: map[values.Symbol]values.Money{},
		InstrumentUnits: map[values.Symbol]values.Quantity{},
	}
	limits := Constraints{
		Instrument: map[values.Symbol]InstrumentConstraints{
			sym(t, "AAPL"): {MaxNotional: values.MustMoney("10000")},
		},
	}

	result := Validate(c, snap, limits)
	require.False(t, result.Passed())
	require.Len(t, result.Violations, 1)
	require.Equal(t, "instrument_notional", result.Violations[0].Check)
}

func TestValidate_AccumulatesMultipleViolations(t *testing.T) {
	c := Candidate{
		Symbol: sym(t, "AAPL"),
		Side: values.Buy,
		Quantity: values.MustQuantity("1000"),
		EstimatedPrice: values.MustMoney("150"),
	}
	snap := PortfolioSnapshot{
		Equity: values.MustMoney("1000"),
		GrossNotional: values.MustMoney("0"),
		InstrumentNotional: map[values.Symbol]values.Money{},
		InstrumentUnits: map[values.Symbol]values.Quantity{},
	}
	limits := Constraints{
		Instrument: map[values.Symbol]InstrumentConstraints{
			sym(t, "AAPL"): {
				MaxNotional: values.MustMoney("10000"),
				MaxUnits: values.MustQuantity("10"),
				MaxEquityPct: decimal.NewFromFloat(0.01),
			},
		},
		Portfolio: PortfolioConstraints{
			MaxGrossNotional: values.MustMoney("1000"),
		},
	}

	result := Validate(c, snap, limits)
	require.False(t, result.Passed())
	require.GreaterOrEqual(t, len(result.Violations), 3)
}
