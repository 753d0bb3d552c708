// Package risk implements a single pure operation, validate(), that
// accumulates violations across per-instrument, portfolio, options-greek
// and buying-power checks rather than returning on the first failure, so
// a caller sees every constraint a candidate order breaks in one pass.
// All thresholds are compared using fixed-point decimal arithmetic.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

// InstrumentConstraints bounds a single instrument.
type InstrumentConstraints struct {
	MaxNotional values.Money
	MaxUnits values.Quantity
	MaxEquityPct decimal.Decimal // instrument weight as a fraction of equity, e.g. 0.10 = 10%
}

// PortfolioConstraints bounds the whole book.
type PortfolioConstraints struct {
	MaxGrossNotional values.Money
	MaxNetNotional values.Money
	MaxLeverage decimal.Decimal
}

// OptionsConstraints bounds greek exposure.
type OptionsConstraints struct {
	MaxDeltaPerUnderlying decimal.Decimal
	MaxPortfolioDelta decimal.Decimal
	MaxPortfolioGamma decimal.Decimal
	MaxPortfolioVega decimal.Decimal
	MaxPortfolioTheta decimal.Decimal
	MaxContractsPerUnderlying int
}

// BuyingPowerConstraints bounds remaining capital.
type BuyingPowerConstraints struct {
	MinRemainingBuyingPowerRatio decimal.Decimal
	MarginBufferRequired values.Money
}

// Constraints bundles every check family's limits.
type Constraints struct {
	Instrument map[values.Symbol]InstrumentConstraints
	Portfolio PortfolioConstraints
	Options OptionsConstraints
	BuyingPower BuyingPowerConstraints
}

// Greeks holds an underlying's option exposure.
type Greeks struct {
	Delta, Gamma, Vega, Theta decimal.Decimal
}

// PortfolioSnapshot is the read-only state the validator checks the
// candidate order against. It carries no behavior — it is a value handed
// in by the caller.
type PortfolioSnapshot struct {
	Equity values.Money
	GrossNotional values.Money
	NetNotional values.Money
	Leverage decimal.Decimal
	InstrumentNotional map[values.Symbol]values.Money
	InstrumentUnits map[values.Symbol]values.Quantity
	GreeksByUnderlying map[values.Symbol]Greeks
	PortfolioGreeks Greeks
	ContractsByUnderlying map[values.Symbol]int
	RemainingBuyingPowerRatio decimal.Decimal
	MarginBuffer values.Money
}

// Violation names one failed check; Reasons() joins them for a surfaced
// error message.
type Violation struct {
	Check string
	Message string
}

// Result is Passed{} or Rejected{reasons}.
type Result struct {
	Violations []Violation
}

func (r Result) Passed() bool { return len(r.Violations) == 0 }

func (r Result) Reasons() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = fmt.Sprintf("%s: %s", v.Check, v.Message)
	}
	return out
}

// Candidate is the minimal order shape the validator needs — notional and
// units come from the candidate order plus an estimated fill price, since
// an order not yet submitted has no fills to derive notional from.
type Candidate struct {
	Symbol values.Symbol
	Side values.Side
	Quantity values.Quantity
	EstimatedPrice values.Money
	Underlying values.Symbol // options only; empty for equities/futures
	Greeks Greeks
	Contracts int
}

// Validate runs every check in order, accumulating violations rather
// than short-circuiting on the first failure. It performs no I/O and
// has no side effects.
func Validate(c Candidate, snap PortfolioSnapshot, limits Constraints) Result {
	var result Result

	notional := values.NewMoney(c.Quantity.Decimal().Mul(c.EstimatedPrice.Decimal()))

	// Per-instrument checks.
	if ic, ok := limits.Instrument[c.Symbol]; ok {
		existingNotional := snap.InstrumentNotional[c.Symbol]
		projectedNotional := existingNotional.Add(notional)
		if ic.MaxNotional.IsPositive() && projectedNotional.GreaterThan(ic.MaxNotional) {
			result.Violations = append(result.Violations, Violation{
				Check: "instrument_notional",
				Message: fmt.Sprintf("%s projected notional %s exceeds max %s", c.Symbol, projectedNotional, ic.MaxNotional),
			})
		}

		existingUnits := snap.InstrumentUnits[c.Symbol]
		projectedUnits := existingUnits.Add(c.Quantity)
		if ic.MaxUnits.IsPositive() && projectedUnits.GreaterThan(ic.MaxUnits) {
			result.Violations = append(result.Violations, Violation{
				Check: "instrument_units",
				Message: fmt.Sprintf("%s projected units %s exceeds max %s", c.Symbol, projectedUnits, ic.MaxUnits),
			})
		}

		if !ic.MaxEquityPct.IsZero() && snap.Equity.IsPositive() {
			weight := projectedNotional.Decimal().Div(snap.Equity.Decimal())
			if weight.GreaterThan(ic.MaxEquityPct) {
				result.Violations = append(result.Violations, Violation{
					Check: "instrument_equity_weight",
					Message: fmt.Sprintf("%s weight %s exceeds max %s of equity", c.Symbol, weight, ic.MaxEquityPct),
				})
			}
		}
	}

	// Portfolio checks.
	projectedGross := snap.GrossNotional.Add(notional)
	if limits.Portfolio.MaxGrossNotional.IsPositive() && projectedGross.GreaterThan(limits.Portfolio.MaxGrossNotional) {
		result.Violations = append(result.Violations, Violation{
			Check: "portfolio_gross_notional",
			Message: fmt.Sprintf("projected gross notional %s exceeds max %s", projectedGross, limits.Portfolio.MaxGrossNotional),
		})
	}

	signedNotional := notional
	if c.Side == values.Sell {
		signedNotional = values.NewMoney(notional.Decimal().Neg())
	}
	projectedNet := snap.NetNotional.Add(signedNotional)
	netAbs := values.NewMoney(projectedNet.Decimal().Abs())
	if limits.Portfolio.MaxNetNotional.IsPositive() && netAbs.GreaterThan(limits.Portfolio.MaxNetNotional) {
		result.Violations = append(result.Violations, Violation{
			Check: "portfolio_net_notional",
			Message: fmt.Sprintf("projected net notional %s exceeds max %s", netAbs, limits.Portfolio.MaxNetNotional),
		})
	}

	if !limits.Portfolio.MaxLeverage.IsZero() && snap.Leverage.GreaterThan(limits.Portfolio.MaxLeverage) {
		result.Violations = append(result.Violations, Violation{
			Check: "portfolio_leverage",
			Message: fmt.Sprintf("leverage %s exceeds max %s", snap.Leverage, limits.Portfolio.MaxLeverage),
		})
	}

	// Options/greeks checks — only relevant when the candidate names an
	// underlying.
	if c.Underlying != "" {
		g := snap.GreeksByUnderlying[c.Underlying]
		projectedUnderlyingDelta := g.Delta.Add(c.Greeks.Delta)
		if !limits.Options.MaxDeltaPerUnderlying.IsZero() && projectedUnderlyingDelta.Abs().GreaterThan(limits.Options.MaxDeltaPerUnderlying) {
			result.Violations = append(result.Violations, Violation{
				Check: "options_delta_per_underlying",
				Message: fmt.Sprintf("%s delta %s exceeds max %s", c.Underlying, projectedUnderlyingDelta, limits.Options.MaxDeltaPerUnderlying),
			})
		}

		pg := snap.PortfolioGreeks
		projDelta := pg.Delta.Add(c.Greeks.Delta)
		projGamma := pg.Gamma.Add(c.Greeks.Gamma)
		projVega := pg.Vega.Add(c.Greeks.Vega)
		projTheta := pg.Theta.Add(c.Greeks.Theta)

		checkGreek := func(name string, proj, max decimal.Decimal) {
			if !max.IsZero() && proj.Abs().GreaterThan(max) {
				result.Violations = append(result.Violations, Violation{
					Check: "portfolio_" + name,
					Message: fmt.Sprintf("portfolio %s %s exceeds max %s", name, proj, max),
				})
			}
		}
		checkGreek("delta", projDelta, limits.Options.MaxPortfolioDelta)
		checkGreek("gamma", projGamma, limits.Options.MaxPortfolioGamma)
		checkGreek("vega", projVega, limits.Options.MaxPortfolioVega)
		checkGreek("theta", projTheta, limits.Options.MaxPortfolioTheta)

		projectedContracts := snap.ContractsByUnderlying[c.Underlying] + c.Contracts
		if limits.Options.MaxContractsPerUnderlying > 0 && projectedContracts > limits.Options.MaxContractsPerUnderlying {
			result.Violations = append(result.Violations, Violation{
				Check: "options_contracts_per_underlying",
				Message: fmt.Sprintf("%s projected contracts %d exceeds max %d", c.Underlying, projectedContracts, limits.Options.MaxContractsPerUnderlying),
			})
		}
	}

	// Buying power checks.
	if !limits.BuyingPower.MinRemainingBuyingPowerRatio.IsZero() &&
		snap.RemainingBuyingPowerRatio.LessThan(limits.BuyingPower.MinRemainingBuyingPowerRatio) {
		result.Violations = append(result.Violations, Violation{
			Check: "buying_power_ratio",
			Message: fmt.Sprintf("remaining buying power ratio %s below min %s", snap.RemainingBuyingPowerRatio, limits.BuyingPower.MinRemainingBuyingPowerRatio),
		})
	}
	if limits.BuyingPower.MarginBufferRequired.IsPositive() && snap.MarginBuffer.LessThan(limits.BuyingPower.MarginBufferRequired) {
		result.Violations = append(result.Violations, Violation{
			Check: "margin_buffer",
			Message: fmt.Sprintf("margin buffer %s below required %s", snap.MarginBuffer, limits.BuyingPower.MarginBufferRequired),
		})
	}

	return result
}

// CandidateFromOrder derives a risk Candidate from a freshly created Order
// plus externally-estimated fill price (an unfilled order has no AvgPx to
// derive notional from).
func CandidateFromOrder(o *order.Order, estimatedPrice values.Money, underlying values.Symbol, greeks Greeks, contracts int) Candidate {
	return Candidate{
		Symbol: o.Symbol(),
		Side: o.Side(),
		Quantity: o.Quantity(),
		EstimatedPrice: estimatedPrice,
		Underlying: underlying,
		Greeks: greeks,
		Contracts: contracts,
	}
}
