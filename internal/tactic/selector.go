// Package tactic implements the execution tactic selector: a pure
// function mapping market context to an order shape, using an ordered
// rule list that falls back to a safe default tactic when nothing
// matches.
package tactic

import (
	"github.com/shopspring/decimal"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

type Urgency string

const (
	Low Urgency = "Low"
	Normal Urgency = "Normal"
	High Urgency = "High"
)

type MarketState string

const (
	MarketNormal MarketState = "Normal"
	MarketWideSpread MarketState = "WideSpread"
)

// Name is one of six named tactics. Only PassiveLimit and AggressiveLimit
// are fully parameterized; the rest degrade to AggressiveLimit until
// implemented.
type Name string

const (
	PassiveLimit Name = "PassiveLimit"
	AggressiveLimit Name = "AggressiveLimit"
	Iceberg Name = "Iceberg"
	TWAP Name = "TWAP"
	VWAP Name = "VWAP"
	Adaptive Name = "Adaptive"
)

// widespreadThresholdBps is the bid/ask spread, as a fraction of mid,
// at or above which a quote is classified WideSpread (50 bps = 0.005).
var widespreadThresholdBps = decimal.NewFromFloat(0.005)

// Context is the input to tactic selection.
type Context struct {
	SizePctADV decimal.Decimal
	Urgency Urgency
	MarketState MarketState
	Purpose order.Purpose
}

// Decision names the selected tactic, a warning if the selection degraded
// to a fallback, and the resulting order parameterization.
type Decision struct {
	Tactic Name
	Degraded bool
	Warning string
	OrderType order.OrderType
	TIF order.TimeInForce
	LimitPrice *values.Money
}

// Select is a pure function: no I/O, no randomness, no mutable state —
// reselecting the same Context always yields the same Decision.
func Select(ctx Context, proposedLimit *values.Money) Decision {
	switch {
	case ctx.Urgency == Low && ctx.MarketState == MarketNormal:
		return passiveLimit(proposedLimit)
	case ctx.Urgency == High:
		return aggressiveLimit(proposedLimit)
	case ctx.MarketState == MarketWideSpread:
		return passiveLimit(proposedLimit)
	default:
		return aggressiveLimit(proposedLimit)
	}
}

func passiveLimit(limit *values.Money) Decision {
	return Decision{
		Tactic: PassiveLimit,
		OrderType: order.Limit,
		TIF: order.Day,
		LimitPrice: limit,
	}
}

func aggressiveLimit(limit *values.Money) Decision {
	if limit == nil {
		return Decision{Tactic: AggressiveLimit, OrderType: order.Market, TIF: order.IOC}
	}
	return Decision{Tactic: AggressiveLimit, OrderType: order.Limit, TIF: order.IOC, LimitPrice: limit}
}

// SelectNamed forces a specific tactic (e.g. operator override or a
// strategy's explicit choice). Iceberg/TWAP/VWAP/Adaptive aren't
// implemented yet and fall through to AggressiveLimit with a warning; an
// unrecognized name does the same.
func SelectNamed(name Name, proposedLimit *values.Money) Decision {
	switch name {
	case PassiveLimit:
		return passiveLimit(proposedLimit)
	case AggressiveLimit:
		return aggressiveLimit(proposedLimit)
	case Iceberg, TWAP, VWAP, Adaptive:
		d := aggressiveLimit(proposedLimit)
		d.Degraded = true
		d.Warning = string(name) + " not implemented, degraded to AggressiveLimit"
		return d
	default:
		d := aggressiveLimit(proposedLimit)
		d.Degraded = true
		d.Warning = "unknown tactic " + string(name) + ", degraded to AggressiveLimit"
		return d
	}
}

// DeriveSizePctADV computes order quantity / mean daily volume over the
// last ~20 trading days (~30 calendar days) of bars, defaulting to 0.5%
// when bars are unavailable or volume is zero.
func DeriveSizePctADV(orderQty values.Quantity, dailyVolumes []values.Quantity) decimal.Decimal {
	if len(dailyVolumes) == 0 {
		return decimal.NewFromFloat(0.005)
	}
	sum := decimal.Zero
	for _, v := range dailyVolumes {
		sum = sum.Add(v.Decimal())
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(dailyVolumes))))
	if mean.IsZero() {
		return decimal.NewFromFloat(0.005)
	}
	return orderQty.Decimal().Div(mean)
}

// DeriveMarketState classifies a quote as WideSpread when the bid/ask
// spread is >= 50bps of mid, defaulting to Normal for a missing or
// malformed quote.
func DeriveMarketState(bid, ask values.Money) MarketState {
	if !bid.IsPositive() || !ask.IsPositive() || ask.LessThan(bid) {
		return MarketNormal
	}
	mid := bid.Decimal().Add(ask.Decimal()).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return MarketNormal
	}
	spread := ask.Decimal().Sub(bid.Decimal())
	spreadFraction := spread.Div(mid)
	if spreadFraction.GreaterThanOrEqual(widespreadThresholdBps) {
		return MarketWideSpread
	}
	return MarketNormal
}
