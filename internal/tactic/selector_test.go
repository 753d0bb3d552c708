package tactic

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
)

func TestSelect_LowUrgencyNormalMarketIsPassiveLimit(t *testing.T) {
	limit := values.MustMoney("150.00")
	d := Select(Context{Urgency: Low, MarketState: MarketNormal}, &limit)

	require.Equal(t, PassiveLimit, d.Tactic)
	require.Equal(t, order.Limit, d.OrderType)
	require.Equal(t, order.Day, d.TIF)
}

func TestSelect_HighUrgencyIsAggressiveLimit(t *testing.T) {
	limit := values.MustMoney("150.00")
	d := Select(Context{Urgency: High, MarketState: MarketNormal}, &limit)

	require.Equal(t, AggressiveLimit, d.Tactic)
	require.Equal(t, order.Limit, d.OrderType)
	require.Equal(t, order.IOC, d.TIF)
}

func TestSelect_AggressiveLimitWithoutPriceBecomesMarket(t *testing.T) {
	d := Select(Context{Urgency: High}, nil)

	require.Equal(t, AggressiveLimit, d.Tactic)
	require.Equal(t, order.Market, d.OrderType)
	require.Equal(t, order.IOC, d.TIF)
	require.Nil(t, d.LimitPrice)
}

func TestSelectNamed_UnimplementedTacticDegradesWithWarning(t *testing.T) {
	limit := values.MustMoney("150.00")
	d := SelectNamed(VWAP, &limit)

	require.Equal(t, AggressiveLimit, d.Tactic)
	require.True(t, d.Degraded)
	require.NotEmpty(t, d.Warning)
}

func TestDeriveSizePctADV_DefaultsWhenNoBars(t *testing.T) {
	pct := DeriveSizePctADV(values.MustQuantity("100"), nil)
	require.True(t, pct.Equal(decimal.NewFromFloat(0.005)))
}

func TestDeriveSizePctADV_DefaultsWhenVolumeZero(t *testing.T) {
	pct := DeriveSizePctADV(values.MustQuantity("100"), []values.Quantity{values.ZeroQuantity(), values.ZeroQuantity()})
	require.True(t, pct.Equal(decimal.NewFromFloat(0.005)))
}

func TestDeriveSizePctADV_ComputesRatio(t *testing.T) {
	pct := DeriveSizePctADV(values.MustQuantity("100"), []values.Quantity{values.MustQuantity("1000"), values.MustQuantity("1000")})
	require.True(t, pct.Equal(decimal.NewFromFloat(0.1)))
}

func TestDeriveMarketState_WideSpreadAtThreshold(t *testing.T) {
	bid := values.MustMoney("99.75")
	ask := values.MustMoney("100.25")
	require.Equal(t, MarketWideSpread, DeriveMarketState(bid, ask))
}

func TestDeriveMarketState_NormalTightSpread(t *testing.T) {
	bid := values.MustMoney("99.99")
	ask := values.MustMoney("100.01")
	require.Equal(t, MarketNormal, DeriveMarketState(bid, ask))
}

func TestDeriveMarketState_MalformedQuoteDefaultsNormal(t *testing.T) {
	require.Equal(t, MarketNormal, DeriveMarketState(values.MustMoney("100"), values.MustMoney("99")))
	require.Equal(t, MarketNormal, DeriveMarketState(values.ZeroMoney(), values.MustMoney("100")))
}
