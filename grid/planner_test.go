package grid

import (
	"testing"

	"gridbot/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAdjustGridCount(t *testing.T) {
	require.Equal(t, 7, AdjustGridCount(10, market.VolatilityHigh))
	require.Equal(t, 5, AdjustGridCount(6, market.VolatilityHigh)) // floor 5
	require.Equal(t, 13, AdjustGridCount(10, market.VolatilityLow))
	require.Equal(t, 20, AdjustGridCount(18, market.VolatilityLow)) // cap 20
	require.Equal(t, 10, AdjustGridCount(10, market.VolatilityMedium))
}

func TestPlan_CreateAndPlanScenario(t *testing.T) {
	p := NewPlanner()
	levels := p.Plan(dec("90000"), dec("100000"), dec("95000"), 10, decimal.Zero, true)
	require.Len(t, levels, 11)

	for _, l := range levels {
		if l.Price.LessThan(dec("95000")) {
			require.Equal(t, Buy, l.Side)
		} else {
			require.Equal(t, Sell, l.Side)
		}
		require.GreaterOrEqual(t, l.Weight, 1.0)
		require.LessOrEqual(t, l.Weight, 1.5)
	}
	require.True(t, levels[0].Price.Equal(dec("90000")))
	require.True(t, levels[10].Price.Equal(dec("100000")))
}

func TestPlan_PriceExactlyOnLevelIsSell(t *testing.T) {
	p := NewPlanner()
	levels := p.Plan(dec("0"), dec("100"), dec("50"), 2, decimal.Zero, false)
	require.Len(t, levels, 3)
	found := false
	for _, l := range levels {
		if l.Price.Equal(dec("50")) {
			require.Equal(t, Sell, l.Side, "price equal to current must tiebreak to sell")
			found = true
		}
	}
	require.True(t, found)
}

func TestPlan_TickSizeRounding(t *testing.T) {
	p := NewPlanner()
	levels := p.Plan(dec("10"), dec("11"), dec("10.5"), 2, dec("0.1"), false)
	for _, l := range levels {
		mod := l.Price.Div(dec("0.1")).Sub(l.Price.Div(dec("0.1")).Floor())
		require.True(t, mod.IsZero(), "price %s not aligned to tick", l.Price)
	}
}

func TestGridSpacing(t *testing.T) {
	require.True(t, GridSpacing(dec("90000"), dec("100000"), 10).Equal(dec("1000")))
}
