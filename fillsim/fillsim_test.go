package fillsim

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCheck_BuyFillsWhenLowCrosses(t *testing.T) {
	candle := Candle{OpenTime: time.Unix(0, 0), Open: d("100"), High: d("102"), Low: d("97"), Close: d("99")}
	orders := []Order{
		{ID: "a", Side: Buy, Price: d("98"), Amount: d("1")},
		{ID: "b", Side: Buy, Price: d("90"), Amount: d("1")},
	}
	fills := Check(candle, orders)
	require.Len(t, fills, 1)
	require.Equal(t, "a", fills[0].OrderID)
	require.True(t, fills[0].Price.Equal(d("98")))
}

func TestCheck_SellFillsWhenHighCrosses(t *testing.T) {
	candle := Candle{OpenTime: time.Unix(0, 0), Open: d("100"), High: d("105"), Low: d("99"), Close: d("103")}
	orders := []Order{
		{ID: "c", Side: Sell, Price: d("104"), Amount: d("1")},
		{ID: "e", Side: Sell, Price: d("110"), Amount: d("1")},
	}
	fills := Check(candle, orders)
	require.Len(t, fills, 1)
	require.Equal(t, "c", fills[0].OrderID)
}

func TestCheck_NoFillsWhenRangeMisses(t *testing.T) {
	candle := Candle{OpenTime: time.Unix(0, 0), Open: d("100"), High: d("101"), Low: d("99"), Close: d("100")}
	orders := []Order{
		{ID: "a", Side: Buy, Price: d("90")},
		{ID: "b", Side: Sell, Price: d("110")},
	}
	require.Empty(t, Check(candle, orders))
}
