// Package grid is the Grid Engine's hard core: the planner and sizer pure
// functions, the per-bot control loop that drives them against the
// Ledger and Exchange Gateway, and the auxiliary dip-buyer/profit-taker
// controllers that ride alongside it.
package grid

import (
	"math"

	"gridbot/market"

	"github.com/shopspring/decimal"
)

// Side mirrors exchange.OrderSide without importing the exchange package,
// keeping the planner a pure function of its inputs.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Level is one planned grid level.
type Level struct {
	Index  int
	Price  decimal.Decimal
	Side   Side
	Weight float64
}

// Planner turns a range + requested grid count + current conditions into
// an ordered set of levels. It holds no state; every call is a pure
// function of its arguments.
type Planner struct{}

// NewPlanner constructs a Planner.
func NewPlanner() *Planner { return &Planner{} }

// AdjustGridCount applies the documented volatility scaling: HIGH shrinks
// the requested count by 30% (floor 5), LOW grows it by 30% (cap 20),
// MEDIUM leaves it unchanged.
func AdjustGridCount(requested int, bucket market.VolatilityBucket) int {
	switch bucket {
	case market.VolatilityHigh:
		adjusted := int(math.Floor(float64(requested) * 0.7))
		if adjusted < 5 {
			adjusted = 5
		}
		return adjusted
	case market.VolatilityLow:
		adjusted := int(math.Ceil(float64(requested) * 1.3))
		if adjusted > 20 {
			adjusted = 20
		}
		return adjusted
	default:
		return requested
	}
}

// Plan builds the ordered level set for [lower, upper] split into
// adjustedGridCount intervals (adjustedGridCount+1 boundary points), using
// the geometric curve with exponent 0.85 when volatility data is
// available, or a uniform split as a fallback. Prices are rounded to
// tickSize; a zero tickSize performs no rounding.
func (p *Planner) Plan(lower, upper, currentPrice decimal.Decimal, adjustedGridCount int, tickSize decimal.Decimal, haveVolatilityData bool) []Level {
	n := adjustedGridCount + 1
	if n < 2 {
		n = 2
	}
	width := upper.Sub(lower)
	widthF, _ := width.Float64()
	lowerF, _ := lower.Float64()

	levels := make([]Level, 0, n)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)

		var priceF float64
		if haveVolatilityData {
			priceF = lowerF + math.Pow(frac, 0.85)*widthF
		} else {
			priceF = lowerF + frac*widthF
		}
		price := decimal.NewFromFloat(priceF)
		if !tickSize.IsZero() {
			price = roundToTick(price, tickSize)
		}

		side := Sell
		if price.LessThan(currentPrice) {
			side = Buy
		}

		weight := 1 + (1-2*math.Abs(frac-0.5))*0.5

		levels = append(levels, Level{Index: i, Price: price, Side: side, Weight: weight})
	}
	return levels
}

// roundToTick rounds price down to the nearest multiple of tickSize, the
// conservative direction for a resting limit order (never crosses the
// intended level).
func roundToTick(price, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return price
	}
	steps := price.Div(tickSize).Floor()
	return steps.Mul(tickSize)
}

// GridSpacing is (upper-lower)/gridCount, the distance between adjacent
// planned levels.
func GridSpacing(lower, upper decimal.Decimal, gridCount int) decimal.Decimal {
	if gridCount <= 0 {
		return decimal.Zero
	}
	return upper.Sub(lower).Div(decimal.NewFromInt(int64(gridCount)))
}
