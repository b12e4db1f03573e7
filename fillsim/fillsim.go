// Package fillsim decides whether a resting limit order would have filled
// against a single OHLCV candle. It is shared, unmodified, between the
// paper-trading Exchange Gateway (checked against the newest candle on
// every poll) and the Backtest Engine (checked against every candle in the
// replay), so a symbol's fill behavior is identical whether a bot is
// paper-traded live or backtested.
package fillsim

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the minimal shape fillsim needs: a resting limit order.
type Order struct {
	ID     string
	Side   Side
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Side is buy or sell, duplicated here rather than imported so fillsim has
// no dependency on the exchange or ledger packages.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
}

// Fill is a simulated execution: the order filled at its own limit price,
// never at a better one, matching how a resting maker order actually
// executes on a real book.
type Fill struct {
	OrderID  string
	Price    decimal.Decimal
	Amount   decimal.Decimal
	At       time.Time
}

// Check returns the fills a candle produces against a set of resting
// orders. A buy fills when the candle trades at or below its price; a
// sell fills when the candle trades at or above its price. Intrabar
// ordering (which of several crossed orders filled "first") has no
// observable effect here since each order is independent and
// non-consuming of the others' liquidity — every crossed order fills in
// full, which is the standard simplifying assumption for a grid bot sized
// far below a liquid spot market's depth.
func Check(candle Candle, orders []Order) []Fill {
	var fills []Fill
	for _, o := range orders {
		switch o.Side {
		case Buy:
			if candle.Low.LessThanOrEqual(o.Price) {
				fills = append(fills, Fill{OrderID: o.ID, Price: o.Price, Amount: o.Amount, At: candle.OpenTime})
			}
		case Sell:
			if candle.High.GreaterThanOrEqual(o.Price) {
				fills = append(fills, Fill{OrderID: o.ID, Price: o.Price, Amount: o.Amount, At: candle.OpenTime})
			}
		}
	}
	return fills
}
