// Package exchange is the Exchange Gateway: the one seam between the grid
// engine's deterministic decisions and a real (or simulated) centralized
// spot exchange. Every concrete gateway speaks the same Gateway interface
// so the engine, reconciler and backtest replay never know which one they
// are driving.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel error kinds every Gateway implementation maps its transport's
// errors onto. Callers branch on these with errors.Is, never on a
// provider's raw error string.
var (
	ErrRateLimited        = errors.New("exchange: rate limited")
	ErrTransient          = errors.New("exchange: transient failure, retry")
	ErrAuth               = errors.New("exchange: authentication rejected")
	ErrNotFound           = errors.New("exchange: order not found")
	ErrInsufficientFunds  = errors.New("exchange: insufficient funds")
	ErrMarketClosed       = errors.New("exchange: market closed for trading")
)

// OrderSide mirrors ledger.OrderSide without importing the ledger package;
// gateways are domain-agnostic persistence-wise.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderState is the exchange-reported lifecycle of a placed order.
type OrderState string

const (
	StateOpen      OrderState = "open"
	StateFilled    OrderState = "filled"
	StatePartial   OrderState = "partial"
	StateCancelled OrderState = "cancelled"
	StateRejected  OrderState = "rejected"
)

// OrderAck is returned immediately after placement.
type OrderAck struct {
	OrderID   string
	CreatedAt time.Time
}

// OrderStatus is a point-in-time read of an order's fill progress.
type OrderStatus struct {
	OrderID     string
	Symbol      string
	Side        OrderSide
	Price       decimal.Decimal
	Amount      decimal.Decimal
	FilledQty   decimal.Decimal
	FilledPrice decimal.Decimal
	Fee         decimal.Decimal
	State       OrderState
	UpdatedAt   time.Time
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// Market describes a symbol's tradable precision, the numbers the Grid
// Planner and Position Sizer round against before any order is sent.
type Market struct {
	Symbol          string
	BaseAsset       string
	QuoteAsset      string
	TickSize        decimal.Decimal // minimum price increment
	StepSize        decimal.Decimal // minimum quantity increment
	MinNotional     decimal.Decimal // minimum price*quantity
	PricePrecision  int32
	QuantityPrecision int32
}

// Gateway is the full surface the grid engine drives a spot exchange
// through. Implementations: binance (live), paper (simulated fills shared
// with the backtest engine via the fillsim package).
type Gateway interface {
	// GetMarket returns a symbol's trading precision/filters.
	GetMarket(ctx context.Context, symbol string) (Market, error)

	// FetchTicker returns the current best/last price for a symbol.
	FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error)

	// FetchOHLCV returns up to limit recent candles, oldest first.
	FetchOHLCV(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// PlaceLimitOrder places a GTC limit order and returns its exchange ID.
	PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, price, amount decimal.Decimal) (*OrderAck, error)

	// CancelOrder cancels a resting order. A not-found response (the order
	// already filled or was cancelled) is reported via ErrNotFound so
	// callers can treat it as a race, not a hard failure.
	CancelOrder(ctx context.Context, symbol, orderID string) error

	// GetOrderStatus reads back an order's current fill state.
	GetOrderStatus(ctx context.Context, symbol, orderID string) (*OrderStatus, error)

	// OpenOrders lists every order still resting on the book for a symbol,
	// the reconciler's source of exchange truth.
	OpenOrders(ctx context.Context, symbol string) ([]OrderStatus, error)

	// GetBalance returns the free balance of one asset (e.g. "USDT").
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
}
