package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridbot/fillsim"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperGateway simulates order execution against a real market-data feed.
// Market data (ticker, OHLCV, symbol precision) is read straight through to
// a wrapped live Gateway; only order placement, fills and balances are
// simulated, using the same fillsim package the Backtest Engine replays
// candles through, so a paper bot's fill behavior matches a backtest of
// the same symbol exactly.
type PaperGateway struct {
	feed Gateway

	mu       sync.Mutex
	orders   map[string]*paperOrder
	balances map[string]decimal.Decimal
}

type paperOrder struct {
	symbol string
	side   OrderSide
	price  decimal.Decimal
	amount decimal.Decimal
	status OrderStatus
}

// NewPaperGateway wraps feed for market data and seeds starting balances
// (e.g. {"USDT": 10000}).
func NewPaperGateway(feed Gateway, startingBalances map[string]decimal.Decimal) *PaperGateway {
	balances := make(map[string]decimal.Decimal, len(startingBalances))
	for k, v := range startingBalances {
		balances[k] = v
	}
	return &PaperGateway{
		feed:     feed,
		orders:   make(map[string]*paperOrder),
		balances: balances,
	}
}

func (g *PaperGateway) GetMarket(ctx context.Context, symbol string) (Market, error) {
	return g.feed.GetMarket(ctx, symbol)
}

func (g *PaperGateway) FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return g.feed.FetchTicker(ctx, symbol)
}

func (g *PaperGateway) FetchOHLCV(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	return g.feed.FetchOHLCV(ctx, symbol, interval, limit)
}

func (g *PaperGateway) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, price, amount decimal.Decimal) (*OrderAck, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	g.mu.Lock()
	g.orders[id] = &paperOrder{
		symbol: symbol, side: side, price: price, amount: amount,
		status: OrderStatus{
			OrderID: id, Symbol: symbol, Side: side,
			Price: price, Amount: amount, State: StateOpen, UpdatedAt: now,
		},
	}
	g.mu.Unlock()

	// Check whether the current bar already crosses the limit (e.g. placed
	// inside the spread) so a paper bot never waits a full extra poll for
	// an immediately-marketable order.
	if err := g.tryFill(ctx, id); err != nil {
		return nil, err
	}
	return &OrderAck{OrderID: id, CreatedAt: now}, nil
}

func (g *PaperGateway) tryFill(ctx context.Context, orderID string) error {
	g.mu.Lock()
	o, ok := g.orders[orderID]
	g.mu.Unlock()
	if !ok || o.status.State != StateOpen {
		return nil
	}

	candles, err := g.feed.FetchOHLCV(ctx, o.symbol, "1m", 1)
	if err != nil || len(candles) == 0 {
		return err
	}
	last := candles[len(candles)-1]

	fills := fillsim.Check(
		fillsim.Candle{OpenTime: last.OpenTime, Open: last.Open, High: last.High, Low: last.Low, Close: last.Close},
		[]fillsim.Order{{ID: orderID, Side: fillsim.Side(o.side), Price: o.price, Amount: o.amount}},
	)
	if len(fills) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	o.status.State = StateFilled
	o.status.FilledQty = o.amount
	o.status.FilledPrice = fills[0].Price
	o.status.UpdatedAt = fills[0].At
	return nil
}

func (g *PaperGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.status.State != StateOpen {
		return nil
	}
	o.status.State = StateCancelled
	o.status.UpdatedAt = time.Now().UTC()
	return nil
}

func (g *PaperGateway) GetOrderStatus(ctx context.Context, symbol, orderID string) (*OrderStatus, error) {
	if err := g.tryFill(ctx, orderID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	status := o.status
	return &status, nil
}

func (g *PaperGateway) OpenOrders(ctx context.Context, symbol string) ([]OrderStatus, error) {
	g.mu.Lock()
	ids := make([]string, 0, len(g.orders))
	for id, o := range g.orders {
		if o.symbol == symbol && o.status.State == StateOpen {
			ids = append(ids, id)
		}
	}
	g.mu.Unlock()

	for _, id := range ids {
		if err := g.tryFill(ctx, id); err != nil {
			return nil, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var open []OrderStatus
	for _, id := range ids {
		if o := g.orders[id]; o.status.State == StateOpen {
			open = append(open, o.status)
		}
	}
	return open, nil
}

func (g *PaperGateway) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[asset], nil
}

// ApplyFill adjusts simulated balances for a fill without the gateway
// needing to know about the ledger. The gateway's own fill simulation does
// not call it, so GetBalance changes only through explicit ApplyFill calls.
func (g *PaperGateway) ApplyFill(quoteAsset, baseAsset string, side OrderSide, price, amount, fee decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	value := price.Mul(amount)
	switch side {
	case Buy:
		g.balances[quoteAsset] = g.balances[quoteAsset].Sub(value).Sub(fee)
		g.balances[baseAsset] = g.balances[baseAsset].Add(amount)
	case Sell:
		g.balances[baseAsset] = g.balances[baseAsset].Sub(amount)
		g.balances[quoteAsset] = g.balances[quoteAsset].Add(value).Sub(fee)
	default:
		return fmt.Errorf("exchange: unknown side %q", side)
	}
	return nil
}
