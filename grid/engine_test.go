package grid

import (
	"context"
	"sync"
	"testing"
	"time"

	"gridbot/exchange"
	"gridbot/ledger"
	"gridbot/sentiment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-memory exchange.Gateway stub for exercising the
// engine's cycle without a network call.
type fakeGateway struct {
	mu      sync.Mutex
	price   decimal.Decimal
	market  exchange.Market
	candles []exchange.Candle
	orders  map[string]*exchange.OrderStatus
	balance decimal.Decimal
}

func newFakeGateway(symbol string, price decimal.Decimal) *fakeGateway {
	candles := make([]exchange.Candle, 0, 30)
	p, _ := price.Float64()
	for i := 0; i < 30; i++ {
		candles = append(candles, exchange.Candle{
			OpenTime: time.Now().Add(time.Duration(i) * time.Hour),
			Open:     decimal.NewFromFloat(p), High: decimal.NewFromFloat(p * 1.01),
			Low: decimal.NewFromFloat(p * 0.99), Close: decimal.NewFromFloat(p),
		})
	}
	return &fakeGateway{
		price:   price,
		market:  exchange.Market{Symbol: symbol, BaseAsset: "BTC", QuoteAsset: "USDT", TickSize: dec("0.01"), StepSize: dec("0.0001")},
		candles: candles,
		orders:  map[string]*exchange.OrderStatus{},
		balance: dec("100000"),
	}
}

func (f *fakeGateway) GetMarket(ctx context.Context, symbol string) (exchange.Market, error) {
	return f.market, nil
}
func (f *fakeGateway) FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, nil
}
func (f *fakeGateway) FetchOHLCV(ctx context.Context, symbol, interval string, limit int) ([]exchange.Candle, error) {
	return f.candles, nil
}
func (f *fakeGateway) PlaceLimitOrder(ctx context.Context, symbol string, side exchange.OrderSide, price, amount decimal.Decimal) (*exchange.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.orders[id] = &exchange.OrderStatus{
		OrderID: id, Symbol: symbol, Side: side, Price: price, Amount: amount, State: exchange.StateOpen, UpdatedAt: time.Now(),
	}
	return &exchange.OrderAck{OrderID: id, CreatedAt: time.Now()}, nil
}
func (f *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orders, orderID)
	return nil
}
func (f *fakeGateway) GetOrderStatus(ctx context.Context, symbol, orderID string) (*exchange.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, exchange.ErrNotFound
	}
	cp := *o
	return &cp, nil
}
func (f *fakeGateway) OpenOrders(ctx context.Context, symbol string) ([]exchange.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []exchange.OrderStatus
	for _, o := range f.orders {
		if o.State == exchange.StateOpen {
			out = append(out, *o)
		}
	}
	return out, nil
}
func (f *fakeGateway) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeGateway) fillOrder(id string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.State = exchange.StateFilled
		o.FilledQty = o.Amount
		o.FilledPrice = price
		o.UpdatedAt = time.Now()
	}
}

func newTestEngine(t *testing.T) (*Engine, *ledger.Ledger, *fakeGateway) {
	t.Helper()
	l, err := ledger.Open(ledger.Config{Driver: "sqlite", DSN: t.TempDir() + "/test.db"})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	gw := newFakeGateway("BTC/USDT", dec("50000"))
	e := NewEngine(l, gw, sentiment.Disabled{}, DefaultConfig(), NoopNotifier{})
	return e, l, gw
}

func TestTick_PlacesInitialGrid(t *testing.T) {
	e, l, _ := newTestEngine(t)
	_, err := l.CreateBot(ledger.BotConfig{
		Name: "bot-1", Symbol: "BTC/USDT",
		LowerPrice: dec("45000"), UpperPrice: dec("55000"), GridCount: 10, OrderSize: dec("0.01"),
	})
	require.NoError(t, err)
	_, err = l.UpdateBot("bot-1", ledger.BotPatch{Status: ptrStatus(ledger.BotRunning)})
	require.NoError(t, err)

	err = e.Tick(context.Background(), "bot-1", sentiment.Signals{})
	require.NoError(t, err)

	open, err := l.ListOpenOrders("bot-1")
	require.NoError(t, err)
	require.NotEmpty(t, open)
}

func TestTick_SkipsNonRunningBot(t *testing.T) {
	e, l, _ := newTestEngine(t)
	_, err := l.CreateBot(ledger.BotConfig{
		Name: "bot-1", Symbol: "BTC/USDT",
		LowerPrice: dec("45000"), UpperPrice: dec("55000"), GridCount: 10, OrderSize: dec("0.01"),
	})
	require.NoError(t, err)

	err = e.Tick(context.Background(), "bot-1", sentiment.Signals{})
	require.NoError(t, err)

	open, err := l.ListOpenOrders("bot-1")
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestStopLossSweep_ClosesPositionAndPausesBot(t *testing.T) {
	e, l, gw := newTestEngine(t)
	_, err := l.CreateBot(ledger.BotConfig{
		Name: "bot-1", Symbol: "BTC/USDT",
		LowerPrice: dec("45000"), UpperPrice: dec("55000"), GridCount: 10, OrderSize: dec("0.01"),
	})
	require.NoError(t, err)
	_, err = l.UpdateBot("bot-1", ledger.BotPatch{Status: ptrStatus(ledger.BotRunning)})
	require.NoError(t, err)
	_, err = l.UpsertPosition(ledger.Position{
		BotName: "bot-1", Symbol: "BTC/USDT", EntryPrice: dec("50000"), Amount: dec("0.01"), OpenOrderID: "seed-order",
	})
	require.NoError(t, err)

	gw.price = dec("40000") // 20% drop, past the 15% default hard stop

	err = e.Tick(context.Background(), "bot-1", sentiment.Signals{})
	require.NoError(t, err)

	bot, err := l.GetBot("bot-1")
	require.NoError(t, err)
	require.Equal(t, ledger.BotPaused, bot.Status)
	require.Equal(t, ledger.StopReasonStopLossHit, bot.StopReason)

	positions, err := l.ListPositions("bot-1")
	require.NoError(t, err)
	require.Empty(t, positions)
}

func TestReactToFill_PlacesOppositeReplacementAndOpensPosition(t *testing.T) {
	e, l, _ := newTestEngine(t)
	_, err := l.CreateBot(ledger.BotConfig{
		Name: "bot-1", Symbol: "BTC/USDT",
		LowerPrice: dec("45000"), UpperPrice: dec("55000"), GridCount: 10, OrderSize: dec("0.01"),
	})
	require.NoError(t, err)

	filled := ledger.Order{
		ID: "fill-1", BotName: "bot-1", Symbol: "BTC/USDT",
		Side: ledger.Buy, Price: dec("49000"), Amount: dec("0.01"), LevelIndex: 4,
	}
	err = e.ReactToFill(context.Background(), "bot-1", filled)
	require.NoError(t, err)

	open, err := l.ListOpenOrders("bot-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, ledger.Sell, open[0].Side)
	require.True(t, open[0].Price.GreaterThan(dec("49000")))

	positions, err := l.ListPositions("bot-1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
}

func TestReconcileBot_ResolvesExchangeFillBeforePlacement(t *testing.T) {
	e, l, gw := newTestEngine(t)
	_, err := l.CreateBot(ledger.BotConfig{
		Name: "bot-1", Symbol: "BTC/USDT",
		LowerPrice: dec("45000"), UpperPrice: dec("55000"), GridCount: 10, OrderSize: dec("0.01"),
	})
	require.NoError(t, err)
	_, err = l.UpdateBot("bot-1", ledger.BotPatch{Status: ptrStatus(ledger.BotRunning)})
	require.NoError(t, err)

	ack, err := gw.PlaceLimitOrder(context.Background(), "BTC/USDT", exchange.Buy, dec("49000"), dec("0.01"))
	require.NoError(t, err)
	require.NoError(t, l.InsertOrders([]ledger.Order{{
		ID: ack.OrderID, BotName: "bot-1", Symbol: "BTC/USDT",
		Side: ledger.Buy, Price: dec("49000"), Amount: dec("0.01"), LevelIndex: 3, Status: ledger.OrderOpen,
	}}))
	gw.fillOrder(ack.OrderID, dec("49000"))

	r := NewReconciler(l, gw, e)
	err = r.ReconcileBot(context.Background(), "bot-1")
	require.NoError(t, err)

	order, err := l.GetOrder(ack.OrderID)
	require.NoError(t, err)
	require.Equal(t, ledger.OrderFilled, order.Status)

	positions, err := l.ListPositions("bot-1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
}
