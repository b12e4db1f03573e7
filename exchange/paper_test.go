package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// stubFeed is a minimal market-data-only Gateway used to drive PaperGateway
// in tests without any network access.
type stubFeed struct {
	candle Candle
	market Market
}

func (s *stubFeed) GetMarket(ctx context.Context, symbol string) (Market, error) { return s.market, nil }
func (s *stubFeed) FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return s.candle.Close, nil
}
func (s *stubFeed) FetchOHLCV(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	return []Candle{s.candle}, nil
}
func (s *stubFeed) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, price, amount decimal.Decimal) (*OrderAck, error) {
	panic("not used by paper gateway")
}
func (s *stubFeed) CancelOrder(ctx context.Context, symbol, orderID string) error { panic("unused") }
func (s *stubFeed) GetOrderStatus(ctx context.Context, symbol, orderID string) (*OrderStatus, error) {
	panic("unused")
}
func (s *stubFeed) OpenOrders(ctx context.Context, symbol string) ([]OrderStatus, error) {
	panic("unused")
}
func (s *stubFeed) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	panic("unused")
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPaperGateway_PlaceAndFillBuy(t *testing.T) {
	feed := &stubFeed{candle: Candle{OpenTime: time.Now(), Open: d("100"), High: d("101"), Low: d("95"), Close: d("99")}}
	g := NewPaperGateway(feed, map[string]decimal.Decimal{"USDT": d("1000")})

	ack, err := g.PlaceLimitOrder(context.Background(), "BTCUSDT", Buy, d("97"), d("1"))
	require.NoError(t, err)

	status, err := g.GetOrderStatus(context.Background(), "BTCUSDT", ack.OrderID)
	require.NoError(t, err)
	require.Equal(t, StateFilled, status.State)
	require.True(t, status.FilledPrice.Equal(d("97")))
}

func TestPaperGateway_OrderStaysOpenWhenNotCrossed(t *testing.T) {
	feed := &stubFeed{candle: Candle{OpenTime: time.Now(), Open: d("100"), High: d("101"), Low: d("99"), Close: d("100")}}
	g := NewPaperGateway(feed, nil)

	ack, err := g.PlaceLimitOrder(context.Background(), "BTCUSDT", Buy, d("50"), d("1"))
	require.NoError(t, err)

	open, err := g.OpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, ack.OrderID, open[0].OrderID)
}

func TestPaperGateway_CancelThenFillIsNoop(t *testing.T) {
	feed := &stubFeed{candle: Candle{OpenTime: time.Now(), Open: d("100"), High: d("101"), Low: d("95"), Close: d("99")}}
	g := NewPaperGateway(feed, nil)

	ack, err := g.PlaceLimitOrder(context.Background(), "BTCUSDT", Sell, d("150"), d("1"))
	require.NoError(t, err)
	require.NoError(t, g.CancelOrder(context.Background(), "BTCUSDT", ack.OrderID))

	feed.candle.High = d("160")
	status, err := g.GetOrderStatus(context.Background(), "BTCUSDT", ack.OrderID)
	require.NoError(t, err)
	require.Equal(t, StateCancelled, status.State)
}

func TestPaperGateway_ApplyFillAdjustsBalances(t *testing.T) {
	feed := &stubFeed{}
	g := NewPaperGateway(feed, map[string]decimal.Decimal{"USDT": d("1000"), "BTC": d("0")})

	require.NoError(t, g.ApplyFill("USDT", "BTC", Buy, d("100"), d("2"), d("0.5")))
	bal, err := g.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	require.True(t, bal.Equal(d("799.5")))

	btcBal, err := g.GetBalance(context.Background(), "BTC")
	require.NoError(t, err)
	require.True(t, btcBal.Equal(d("2")))
}
