package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gridbot/logger"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

// BinanceGateway drives Binance's spot REST API. It never retries on its
// own; that's the caller's job (the grid engine's cycle loop already
// tolerates a single cycle's worth of gateway errors by skipping to the
// next tick).
type BinanceGateway struct {
	client  *binance.Client
	limiter *limiter
}

// NewBinanceGateway builds a gateway against Binance's production spot API,
// or testnet if useTestnet is set.
func NewBinanceGateway(apiKey, secretKey string, useTestnet bool) *BinanceGateway {
	binance.UseTestnet = useTestnet
	client := binance.NewClient(apiKey, secretKey)
	return &BinanceGateway{
		client:  client,
		limiter: newLimiter(18, 10), // Binance spot weight budget: 1200/min ≈ 20/s; stay under it
	}
}

func (g *BinanceGateway) GetMarket(ctx context.Context, symbol string) (Market, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return Market{}, err
	}
	info, err := g.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return Market{}, classifyBinanceErr(err)
	}
	if len(info.Symbols) == 0 {
		return Market{}, fmt.Errorf("%w: symbol %s", ErrNotFound, symbol)
	}
	s := info.Symbols[0]

	m := Market{
		Symbol:            s.Symbol,
		BaseAsset:         s.BaseAsset,
		QuoteAsset:        s.QuoteAsset,
		PricePrecision:    int32(s.BaseAssetPrecision),
		QuantityPrecision: int32(s.QuoteAssetPrecision),
	}
	for _, f := range s.Filters {
		switch f["filterType"] {
		case "PRICE_FILTER":
			if ts, ok := f["tickSize"].(string); ok {
				m.TickSize, _ = decimal.NewFromString(ts)
			}
		case "LOT_SIZE":
			if ss, ok := f["stepSize"].(string); ok {
				m.StepSize, _ = decimal.NewFromString(ss)
			}
		case "MIN_NOTIONAL", "NOTIONAL":
			if mn, ok := f["minNotional"].(string); ok {
				m.MinNotional, _ = decimal.NewFromString(mn)
			}
		}
	}
	return m, nil
}

func (g *BinanceGateway) FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, classifyBinanceErr(err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("%w: symbol %s", ErrNotFound, symbol)
	}
	return decimal.NewFromString(prices[0].Price)
}

func (g *BinanceGateway) FetchOHLCV(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return nil, err
	}
	klines, err := g.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classifyBinanceErr(err)
	}
	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		c := Candle{OpenTime: msToTime(k.OpenTime)}
		c.Open, _ = decimal.NewFromString(k.Open)
		c.High, _ = decimal.NewFromString(k.High)
		c.Low, _ = decimal.NewFromString(k.Low)
		c.Close, _ = decimal.NewFromString(k.Close)
		c.Volume, _ = decimal.NewFromString(k.Volume)
		candles = append(candles, c)
	}
	return candles, nil
}

func (g *BinanceGateway) PlaceLimitOrder(ctx context.Context, symbol string, side OrderSide, price, amount decimal.Decimal) (*OrderAck, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(toBinanceSide(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(amount.String()).
		Price(price.String()).
		Do(ctx)
	if err != nil {
		return nil, classifyBinanceErr(err)
	}
	logger.Debugf("binance: placed %s %s %s@%s -> order %d", symbol, side, amount, price, resp.OrderID)
	return &OrderAck{OrderID: resp.ClientOrderID, CreatedAt: msToTime(resp.TransactTime)}, nil
}

func (g *BinanceGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := g.limiter.wait(ctx); err != nil {
		return err
	}
	_, err := g.client.NewCancelOrderService().Symbol(symbol).OrigClientOrderID(orderID).Do(ctx)
	if err != nil {
		return classifyBinanceErr(err)
	}
	return nil
}

func (g *BinanceGateway) GetOrderStatus(ctx context.Context, symbol, orderID string) (*OrderStatus, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return nil, err
	}
	order, err := g.client.NewGetOrderService().Symbol(symbol).OrigClientOrderID(orderID).Do(ctx)
	if err != nil {
		return nil, classifyBinanceErr(err)
	}
	return toOrderStatus(order), nil
}

func (g *BinanceGateway) OpenOrders(ctx context.Context, symbol string) ([]OrderStatus, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return nil, err
	}
	orders, err := g.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, classifyBinanceErr(err)
	}
	out := make([]OrderStatus, 0, len(orders))
	for _, o := range orders {
		out = append(out, *toOrderStatus(o))
	}
	return out, nil
}

func (g *BinanceGateway) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	if err := g.limiter.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, classifyBinanceErr(err)
	}
	for _, b := range account.Balances {
		if strings.EqualFold(b.Asset, asset) {
			return decimal.NewFromString(b.Free)
		}
	}
	return decimal.Zero, nil
}

func toBinanceSide(side OrderSide) binance.SideType {
	if side == Sell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func toOrderStatus(o *binance.Order) *OrderStatus {
	status := &OrderStatus{
		OrderID: o.ClientOrderID,
		Symbol:  o.Symbol,
		State:   toOrderState(o.Status),
	}
	status.Price, _ = decimal.NewFromString(o.Price)
	status.Amount, _ = decimal.NewFromString(o.OrigQuantity)
	status.FilledQty, _ = decimal.NewFromString(o.ExecutedQuantity)
	status.UpdatedAt = msToTime(o.UpdateTime)
	if side := strings.ToLower(string(o.Side)); side == string(Sell) {
		status.Side = Sell
	} else {
		status.Side = Buy
	}
	if status.FilledQty.GreaterThan(decimal.Zero) && !status.Amount.IsZero() {
		status.FilledPrice = status.Price
	}
	return status
}

func toOrderState(s binance.OrderStatusType) OrderState {
	switch s {
	case binance.OrderStatusTypeFilled:
		return StateFilled
	case binance.OrderStatusTypePartiallyFilled:
		return StatePartial
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return StateCancelled
	case binance.OrderStatusTypeRejected:
		return StateRejected
	default:
		return StateOpen
	}
}

// classifyBinanceErr maps go-binance's APIError codes onto our sentinel
// kinds so the grid engine never branches on a provider-specific code.
func classifyBinanceErr(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1003, -1015:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		case -2010, -2019:
			return fmt.Errorf("%w: %s", ErrInsufficientFunds, apiErr.Message)
		case -2011, -2013:
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		case -1021, -1022, -2014, -2015:
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.Message)
		case -1013:
			return fmt.Errorf("%w: %s", ErrMarketClosed, apiErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
