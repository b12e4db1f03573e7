package grid

import (
	"context"
	"fmt"

	"gridbot/exchange"
	"gridbot/ledger"
	"gridbot/logger"

	"github.com/shopspring/decimal"
)

// dipBuyerCheck is the Dip Buyer controller: an extra buy placed outside
// the regular grid when price has dropped sharply from a rolling
// reference high, admitted and scaled by the sentiment modulator's
// dip-buyer multiplier. Its size comes from DipBuyerReserveUSD rather than
// the grid's buy budget; while it rests, the order counts toward the bot's
// committed buy notional like any other open buy.
func (e *Engine) dipBuyerCheck(ctx context.Context, snap *snapshot) error {
	referenceHigh := rollingHigh(snap.candles, e.cfg.DipBuyerLookback)
	if referenceHigh.IsZero() {
		return nil
	}
	dropThreshold := referenceHigh.Mul(decimal.NewFromFloat(1 - e.cfg.DipBuyerDropPct))
	if snap.price.GreaterThan(dropThreshold) {
		return nil // no qualifying dip this cycle
	}

	mult := snap.sentiment.DipBuyerMultiplier
	if mult <= 0 {
		return nil // sentiment says sit this one out
	}

	already, err := e.hasOpenDipBuyerOrder(snap.bot.Name)
	if err != nil {
		return fmt.Errorf("check existing dip buy: %w", err)
	}
	if already {
		return nil // one resting dip buy at a time
	}

	budget := e.cfg.DipBuyerReserveUSD
	if budget.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	notional := budget.Mul(decimal.NewFromFloat(mult))
	if notional.GreaterThan(budget) {
		notional = budget
	}
	amount := notional.Div(snap.price)
	if snap.marketInfo.StepSize.GreaterThan(decimal.Zero) {
		steps := amount.Div(snap.marketInfo.StepSize).Floor()
		amount = steps.Mul(snap.marketInfo.StepSize)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	ack, err := e.gateway.PlaceLimitOrder(ctx, snap.bot.Symbol, exchange.Buy, snap.price, amount)
	if err != nil {
		logger.Errorf("%s: dip buyer place order: %v", snap.bot.Name, err)
		return nil
	}
	if err := e.ledger.InsertOrders([]ledger.Order{{
		ID: ack.OrderID, BotName: snap.bot.Name, Symbol: snap.bot.Symbol,
		Side: ledger.Buy, Price: snap.price, Amount: amount, SizeQuote: snap.price.Mul(amount),
		LevelIndex: -2, Status: ledger.OrderOpen, Source: ledger.SourceDipBuyer, CreatedAt: ack.CreatedAt,
	}}); err != nil {
		return fmt.Errorf("insert dip buy order: %w", err)
	}

	e.notifier.Notify(Event{BotName: snap.bot.Name, Kind: "DIP_BUY",
		Message: fmt.Sprintf("%s dip buy %s at %s (reference high %s)", snap.bot.Symbol, amount, snap.price, referenceHigh)})
	logger.Infof("%s: dip buyer placed %s @ %s", snap.bot.Name, amount, snap.price)
	return nil
}

func (e *Engine) hasOpenDipBuyerOrder(botName string) (bool, error) {
	open, err := e.ledger.ListOpenOrders(botName)
	if err != nil {
		return false, err
	}
	for _, o := range open {
		if o.Source == ledger.SourceDipBuyer {
			return true, nil
		}
	}
	return false, nil
}

// rollingHigh returns the highest close over the trailing lookback
// candles, or zero if there is no data.
func rollingHigh(candles []exchange.Candle, lookback int) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	start := 0
	if len(candles) > lookback {
		start = len(candles) - lookback
	}
	high := candles[start].Close
	for _, c := range candles[start:] {
		if c.Close.GreaterThan(high) {
			high = c.Close
		}
	}
	return high
}
