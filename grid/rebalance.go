package grid

import (
	"context"
	"fmt"

	"gridbot/ledger"
	"gridbot/logger"

	"github.com/shopspring/decimal"
)

// rebalanceCheck is step 3: if currentPrice has left [lowerPrice,
// upperPrice] by at least rebalanceThreshold of the range width, cancel
// every open order, re-center the range on currentPrice (40% below, 60%
// above, preserving width), persist it, and bump rebalanceCount. Returns
// rebalanced=true when this fired, so Tick knows to re-plan against the
// new range rather than the stale one already in snap.
func (e *Engine) rebalanceCheck(ctx context.Context, snap *snapshot) (bool, error) {
	bot := snap.bot
	width := bot.UpperPrice.Sub(bot.LowerPrice)
	if width.LessThanOrEqual(decimal.Zero) {
		return false, nil
	}
	threshold := width.Mul(decimal.NewFromFloat(e.cfg.RebalanceThreshold))
	upperBound := bot.UpperPrice.Add(threshold)
	lowerBound := bot.LowerPrice.Sub(threshold)

	outside := snap.price.GreaterThanOrEqual(upperBound) || snap.price.LessThanOrEqual(lowerBound)
	if !outside {
		return false, nil
	}

	if err := e.cancelAllOpenOrders(ctx, bot.Name, bot.Symbol, "REBALANCE"); err != nil {
		return false, fmt.Errorf("cancel orders for rebalance: %w", err)
	}

	newLower := snap.price.Sub(width.Mul(decimal.NewFromFloat(0.4)))
	newUpper := snap.price.Add(width.Mul(decimal.NewFromFloat(0.6)))
	if newLower.LessThanOrEqual(decimal.Zero) {
		newLower = decimal.NewFromFloat(0.00000001)
	}

	if _, err := e.ledger.UpdateBot(bot.Name, ledger.BotPatch{
		LowerPrice:        &newLower,
		UpperPrice:        &newUpper,
		RebalanceCountInc: true,
	}); err != nil {
		return false, fmt.Errorf("persist new range: %w", err)
	}

	e.notifier.Notify(Event{BotName: bot.Name, Kind: "REBALANCE",
		Message: fmt.Sprintf("%s rebalanced to [%s, %s] at price %s", bot.Symbol, newLower, newUpper, snap.price)})
	logger.Infof("%s: rebalanced range to [%s, %s]", bot.Name, newLower, newUpper)
	return true, nil
}

// CancelAllOpenOrders cancels every resting order for a bot on both the
// exchange and the Ledger, reason "MANUAL_STOP". Exported for the CLI's
// stop/delete/rebalance commands, which need the same cancellation the
// rebalance step performs internally.
func (e *Engine) CancelAllOpenOrders(ctx context.Context, botName, symbol string) error {
	return e.cancelAllOpenOrders(ctx, botName, symbol, ledger.StopReasonManual)
}

// cancelAllOpenOrders cancels every resting order for a bot, used by both
// the rebalance step and the CLI's stop/delete commands.
func (e *Engine) cancelAllOpenOrders(ctx context.Context, botName, symbol, reason string) error {
	open, err := e.ledger.ListOpenOrders(botName)
	if err != nil {
		return err
	}
	for _, o := range open {
		if err := e.gateway.CancelOrder(ctx, symbol, o.ID); err != nil {
			logger.Errorf("%s: cancel %s on exchange: %v (treating as already gone)", botName, o.ID, err)
		}
		if err := e.ledger.CancelOrder(o.ID, reason); err != nil {
			return fmt.Errorf("cancel %s in ledger: %w", o.ID, err)
		}
	}
	return nil
}
