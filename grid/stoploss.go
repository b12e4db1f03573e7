package grid

import (
	"context"
	"fmt"

	"gridbot/exchange"
	"gridbot/ledger"
	"gridbot/logger"

	"github.com/shopspring/decimal"
)

// stopLossSweep is step 2 of the cycle: walk every open position, apply
// the hard stop-loss and the ratcheting trailing stop. Returns stopped=true
// if the bot was paused this cycle, telling Tick to skip the remaining
// steps (a paused bot places no new orders).
func (e *Engine) stopLossSweep(ctx context.Context, snap *snapshot) (bool, error) {
	for _, pos := range snap.positions {
		entryF, _ := pos.EntryPrice.Float64()
		priceF, _ := snap.price.Float64()
		if entryF == 0 {
			continue
		}
		unrealizedPnlPct := (priceF - entryF) / entryF

		hardStopPrice := pos.EntryPrice.Mul(decimal.NewFromFloat(1 - e.cfg.StopLossPct))
		if snap.price.LessThanOrEqual(hardStopPrice) {
			if err := e.closePosition(ctx, snap, pos, ledger.StopReasonStopLossHit, ledger.SourceEngine); err != nil {
				return false, err
			}
			if _, err := e.ledger.UpdateBot(snap.bot.Name, ledger.BotPatch{
				Status:     ptrStatus(ledger.BotPaused),
				StopReason: ptrString(ledger.StopReasonStopLossHit),
			}); err != nil {
				return false, err
			}
			e.notifier.Notify(Event{BotName: snap.bot.Name, Kind: "STOP_LOSS_HIT",
				Message: fmt.Sprintf("%s hard stop at %s (entry %s)", snap.bot.Symbol, snap.price, pos.EntryPrice)})
			return true, nil
		}

		if unrealizedPnlPct > e.cfg.ProfitLockThreshold {
			newTrailingStop := snap.price.Mul(decimal.NewFromFloat(1 - e.cfg.TrailingPct))
			if pos.TrailingStopPrice == nil || newTrailingStop.GreaterThan(*pos.TrailingStopPrice) {
				if err := e.ledger.UpdateTrailingStop(pos.ID, newTrailingStop, unrealizedPnlPct*100); err != nil {
					return false, err
				}
				pos.TrailingStopPrice = &newTrailingStop
			}
		}

		if pos.TrailingStopPrice != nil && snap.price.LessThanOrEqual(*pos.TrailingStopPrice) {
			if err := e.closePosition(ctx, snap, pos, ledger.StopReasonTrailingStop, ledger.SourceEngine); err != nil {
				return false, err
			}
			if _, err := e.ledger.UpdateBot(snap.bot.Name, ledger.BotPatch{
				Status:     ptrStatus(ledger.BotPaused),
				StopReason: ptrString(ledger.StopReasonTrailingStop),
			}); err != nil {
				return false, err
			}
			e.notifier.Notify(Event{BotName: snap.bot.Name, Kind: "TRAILING_STOP",
				Message: fmt.Sprintf("%s trailing stop at %s (entry %s)", snap.bot.Symbol, snap.price, pos.EntryPrice)})
			return true, nil
		}
	}
	return false, nil
}

// closePosition places an immediate sell of the position's full amount at
// the current price and removes the position once the ledger fill lands.
// The Exchange Gateway only exposes limit orders, so "immediate" means a
// limit priced at the current ticker — aggressive enough to cross the
// resting book on a liquid spot pair, the same assumption the fill
// simulator makes for a candle-close exit.
func (e *Engine) closePosition(ctx context.Context, snap *snapshot, pos ledger.Position, reason string, source ledger.OrderSource) error {
	ack, err := e.gateway.PlaceLimitOrder(ctx, snap.bot.Symbol, exchange.Sell, snap.price, pos.Amount)
	if err != nil {
		return fmt.Errorf("place closing order: %w", err)
	}
	if err := e.ledger.InsertOrders([]ledger.Order{{
		ID: ack.OrderID, BotName: snap.bot.Name, Symbol: snap.bot.Symbol,
		Side: ledger.Sell, Price: snap.price, Amount: pos.Amount, SizeQuote: snap.price.Mul(pos.Amount),
		LevelIndex: -1, Status: ledger.OrderOpen, Source: source, CreatedAt: ack.CreatedAt,
	}}); err != nil {
		return fmt.Errorf("insert closing order: %w", err)
	}
	fee := snap.price.Mul(pos.Amount).Mul(decimal.NewFromFloat(e.cfg.TakerFee))
	trade, err := e.ledger.FillOrder(ack.OrderID, ledger.FillParams{FilledPrice: snap.price, Fee: fee})
	if err != nil {
		return fmt.Errorf("fill closing order: %w", err)
	}
	profit := snap.price.Sub(pos.EntryPrice).Mul(pos.Amount).Sub(fee)
	if err := e.ledger.SetTradeProfit(trade.ID, profit); err != nil {
		return fmt.Errorf("record profit: %w", err)
	}
	if err := e.ledger.ClosePosition(pos.ID); err != nil {
		return fmt.Errorf("close position record: %w", err)
	}
	_, err = e.ledger.RecomputeMetrics(snap.bot.Name)
	logger.Infof("%s: closed position entry=%s exit=%s reason=%s", snap.bot.Name, pos.EntryPrice, snap.price, reason)
	return err
}

func ptrStatus(s ledger.BotStatus) *ledger.BotStatus { return &s }
func ptrString(s string) *string                     { return &s }
