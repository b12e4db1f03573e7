package grid

import (
	"context"

	"gridbot/ledger"
	"gridbot/logger"
)

// profitTakerSweep is the Profit Taker controller [ADDED]: closes a
// position outright once its unrealized PnL% crosses takeProfitPct,
// rather than waiting for the grid's own replacement-order ladder to
// walk it back down. Runs after the stop-loss sweep (a loss always takes
// priority over banking a gain) and before the rebalance check.
func (e *Engine) profitTakerSweep(ctx context.Context, snap *snapshot) error {
	for _, pos := range snap.positions {
		entryF, _ := pos.EntryPrice.Float64()
		priceF, _ := snap.price.Float64()
		if entryF == 0 {
			continue
		}
		unrealizedPnlPct := (priceF - entryF) / entryF
		if unrealizedPnlPct < e.cfg.TakeProfitPct {
			continue
		}
		if err := e.closePosition(ctx, snap, pos, "TAKE_PROFIT", ledger.SourceProfitTaker); err != nil {
			return err
		}
		e.notifier.Notify(Event{BotName: snap.bot.Name, Kind: "TAKE_PROFIT",
			Message: "position closed at target profit"})
		logger.Infof("%s: profit taker closed position entry=%s exit=%s", snap.bot.Name, pos.EntryPrice, snap.price)
	}
	return nil
}
