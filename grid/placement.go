package grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gridbot/exchange"
	"gridbot/ledger"
	"gridbot/logger"

	"github.com/shopspring/decimal"
)

// cancelStaleOrders is step 4: cancel any resting order priced further
// than staleRange from the current price.
func (e *Engine) cancelStaleOrders(ctx context.Context, snap *snapshot) error {
	if snap.price.IsZero() {
		return nil
	}
	for _, o := range snap.openOrders {
		if o.Status != ledger.OrderOpen {
			continue
		}
		distance := o.Price.Sub(snap.price).Abs().Div(snap.price)
		distF, _ := distance.Float64()
		if distF <= e.cfg.StaleRange {
			continue
		}
		if err := e.gateway.CancelOrder(ctx, snap.bot.Symbol, o.ID); err != nil && !errors.Is(err, exchange.ErrNotFound) {
			logger.Errorf("%s: cancel stale order %s on exchange: %v", snap.bot.Name, o.ID, err)
		}
		if err := e.ledger.CancelOrder(o.ID, "TOO_FAR_FROM_MARKET"); err != nil {
			return fmt.Errorf("cancel stale order %s: %w", o.ID, err)
		}
	}
	return nil
}

// planAndPlace is steps 5 and 6: plan the grid against the bot's current
// range, admit/size each level missing an open order, and place it.
func (e *Engine) planAndPlace(ctx context.Context, snap *snapshot) error {
	bot := snap.bot
	adjusted := AdjustGridCount(bot.GridCount, snap.bucket)
	if adjusted != bot.AdjustedGridCount {
		if _, err := e.ledger.UpdateBot(bot.Name, ledger.BotPatch{AdjustedGridCount: &adjusted}); err != nil {
			return fmt.Errorf("update adjusted grid count: %w", err)
		}
		bot.AdjustedGridCount = adjusted
	}
	levels := e.planner.Plan(bot.LowerPrice, bot.UpperPrice, snap.price, bot.AdjustedGridCount, snap.marketInfo.TickSize, true)

	openByLevel := make(map[int]bool, len(snap.openOrders))
	for _, o := range snap.openOrders {
		if o.Status == ledger.OrderOpen {
			openByLevel[o.LevelIndex] = true
		}
	}

	metrics, err := e.ledger.GetMetrics(bot.Name)
	if err != nil {
		return fmt.Errorf("get metrics: %w", err)
	}
	quoteAsset, baseAsset := splitSymbol(bot.Symbol)
	equity, err := e.availableEquity(ctx, quoteAsset)
	if err != nil {
		return fmt.Errorf("available equity: %w", err)
	}
	_ = baseAsset

	gridSpacing := GridSpacing(bot.LowerPrice, bot.UpperPrice, bot.AdjustedGridCount)
	spacingF, _ := gridSpacing.Float64()
	priceF, _ := snap.price.Float64()
	gridSpacingPct := 0.0
	if priceF > 0 {
		gridSpacingPct = spacingF / priceF * 100
	}

	committedBuys, err := e.committedBuyNotional(bot.Name)
	if err != nil {
		return fmt.Errorf("committed buy notional: %w", err)
	}
	buyBudget := equity.Sub(e.cfg.ReserveUSD).Sub(committedBuys)

	var toInsert []ledger.Order
	for _, lvl := range levels {
		if openByLevel[lvl.Index] {
			continue
		}
		side := toLedgerSide(lvl.Side)

		if snap.sentiment.SkipBuys && side == ledger.Buy {
			continue
		}
		if snap.sentiment.SkipSells && side == ledger.Sell {
			continue
		}

		winRate := metrics.WinRate
		avgWin := metrics.AvgWin
		avgLoss := metrics.AvgLoss

		result := e.sizer.Size(SizerInput{
			BaseOrderSize:       bot.OrderSize,
			CurrentPrice:        snap.price,
			AvailableEquity:     equity,
			WinRate:             winRate,
			AvgWin:              avgWin,
			AvgLoss:             avgLoss,
			TotalTrades:         metrics.TotalTrades,
			ATRPercent:          math.Max(snap.atrPct, 0.01),
			GridSpacingPercent:  gridSpacingPct,
			SentimentMultiplier: snap.sentiment.SizeMultiplier,
			LevelWeight:         lvl.Weight,
			MaxPositionPercent:  e.cfg.MaxPositionPercent,
			MaxRiskPerTrade:     e.cfg.MaxRiskPerTrade,
			MinPositionPercent:  e.cfg.MinPositionPercent,
			KellyFraction:       e.cfg.KellyFraction,
			LotStep:             snap.marketInfo.StepSize,
		})
		amount := result.Size
		if amount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		notional := lvl.Price.Mul(amount)

		if side == ledger.Buy {
			if notional.GreaterThan(buyBudget) {
				logger.Infof("%s: skip buy level %d, would exceed reserve-adjusted budget", bot.Name, lvl.Index)
				continue
			}
		}

		ack, err := e.gateway.PlaceLimitOrder(ctx, bot.Symbol, toGatewaySide(side), lvl.Price, amount)
		if err != nil {
			if errors.Is(err, exchange.ErrInsufficientFunds) {
				logger.Infof("%s: level %d insufficient funds, skipping this cycle", bot.Name, lvl.Index)
				continue
			}
			logger.Errorf("%s: place level %d: %v", bot.Name, lvl.Index, err)
			continue
		}

		if side == ledger.Buy {
			buyBudget = buyBudget.Sub(notional)
		}

		toInsert = append(toInsert, ledger.Order{
			ID: ack.OrderID, BotName: bot.Name, Symbol: bot.Symbol,
			Side: side, Price: lvl.Price, Amount: amount, SizeQuote: notional,
			LevelIndex: lvl.Index, Weight: lvl.Weight, Status: ledger.OrderOpen,
			Source: ledger.SourceEngine, CreatedAt: ack.CreatedAt,
		})
	}

	if len(toInsert) == 0 {
		return nil
	}
	return e.ledger.InsertOrders(toInsert)
}

// ReactToFill is step 7: when the Reconciler marks an order filled, queue
// the opposite-side replacement one grid step away, clamped to the bot's
// range, unless a level already sits there.
func (e *Engine) ReactToFill(ctx context.Context, botName string, filled ledger.Order) error {
	bot, err := e.ledger.GetBot(botName)
	if err != nil {
		return fmt.Errorf("react to fill: %w", err)
	}

	gridSpacing := GridSpacing(bot.LowerPrice, bot.UpperPrice, bot.AdjustedGridCount)

	var replacePrice decimal.Decimal
	var replaceSide ledger.OrderSide
	if filled.Side == ledger.Buy {
		replacePrice = filled.Price.Add(gridSpacing)
		replaceSide = ledger.Sell
	} else {
		replacePrice = filled.Price.Sub(gridSpacing)
		replaceSide = ledger.Buy
	}
	if replacePrice.LessThan(bot.LowerPrice) || replacePrice.GreaterThan(bot.UpperPrice) {
		logger.Infof("%s: fill replacement at %s clamped out of range, skipping", botName, replacePrice)
		return nil
	}

	open, err := e.ledger.ListOpenOrders(botName)
	if err != nil {
		return err
	}
	for _, o := range open {
		if o.LevelIndex == filled.LevelIndex {
			return nil // already has a resting order at this level
		}
	}

	ack, err := e.gateway.PlaceLimitOrder(ctx, bot.Symbol, toGatewaySide(replaceSide), replacePrice, filled.Amount)
	if err != nil {
		return fmt.Errorf("place replacement order: %w", err)
	}
	if err := e.ledger.InsertOrders([]ledger.Order{{
		ID: ack.OrderID, BotName: botName, Symbol: bot.Symbol,
		Side: replaceSide, Price: replacePrice, Amount: filled.Amount, SizeQuote: replacePrice.Mul(filled.Amount),
		LevelIndex: filled.LevelIndex, Weight: filled.Weight, Status: ledger.OrderOpen,
		Source: ledger.SourceEngine, CreatedAt: ack.CreatedAt,
	}}); err != nil {
		return fmt.Errorf("insert replacement order: %w", err)
	}

	// A filled buy opens a position the stop-loss sweep will track.
	if filled.Side == ledger.Buy {
		if _, err := e.ledger.UpsertPosition(ledger.Position{
			BotName: botName, Symbol: bot.Symbol,
			EntryPrice: filled.Price, Amount: filled.Amount, OpenOrderID: filled.ID,
		}); err != nil {
			return fmt.Errorf("open position: %w", err)
		}
	}

	_, err = e.ledger.RecomputeMetrics(botName)
	return err
}

func (e *Engine) availableEquity(ctx context.Context, quoteAsset string) (decimal.Decimal, error) {
	return e.gateway.GetBalance(ctx, quoteAsset)
}

// committedBuyNotional sums sizeQuote across every currently open buy
// order, the "already committed" figure the reserve policy subtracts
// against.
func (e *Engine) committedBuyNotional(botName string) (decimal.Decimal, error) {
	open, err := e.ledger.ListOpenOrders(botName)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, o := range open {
		if o.Side == ledger.Buy {
			total = total.Add(o.SizeQuote)
		}
	}
	return total, nil
}

func toLedgerSide(s Side) ledger.OrderSide {
	if s == Sell {
		return ledger.Sell
	}
	return ledger.Buy
}

func toGatewaySide(s ledger.OrderSide) exchange.OrderSide {
	if s == ledger.Sell {
		return exchange.Sell
	}
	return exchange.Buy
}

// splitSymbol splits a BASE/QUOTE symbol into its two assets.
func splitSymbol(symbol string) (quote, base string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return "USDT", ""
	}
	return parts[1], parts[0]
}
