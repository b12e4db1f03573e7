package grid

import (
	"context"
	"fmt"

	"gridbot/exchange"
	"gridbot/ledger"
	"gridbot/logger"
	"gridbot/market"
	"gridbot/sentiment"

	"github.com/shopspring/decimal"
)

// Engine is the per-bot runtime: it consumes a market snapshot plus
// sentiment, maintains the open-order set against the Ledger, reacts to
// fills, cancels stale orders, triggers rebalance, and enforces stops.
// One Engine instance is shared across bots; all per-bot state lives in
// the Ledger, never in the Engine itself, so a single Engine can run
// every bot's task concurrently.
type Engine struct {
	ledger    *ledger.Ledger
	gateway   exchange.Gateway
	modulator sentiment.Modulator
	planner   *Planner
	sizer     *Sizer
	cfg       Config
	notifier  Notifier
}

// NewEngine wires the Engine's collaborators. A nil notifier defaults to
// NoopNotifier.
func NewEngine(l *ledger.Ledger, gw exchange.Gateway, mod sentiment.Modulator, cfg Config, notifier Notifier) *Engine {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Engine{
		ledger:    l,
		gateway:   gw,
		modulator: mod,
		planner:   NewPlanner(),
		sizer:     NewSizer(),
		cfg:       cfg,
		notifier:  notifier,
	}
}

// snapshot is what step 1 of the cycle gathers before any decision runs.
type snapshot struct {
	bot          *ledger.Bot
	marketInfo   exchange.Market
	price        decimal.Decimal
	atrPct       float64
	bucket       market.VolatilityBucket
	regime       market.Regime
	sentiment    sentiment.Output
	candles      []exchange.Candle
	openOrders   []ledger.Order
	positions    []ledger.Position
}

// Tick runs exactly one cycle for botName. signals is the caller's most
// recent sentiment read (fetched by a collaborator this package never
// reaches for directly). Returns nil for a bot that isn't Running — the
// caller's scheduler decides whether to keep ticking a stopped bot.
func (e *Engine) Tick(ctx context.Context, botName string, signals sentiment.Signals) error {
	bot, err := e.ledger.GetBot(botName)
	if err != nil {
		return fmt.Errorf("tick %s: %w", botName, err)
	}
	if bot.Status != ledger.BotRunning {
		return nil
	}

	snap, err := e.acquireSnapshot(ctx, bot, signals)
	if err != nil {
		return fmt.Errorf("tick %s: acquire snapshot: %w", botName, err)
	}

	if stopped, err := e.stopLossSweep(ctx, snap); err != nil {
		logger.Errorf("tick %s: stop-loss sweep: %v", botName, err)
	} else if stopped {
		return nil // bot paused; no further steps this cycle
	}

	if e.cfg.ProfitTakerEnabled {
		if err := e.profitTakerSweep(ctx, snap); err != nil {
			logger.Errorf("tick %s: profit taker: %v", botName, err)
		}
	}

	rebalanced, err := e.rebalanceCheck(ctx, snap)
	if err != nil {
		logger.Errorf("tick %s: rebalance check: %v", botName, err)
	}
	if rebalanced {
		// Range changed; re-fetch the bot so downstream steps plan
		// against the new [lowerPrice, upperPrice].
		bot, err = e.ledger.GetBot(botName)
		if err != nil {
			return fmt.Errorf("tick %s: reload after rebalance: %w", botName, err)
		}
		snap.bot = bot
		snap.openOrders = nil // all cancelled by rebalanceCheck
	}

	if err := e.cancelStaleOrders(ctx, snap); err != nil {
		logger.Errorf("tick %s: stale-order cancellation: %v", botName, err)
	}

	if e.cfg.DipBuyerEnabled {
		if err := e.dipBuyerCheck(ctx, snap); err != nil {
			logger.Errorf("tick %s: dip buyer: %v", botName, err)
		}
	}

	if err := e.planAndPlace(ctx, snap); err != nil {
		return fmt.Errorf("tick %s: plan and place: %w", botName, err)
	}

	return nil
}

func (e *Engine) acquireSnapshot(ctx context.Context, bot *ledger.Bot, signals sentiment.Signals) (*snapshot, error) {
	price, err := e.gateway.FetchTicker(ctx, bot.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch ticker: %w", err)
	}
	marketInfo, err := e.gateway.GetMarket(ctx, bot.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch market info: %w", err)
	}
	candles, err := e.gateway.FetchOHLCV(ctx, bot.Symbol, "1h", 50)
	if err != nil {
		return nil, fmt.Errorf("fetch ohlcv: %w", err)
	}

	atrPct, bucket, regime := featuresFromCandles(price, candles)

	openOrders, err := e.ledger.ListOpenOrders(bot.Name)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	positions, err := e.ledger.ListPositions(bot.Name)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	return &snapshot{
		bot:        bot,
		marketInfo: marketInfo,
		price:      price,
		atrPct:     atrPct,
		bucket:     bucket,
		regime:     regime,
		sentiment:  e.modulator.Evaluate(bot.Symbol, signals),
		candles:    candles,
		openOrders: openOrders,
		positions:  positions,
	}, nil
}

// featuresFromCandles derives ATR%, the volatility bucket and the regime
// from an OHLCV window, the Market Feature Service's whole job.
func featuresFromCandles(price decimal.Decimal, candles []exchange.Candle) (atrPct float64, bucket market.VolatilityBucket, regime market.Regime) {
	if len(candles) == 0 || price.IsZero() {
		return 0, market.VolatilityMedium, market.RegimeStandard
	}
	mkt := make([]market.Candle, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		open, _ := c.Open.Float64()
		high, _ := c.High.Float64()
		low, _ := c.Low.Float64()
		cl, _ := c.Close.Float64()
		mkt[i] = market.Candle{Open: open, High: high, Low: low, Close: cl}
		closes[i] = cl
	}
	priceF, _ := price.Float64()

	atr := market.ATR(mkt, 14)
	if priceF > 0 {
		atrPct = atr / priceF * 100
	}
	bollWidth := market.BollingerWidth(closes, 20, 2)

	bucket = market.ClassifyVolatilityBucket(atrPct)
	regime = market.ClassifyRegime(bollWidth, atrPct)
	return atrPct, bucket, regime
}
