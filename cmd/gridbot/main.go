// Command gridbot is the thin CLI surface over the Grid Engine and
// Ledger: create/inspect/control bots, or run the cycle loop for one of
// them in the foreground.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbot/backtest"
	"gridbot/config"
	"gridbot/exchange"
	"gridbot/grid"
	"gridbot/ledger"
	"gridbot/logger"
	"gridbot/sentiment"

	"github.com/shopspring/decimal"
)

// Exit codes per the documented CLI contract.
const (
	exitOK         = 0
	exitGeneric    = 1
	exitValidation = 2
	exitNotFound   = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gridbot <create|list|show|start|stop|delete|rebalance|status|monitor|backtest> [flags]")
		return exitGeneric
	}

	cfgPath := os.Getenv("GRIDBOT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return exitGeneric
	}
	if err := logger.InitWithSimpleConfig(cfg.Log.Level); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		return exitGeneric
	}

	l, err := ledger.Open(ledger.Config{Driver: cfg.Ledger.Driver, DSN: cfg.Ledger.DSN})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open ledger:", err)
		return exitGeneric
	}
	defer l.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return cmdCreate(l, rest)
	case "list":
		return cmdList(l, rest)
	case "show":
		return cmdShow(l, rest)
	case "start":
		return cmdStart(l, rest)
	case "stop":
		return cmdStop(l, cfg, rest)
	case "delete":
		return cmdDelete(l, cfg, rest)
	case "rebalance":
		return cmdRebalance(l, cfg, rest)
	case "status":
		return cmdStatus(l, cfg, rest)
	case "monitor":
		return cmdMonitor(l, cfg, rest)
	case "backtest":
		return cmdBacktest(l, cfg, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return exitGeneric
	}
}

func newGateway(cfg *config.Config) exchange.Gateway {
	live := exchange.NewBinanceGateway(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.UseTestnet)
	if cfg.Exchange.Paper {
		return exchange.NewPaperGateway(live, map[string]decimal.Decimal{"USDT": decimal.NewFromInt(100000)})
	}
	return live
}

func newModulator(cfg *config.Config) sentiment.Modulator {
	if !cfg.Sentiment.Enabled {
		return sentiment.Disabled{}
	}
	return sentiment.NewComposite(sentiment.DefaultWeights(), sentiment.DefaultThresholds())
}

func engineConfig(cfg *config.Config) grid.Config {
	gc := grid.DefaultConfig()
	e := cfg.Engine
	gc.CycleInterval = time.Duration(e.CycleIntervalSeconds) * time.Second
	gc.StopLossPct = e.StopLossPct
	gc.ProfitLockThreshold = e.ProfitLockThreshold
	gc.TrailingPct = e.TrailingPct
	gc.RebalanceThreshold = e.RebalanceThreshold
	gc.StaleRange = e.StaleRange
	gc.MaxPositionPercent = e.MaxPositionPercent
	gc.MaxRiskPerTrade = e.MaxRiskPerTrade
	gc.MinPositionPercent = e.MinPositionPercent
	gc.KellyFraction = e.KellyFraction
	gc.TakerFee = e.TakerFee
	gc.DipBuyerEnabled = e.DipBuyerEnabled
	gc.DipBuyerDropPct = e.DipBuyerDropPct
	gc.DipBuyerLookback = e.DipBuyerLookback
	gc.ProfitTakerEnabled = e.ProfitTakerEnabled
	gc.TakeProfitPct = e.TakeProfitPct
	if v, err := decimal.NewFromString(e.ReserveUSD); err == nil {
		gc.ReserveUSD = v
	}
	if v, err := decimal.NewFromString(e.DipBuyerReserveUSD); err == nil {
		gc.DipBuyerReserveUSD = v
	}
	return gc
}

func cmdCreate(l *ledger.Ledger, args []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	name := fs.String("name", "", "bot name")
	symbol := fs.String("symbol", "BTC/USDT", "trading pair")
	lower := fs.String("lower", "", "lower price bound")
	upper := fs.String("upper", "", "upper price bound")
	grids := fs.Int("grids", 0, "requested grid count")
	size := fs.String("size", "", "base order size")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	lowerDec, err1 := decimal.NewFromString(*lower)
	upperDec, err2 := decimal.NewFromString(*upper)
	sizeDec, err3 := decimal.NewFromString(*size)
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Fprintln(os.Stderr, "create: lower, upper and size must be valid decimals")
		return exitValidation
	}

	bot, err := l.CreateBot(ledger.BotConfig{
		Name: *name, Symbol: *symbol, LowerPrice: lowerDec, UpperPrice: upperDec,
		GridCount: *grids, OrderSize: sizeDec,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "create:", err)
		if isValidationErr(err) {
			return exitValidation
		}
		return exitGeneric
	}
	fmt.Printf("created bot %q (%s) [%s, %s] x%d\n", bot.Name, bot.Symbol, bot.LowerPrice, bot.UpperPrice, bot.GridCount)
	return exitOK
}

func cmdList(l *ledger.Ledger, args []string) int {
	bots, err := l.ListBots()
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		return exitGeneric
	}
	if len(bots) == 0 {
		fmt.Println("no bots configured")
		return exitOK
	}
	for _, b := range bots {
		fmt.Printf("%-20s %-10s %-8s [%s, %s] grids=%d/%d rebalances=%d\n",
			b.Name, b.Symbol, b.Status, b.LowerPrice, b.UpperPrice, b.GridCount, b.AdjustedGridCount, b.RebalanceCount)
	}
	return exitOK
}

func cmdShow(l *ledger.Ledger, args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	name := fs.String("name", "", "bot name")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	bot, err := l.GetBot(*name)
	if err != nil {
		return notFoundOrGeneric(err, "show")
	}
	metrics, err := l.GetMetrics(bot.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "show: metrics:", err)
		return exitGeneric
	}
	open, _ := l.ListOpenOrders(bot.Name)
	positions, _ := l.ListPositions(bot.Name)

	fmt.Printf("%s (%s) status=%s stopReason=%q\n", bot.Name, bot.Symbol, bot.Status, bot.StopReason)
	fmt.Printf("  range [%s, %s] grids=%d adjusted=%d rebalances=%d\n", bot.LowerPrice, bot.UpperPrice, bot.GridCount, bot.AdjustedGridCount, bot.RebalanceCount)
	fmt.Printf("  open orders: %d   open positions: %d\n", len(open), len(positions))
	fmt.Printf("  trades=%d winRate=%.1f%% profitFactor=%.2f sharpe=%.2f maxDD=%.1f%% totalPnl=%s\n",
		metrics.TotalTrades, metrics.WinRate*100, metrics.ProfitFactor, metrics.SharpeRatio, metrics.MaxDrawdownPct, metrics.TotalPnl)
	return exitOK
}

func cmdStart(l *ledger.Ledger, args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	name := fs.String("name", "", "bot name")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	running := ledger.BotRunning
	if _, err := l.UpdateBot(*name, ledger.BotPatch{Status: &running}); err != nil {
		return notFoundOrGeneric(err, "start")
	}
	fmt.Printf("bot %q is running\n", *name)
	return exitOK
}

func cmdStop(l *ledger.Ledger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	name := fs.String("name", "", "bot name")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	bot, err := l.GetBot(*name)
	if err != nil {
		return notFoundOrGeneric(err, "stop")
	}

	gw := newGateway(cfg)
	e := grid.NewEngine(l, gw, newModulator(cfg), engineConfig(cfg), grid.NoopNotifier{})
	if err := cancelAllOrders(e, context.Background(), bot.Name, bot.Symbol); err != nil {
		fmt.Fprintln(os.Stderr, "stop: cancel orders:", err)
		return exitGeneric
	}

	stopped := ledger.BotStopped
	reason := ledger.StopReasonManual
	if _, err := l.UpdateBot(*name, ledger.BotPatch{Status: &stopped, StopReason: &reason}); err != nil {
		return notFoundOrGeneric(err, "stop")
	}
	fmt.Printf("bot %q stopped\n", *name)
	return exitOK
}

func cmdDelete(l *ledger.Ledger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	name := fs.String("name", "", "bot name")
	force := fs.Bool("force", false, "delete even if running")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	bot, err := l.GetBot(*name)
	if err != nil {
		return notFoundOrGeneric(err, "delete")
	}
	if bot.Status == ledger.BotRunning && !*force {
		fmt.Fprintln(os.Stderr, "delete: bot is running, pass --force to delete anyway")
		return exitValidation
	}

	gw := newGateway(cfg)
	e := grid.NewEngine(l, gw, newModulator(cfg), engineConfig(cfg), grid.NoopNotifier{})
	if err := cancelAllOrders(e, context.Background(), bot.Name, bot.Symbol); err != nil {
		fmt.Fprintln(os.Stderr, "delete: cancel orders:", err)
		return exitGeneric
	}

	if err := l.DeleteBot(*name); err != nil {
		return notFoundOrGeneric(err, "delete")
	}
	fmt.Printf("bot %q deleted\n", *name)
	return exitOK
}

func cmdRebalance(l *ledger.Ledger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("rebalance", flag.ContinueOnError)
	name := fs.String("name", "", "bot name")
	lower := fs.String("lower", "", "new lower bound (optional)")
	upper := fs.String("upper", "", "new upper bound (optional)")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	bot, err := l.GetBot(*name)
	if err != nil {
		return notFoundOrGeneric(err, "rebalance")
	}

	gw := newGateway(cfg)
	e := grid.NewEngine(l, gw, newModulator(cfg), engineConfig(cfg), grid.NoopNotifier{})
	if err := cancelAllOrders(e, context.Background(), bot.Name, bot.Symbol); err != nil {
		fmt.Fprintln(os.Stderr, "rebalance: cancel orders:", err)
		return exitGeneric
	}

	patch := ledger.BotPatch{RebalanceCountInc: true}
	if *lower != "" {
		d, err := decimal.NewFromString(*lower)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rebalance: invalid --lower")
			return exitValidation
		}
		patch.LowerPrice = &d
	}
	if *upper != "" {
		d, err := decimal.NewFromString(*upper)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rebalance: invalid --upper")
			return exitValidation
		}
		patch.UpperPrice = &d
	}
	if _, err := l.UpdateBot(*name, patch); err != nil {
		return notFoundOrGeneric(err, "rebalance")
	}
	fmt.Printf("bot %q rebalanced\n", *name)
	return exitOK
}

func cmdStatus(l *ledger.Ledger, cfg *config.Config, args []string) int {
	gw := newGateway(cfg)
	bots, err := l.ListBots()
	if err != nil {
		fmt.Fprintln(os.Stderr, "status:", err)
		return exitGeneric
	}
	running, totalTrades := 0, 0
	for _, b := range bots {
		if b.Status == ledger.BotRunning {
			running++
		}
		if m, err := l.GetMetrics(b.Name); err == nil {
			totalTrades += m.TotalTrades
		}
	}
	balance, err := gw.GetBalance(context.Background(), "USDT")
	if err != nil {
		fmt.Fprintln(os.Stderr, "status: exchange unreachable:", err)
		return exitGeneric
	}
	fmt.Printf("exchange: connected, paper=%v, USDT balance=%s\n", cfg.Exchange.Paper, balance)
	fmt.Printf("bots: %d total, %d running\n", len(bots), running)
	fmt.Printf("trades: %d total\n", totalTrades)
	return exitOK
}

func cmdMonitor(l *ledger.Ledger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	name := fs.String("name", "", "bot name")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if _, err := l.GetBot(*name); err != nil {
		return notFoundOrGeneric(err, "monitor")
	}

	gw := newGateway(cfg)
	gc := engineConfig(cfg)
	e := grid.NewEngine(l, gw, newModulator(cfg), gc, grid.NoopNotifier{})
	r := grid.NewReconciler(l, gw, e)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() { <-sigCh; cancel() }()

	ticker := time.NewTicker(gc.CycleInterval)
	defer ticker.Stop()

	fmt.Printf("monitoring %q, cycle every %s (ctrl-c to stop)\n", *name, gc.CycleInterval)
	for {
		r.ReconcileAll(ctx)
		if err := e.Tick(ctx, *name, sentiment.Signals{}); err != nil {
			fmt.Printf("[%s] cycle error: %v\n", time.Now().Format(time.RFC3339), err)
		} else if bot, err := l.GetBot(*name); err == nil {
			fmt.Printf("[%s] %s status=%s\n", time.Now().Format(time.RFC3339), bot.Name, bot.Status)
		}
		select {
		case <-ctx.Done():
			fmt.Println("monitor stopped")
			return exitOK
		case <-ticker.C:
		}
	}
}

// cmdBacktest replays a candidate grid configuration against historical
// candles pulled from the configured exchange gateway (in paper mode the
// paper gateway passes candle requests through to its live market-data
// feed) and persists the resulting
// report alongside live-bot metrics in the same database.
func cmdBacktest(l *ledger.Ledger, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	symbol := fs.String("symbol", "BTC/USDT", "trading pair")
	lower := fs.String("lower", "", "lower price bound")
	upper := fs.String("upper", "", "upper price bound")
	grids := fs.Int("grids", 10, "requested grid count")
	size := fs.String("size", "", "base order size")
	equity := fs.String("equity", "10000", "initial equity")
	interval := fs.String("interval", "1h", "candle interval")
	limit := fs.Int("limit", 500, "number of historical candles to replay")
	slippage := fs.Float64("slippage", 0, "fractional slippage applied to each fill, 0 disables")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	lowerDec, err1 := decimal.NewFromString(*lower)
	upperDec, err2 := decimal.NewFromString(*upper)
	sizeDec, err3 := decimal.NewFromString(*size)
	equityDec, err4 := decimal.NewFromString(*equity)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		fmt.Fprintln(os.Stderr, "backtest: lower, upper, size and equity must be valid decimals")
		return exitValidation
	}

	ctx := context.Background()
	gw := newGateway(cfg)
	candles, err := gw.FetchOHLCV(ctx, *symbol, *interval, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "backtest: fetch candles:", err)
		return exitGeneric
	}

	btCfg := backtest.Config{
		Symbol: *symbol, Lower: lowerDec, Upper: upperDec, GridCount: *grids, OrderSize: sizeDec,
		InitialEquity: equityDec, SlippagePct: *slippage, Engine: engineConfig(cfg),
	}
	e := backtest.NewEngine(newModulator(cfg), btCfg)
	report, err := e.Run(candles, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "backtest:", err)
		return exitGeneric
	}
	fmt.Println(report.Summary())

	if err := backtest.Migrate(l.DB()); err != nil {
		fmt.Fprintln(os.Stderr, "backtest: migrate run tables:", err)
		return exitGeneric
	}
	runID, err := backtest.SaveRun(l.DB(), *symbol, btCfg, report)
	if err != nil {
		fmt.Fprintln(os.Stderr, "backtest: save run:", err)
		return exitGeneric
	}
	fmt.Printf("run %s persisted\n", runID)
	return exitOK
}

func cancelAllOrders(e *grid.Engine, ctx context.Context, botName, symbol string) error {
	return e.CancelAllOpenOrders(ctx, botName, symbol)
}

func notFoundOrGeneric(err error, verb string) int {
	fmt.Fprintln(os.Stderr, verb+":", err)
	if errors.Is(err, ledger.ErrNotFound) {
		return exitNotFound
	}
	return exitGeneric
}

func isValidationErr(err error) bool {
	return errors.Is(err, ledger.ErrInvalidBot) || errors.Is(err, ledger.ErrDuplicateName)
}
