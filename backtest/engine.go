package backtest

import (
	"fmt"
	"math"

	"gridbot/exchange"
	"gridbot/fillsim"
	"gridbot/grid"
	"gridbot/market"
	"gridbot/sentiment"

	"github.com/shopspring/decimal"
)

// Engine replays a Config against historical candles, driving the same
// grid.Planner, grid.Sizer and sentiment.Modulator a live bot's Grid
// Engine drives, so a backtest report and a live bot's metrics read the
// same way.
type Engine struct {
	planner   *grid.Planner
	sizer     *grid.Sizer
	modulator sentiment.Modulator
	cfg       Config
}

// NewEngine builds a backtest Engine. A nil modulator defaults to
// sentiment.Disabled{}, matching a bot with no sentiment sources wired.
func NewEngine(modulator sentiment.Modulator, cfg Config) *Engine {
	if modulator == nil {
		modulator = sentiment.Disabled{}
	}
	return &Engine{planner: grid.NewPlanner(), sizer: grid.NewSizer(), modulator: modulator, cfg: cfg}
}

type openLevelOrder struct {
	id     string
	index  int
	side   grid.Side
	price  decimal.Decimal
	amount decimal.Decimal
	weight float64
}

type openPosition struct {
	entryPrice decimal.Decimal
	amount     decimal.Decimal
}

// Run replays candles (oldest first) against the configured range and grid
// count. sentimentByDate is keyed "2006-01-02"; a date with no entry
// evaluates as the modulator's neutral/zero-value input.
func (e *Engine) Run(candles []exchange.Candle, sentimentByDate map[string]sentiment.Signals) (*Report, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("backtest: no candles")
	}
	if e.cfg.Lower.GreaterThanOrEqual(e.cfg.Upper) {
		return nil, fmt.Errorf("backtest: lower must be less than upper")
	}

	cash := e.cfg.InitialEquity
	orders := make(map[int]openLevelOrder)
	positions := make(map[int]openPosition)
	marketCandles := make([]market.Candle, 0, len(candles))

	var report Report
	nextID := 0
	newOrderID := func() string {
		nextID++
		return fmt.Sprintf("bt-%d", nextID)
	}

	adjustedGridCount := grid.AdjustGridCount(e.cfg.GridCount, market.VolatilityMedium)
	gridSpacing := grid.GridSpacing(e.cfg.Lower, e.cfg.Upper, adjustedGridCount)
	gridSpacingPct := spacingPct(gridSpacing, candles[0].Close)

	placeLevel := func(lvl grid.Level, price decimal.Decimal, sig sentiment.Output, atrPct float64) {
		if lvl.Side == grid.Buy && sig.SkipBuys {
			report.SkippedBuys++
			return
		}
		if lvl.Side == grid.Sell && sig.SkipSells {
			report.SkippedSells++
			return
		}
		winRate, avgWin, avgLoss, totalTrades := tradeStats(report.Trades)
		result := e.sizer.Size(grid.SizerInput{
			BaseOrderSize:       e.cfg.OrderSize,
			CurrentPrice:        price,
			AvailableEquity:     cash,
			WinRate:             winRate,
			AvgWin:              avgWin,
			AvgLoss:             avgLoss,
			TotalTrades:         totalTrades,
			ATRPercent:          math.Max(atrPct, 0.01),
			GridSpacingPercent:  gridSpacingPct,
			SentimentMultiplier: sig.SizeMultiplier,
			LevelWeight:         lvl.Weight,
			MaxPositionPercent:  e.cfg.Engine.MaxPositionPercent,
			MaxRiskPerTrade:     e.cfg.Engine.MaxRiskPerTrade,
			MinPositionPercent:  e.cfg.Engine.MinPositionPercent,
			KellyFraction:       e.cfg.Engine.KellyFraction,
			LotStep:             e.cfg.LotStep,
		})
		if result.Size.LessThanOrEqual(decimal.Zero) {
			return
		}
		orders[lvl.Index] = openLevelOrder{id: newOrderID(), index: lvl.Index, side: lvl.Side, price: lvl.Price, amount: result.Size, weight: lvl.Weight}
	}

	for i, c := range candles {
		marketCandles = append(marketCandles, market.Candle{Open: f(c.Open), High: f(c.High), Low: f(c.Low), Close: f(c.Close)})

		atrPct := 0.0
		if closeF := f(c.Close); closeF > 0 {
			atrPct = market.ATR(marketCandles, 14) / closeF * 100
		}
		bucket := market.ClassifyVolatilityBucket(atrPct)
		sig := e.modulator.Evaluate(e.cfg.Symbol, sentimentByDate[c.OpenTime.Format("2006-01-02")])

		if i == 0 {
			adjustedGridCount = grid.AdjustGridCount(e.cfg.GridCount, bucket)
			gridSpacing = grid.GridSpacing(e.cfg.Lower, e.cfg.Upper, adjustedGridCount)
			gridSpacingPct = spacingPct(gridSpacing, c.Close)
			levels := e.planner.Plan(e.cfg.Lower, e.cfg.Upper, c.Close, adjustedGridCount, e.cfg.TickSize, true)
			for _, lvl := range levels {
				placeLevel(lvl, c.Close, sig, atrPct)
			}
		}

		e.processFills(c, orders, positions, gridSpacing, sig, &report, &cash)

		equity := cash
		for _, pos := range positions {
			equity = equity.Add(c.Close.Mul(pos.amount))
		}
		report.EquityCurve = append(report.EquityCurve, EquityPoint{At: c.OpenTime, Equity: equity})
	}

	report.TotalTrades = len(report.Trades)
	winRate, _, _, _ := tradeStats(report.Trades)
	report.WinRate = winRate

	var sumWin, sumLoss decimal.Decimal
	for _, t := range report.Trades {
		if t.Profit.GreaterThan(decimal.Zero) {
			sumWin = sumWin.Add(t.Profit)
		} else if t.Profit.LessThan(decimal.Zero) {
			sumLoss = sumLoss.Add(t.Profit.Abs())
		}
	}
	if sumLoss.GreaterThan(decimal.Zero) {
		pf, _ := sumWin.Div(sumLoss).Float64()
		report.ProfitFactor = pf
	} else if sumWin.GreaterThan(decimal.Zero) {
		report.ProfitFactor = math.Inf(1)
	}

	report.MaxDrawdownPct = maxDrawdownPct(report.EquityCurve)
	report.SharpeRatio = sharpeRatio(report.EquityCurve)

	return &report, nil
}

// processFills checks every resting order against the candle, settles
// each fill against cash/positions, and queues the opposite-side
// replacement one grid step away — the same reaction grid.Engine.ReactToFill
// performs live, just against an in-memory order book instead of the
// Ledger and Exchange Gateway.
func (e *Engine) processFills(c exchange.Candle, orders map[int]openLevelOrder, positions map[int]openPosition, gridSpacing decimal.Decimal, sig sentiment.Output, report *Report, cash *decimal.Decimal) {
	fillOrders := make([]fillsim.Order, 0, len(orders))
	byID := make(map[string]openLevelOrder, len(orders))
	for _, o := range orders {
		fillOrders = append(fillOrders, fillsim.Order{ID: o.id, Side: toFillSide(o.side), Price: o.price, Amount: o.amount})
		byID[o.id] = o
	}
	fills := fillsim.Check(fillsim.Candle{OpenTime: c.OpenTime, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close}, fillOrders)

	for _, fl := range fills {
		lo := byID[fl.OrderID]
		delete(orders, lo.index)

		fillPrice := e.fillPrice(lo.side, lo.price)
		fee := fillPrice.Mul(fl.Amount).Mul(decimal.NewFromFloat(e.cfg.Engine.TakerFee))
		report.TotalFees = report.TotalFees.Add(fee)

		if lo.side == grid.Buy {
			*cash = cash.Sub(fillPrice.Mul(fl.Amount)).Sub(fee)
			positions[lo.index] = openPosition{entryPrice: fillPrice, amount: fl.Amount}
		} else {
			*cash = cash.Add(fillPrice.Mul(fl.Amount)).Sub(fee)
			if pos, ok := positions[lo.index]; ok {
				profit := fillPrice.Sub(pos.entryPrice).Mul(fl.Amount).Sub(fee)
				report.RealizedProfit = report.RealizedProfit.Add(profit)
				report.Trades = append(report.Trades, TradeRecord{At: c.OpenTime, Entry: pos.entryPrice, Exit: fillPrice, Amount: fl.Amount, Profit: profit, Fee: fee, Reason: "grid"})
				delete(positions, lo.index)
			}
		}

		var replacePrice decimal.Decimal
		var replaceSide grid.Side
		if lo.side == grid.Buy {
			replacePrice = lo.price.Add(gridSpacing)
			replaceSide = grid.Sell
		} else {
			replacePrice = lo.price.Sub(gridSpacing)
			replaceSide = grid.Buy
		}
		if replacePrice.LessThan(e.cfg.Lower) || replacePrice.GreaterThan(e.cfg.Upper) {
			continue
		}
		if _, taken := orders[lo.index]; taken {
			continue
		}
		if replaceSide == grid.Buy && sig.SkipBuys {
			report.SkippedBuys++
			continue
		}
		if replaceSide == grid.Sell && sig.SkipSells {
			report.SkippedSells++
			continue
		}
		orders[lo.index] = openLevelOrder{id: newOrderIDFor(report, lo.index), index: lo.index, side: replaceSide, price: replacePrice, amount: fl.Amount, weight: lo.weight}
	}
}

// newOrderIDFor hands out a replacement order id derived from how many
// trades and equity samples have been recorded so far plus the grid level
// index, so replacements placed on the same candle never share an id.
func newOrderIDFor(r *Report, index int) string {
	return fmt.Sprintf("bt-r-%d-%d-%d", len(r.Trades), len(r.EquityCurve), index)
}

func (e *Engine) fillPrice(side grid.Side, levelPrice decimal.Decimal) decimal.Decimal {
	if e.cfg.SlippagePct == 0 {
		return levelPrice
	}
	mult := 1 + e.cfg.SlippagePct
	if side == grid.Sell {
		mult = 1 - e.cfg.SlippagePct
	}
	return levelPrice.Mul(decimal.NewFromFloat(mult))
}

func toFillSide(s grid.Side) fillsim.Side {
	if s == grid.Sell {
		return fillsim.Sell
	}
	return fillsim.Buy
}

func spacingPct(spacing, price decimal.Decimal) float64 {
	priceF := f(price)
	if priceF <= 0 {
		return 0
	}
	return f(spacing) / priceF * 100
}

func f(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// tradeStats mirrors ledger.Ledger.RecomputeMetrics's win-rate/avgWin/avgLoss
// derivation, so the Position Sizer's Kelly step sees the same shape of
// input live and in a backtest.
func tradeStats(trades []TradeRecord) (winRate float64, avgWin, avgLoss decimal.Decimal, total int) {
	var wins, losses int
	var sumWin, sumLoss decimal.Decimal
	for _, t := range trades {
		total++
		if t.Profit.GreaterThan(decimal.Zero) {
			wins++
			sumWin = sumWin.Add(t.Profit)
		} else if t.Profit.LessThan(decimal.Zero) {
			losses++
			sumLoss = sumLoss.Add(t.Profit.Abs())
		}
	}
	closed := wins + losses
	if closed > 0 {
		winRate = float64(wins) / float64(closed)
	}
	if wins > 0 {
		avgWin = sumWin.Div(decimal.NewFromInt(int64(wins)))
	}
	if losses > 0 {
		avgLoss = sumLoss.Div(decimal.NewFromInt(int64(losses)))
	}
	return
}
