// Package backtest replays a grid bot's configuration against historical
// OHLCV data using the exact same Grid Planner, Position Sizer and
// Sentiment Modulator the live engine drives, so a backtest report and a
// live bot's metrics are directly comparable.
package backtest

import (
	"time"

	"gridbot/grid"

	"github.com/shopspring/decimal"
)

// Config is the backtest's static bot definition plus the same cycle
// thresholds grid.Config carries, so a backtest run and a live bot started
// with the equivalent grid.Config behave identically.
type Config struct {
	Symbol    string
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	GridCount int
	OrderSize decimal.Decimal

	InitialEquity decimal.Decimal
	TickSize      decimal.Decimal
	LotStep       decimal.Decimal

	// SlippagePct, when non-zero, fills at price*(1+slippage) for buys and
	// price*(1-slippage) for sells instead of the resting limit price.
	SlippagePct float64

	Engine grid.Config
}

// EquityPoint is one sample of the simulated equity curve.
type EquityPoint struct {
	At     time.Time
	Equity decimal.Decimal
}

// TradeRecord is one closed round-trip (a sell that realized PnL against
// an open position), the backtest's equivalent of a ledger.Trade.
type TradeRecord struct {
	At     time.Time
	Entry  decimal.Decimal
	Exit   decimal.Decimal
	Amount decimal.Decimal
	Profit decimal.Decimal
	Fee    decimal.Decimal
	Reason string
}

// Report is the final summary, deliberately shaped to match the fields
// ledger.Metrics reports for a live bot.
type Report struct {
	EquityCurve    []EquityPoint
	Trades         []TradeRecord
	MaxDrawdownPct float64
	SharpeRatio    float64
	WinRate        float64
	ProfitFactor   float64
	RealizedProfit decimal.Decimal
	TotalFees      decimal.Decimal
	TotalTrades    int
	SkippedBuys    int
	SkippedSells   int
}
