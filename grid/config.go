package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds every tunable threshold the Grid Engine's cycle reads.
// Defaults match the values spec.md documents; one Config applies to every
// bot an Engine runs (bots carry no per-bot overrides).
type Config struct {
	CycleInterval time.Duration // default 60s

	StopLossPct         float64 // default 0.15
	ProfitLockThreshold float64 // default 0.03
	TrailingPct         float64 // default 0.05

	RebalanceThreshold float64 // default 0.10, fraction of range width
	StaleRange         float64 // default 0.05, fraction of current price

	MaxPositionPercent float64 // default 0.10
	MaxRiskPerTrade    float64 // default 0.02
	MinPositionPercent float64 // default 0.001
	KellyFraction      float64 // default 0.25

	ReserveUSD decimal.Decimal // dip-buyer reserve carved out of available equity
	TakerFee   float64         // e.g. 0.001 for 10bps

	// Dip Buyer [ADDED]: extra buy on a sharp drop from a rolling
	// reference high.
	DipBuyerEnabled    bool
	DipBuyerDropPct    float64       // e.g. 0.05, trigger on a 5% drop from the reference high
	DipBuyerLookback   int           // candles behind the reference-high window
	DipBuyerReserveUSD decimal.Decimal

	// Profit Taker [ADDED]: closes an open position once unrealized PnL%
	// crosses takeProfitPct.
	ProfitTakerEnabled  bool
	TakeProfitPct       float64 // e.g. 0.08
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		CycleInterval:       60 * time.Second,
		StopLossPct:         0.15,
		ProfitLockThreshold: 0.03,
		TrailingPct:         0.05,
		RebalanceThreshold:  0.10,
		StaleRange:          0.05,
		MaxPositionPercent:  0.10,
		MaxRiskPerTrade:     0.02,
		MinPositionPercent:  0.001,
		KellyFraction:       0.25,
		TakerFee:            0.001,
		DipBuyerDropPct:     0.05,
		DipBuyerLookback:    20,
		TakeProfitPct:       0.08,
	}
}
