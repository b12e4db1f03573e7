package backtest

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// maxDrawdownPct walks the equity curve tracking the running peak. Kept in
// lockstep with the identically-named function in the ledger package so a
// backtest's figure and a live bot's figure are computed the same way.
func maxDrawdownPct(points []EquityPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	peak := points[0].Equity
	if peak.LessThanOrEqual(decimal.Zero) {
		peak = decimal.NewFromInt(1)
	}
	maxDD := 0.0
	for _, p := range points {
		if p.Equity.GreaterThan(peak) {
			peak = p.Equity
		}
		if peak.LessThanOrEqual(decimal.Zero) {
			continue
		}
		dd, _ := peak.Sub(p.Equity).Div(peak).Float64()
		dd *= 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio uses sample standard deviation (n-1) and annualizes assuming
// 252 periods per year, matching ledger.sharpeRatio.
func sharpeRatio(points []EquityPoint) float64 {
	const minDataPoints = 10
	if len(points) < minDataPoints {
		return 0
	}

	returns := make([]float64, 0, len(points)-1)
	prev := points[0].Equity
	for i := 1; i < len(points); i++ {
		curr := points[i].Equity
		if prev.LessThanOrEqual(decimal.Zero) {
			prev = curr
			continue
		}
		ret, _ := curr.Sub(prev).Div(prev).Float64()
		returns = append(returns, ret)
		prev = curr
	}
	if len(returns) < minDataPoints-1 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	if len(returns) > 1 {
		variance /= float64(len(returns) - 1)
	}

	std := math.Sqrt(variance)
	if std < 1e-10 {
		return 0
	}

	sharpe := (mean / std) * math.Sqrt(252.0)
	if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
		return 0
	}
	return sharpe
}

// Summary renders the one-line report the CLI's backtest command prints,
// matching the compact style monitor mode uses for its per-cycle lines.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"trades=%d winRate=%.1f%% profitFactor=%.2f realizedProfit=%s fees=%s maxDrawdown=%.2f%% sharpe=%.2f skippedBuys=%d skippedSells=%d",
		r.TotalTrades, r.WinRate*100, r.ProfitFactor, r.RealizedProfit.StringFixed(2), r.TotalFees.StringFixed(2),
		r.MaxDrawdownPct, r.SharpeRatio, r.SkippedBuys, r.SkippedSells,
	)
}
