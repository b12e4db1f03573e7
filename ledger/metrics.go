package ledger

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GetMetrics fetches a bot's last computed metrics, zero-valued if none
// have been recomputed yet.
func (l *Ledger) GetMetrics(botName string) (*Metrics, error) {
	var m Metrics
	err := l.db.Where("bot_name = ?", botName).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Metrics{BotName: botName}, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecomputeMetrics derives win rate, profit factor, Sharpe ratio and max
// drawdown from a bot's trades and equity curve, and persists the result.
// Called after every fill and on a slower reporting cadence for the Sharpe
// and drawdown figures, which need the full equity curve.
func (l *Ledger) RecomputeMetrics(botName string) (*Metrics, error) {
	trades, err := l.ListTrades(botName)
	if err != nil {
		return nil, err
	}
	var points []EquityPoint
	if err := l.db.Where("bot_name = ?", botName).Order("timestamp asc").Find(&points).Error; err != nil {
		return nil, err
	}

	m := Metrics{
		BotName:   botName,
		UpdatedAt: time.Now().UTC(),
	}

	var sumWin, sumLoss decimal.Decimal
	for _, t := range trades {
		m.TotalTrades++
		if t.Profit == nil {
			m.OpenTrades++
			continue
		}
		m.TotalPnl = m.TotalPnl.Add(*t.Profit)
		m.TotalFees = m.TotalFees.Add(t.Fee)
		if t.Profit.GreaterThan(decimal.Zero) {
			m.WinTrades++
			sumWin = sumWin.Add(*t.Profit)
		} else if t.Profit.LessThan(decimal.Zero) {
			m.LossTrades++
			sumLoss = sumLoss.Add(t.Profit.Abs())
		}
	}

	closed := m.WinTrades + m.LossTrades
	if closed > 0 {
		m.WinRate = float64(m.WinTrades) / float64(closed)
	}
	if m.WinTrades > 0 {
		m.AvgWin = sumWin.Div(decimal.NewFromInt(int64(m.WinTrades)))
	}
	if m.LossTrades > 0 {
		m.AvgLoss = sumLoss.Div(decimal.NewFromInt(int64(m.LossTrades)))
	}
	if sumLoss.GreaterThan(decimal.Zero) {
		factor, _ := sumWin.Div(sumLoss).Float64()
		m.ProfitFactor = factor
	} else if sumWin.GreaterThan(decimal.Zero) {
		m.ProfitFactor = math.Inf(1)
	}

	m.MaxDrawdownPct = maxDrawdownPct(points)
	m.SharpeRatio = sharpeRatio(points)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.db.Save(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// maxDrawdownPct walks the equity curve tracking the running peak, the way
// the backtest engine's report computes it, so live and backtested metrics
// read the same.
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
// 252 periods per year, matching the backtest engine so a live bot's Sharpe
// is comparable to a backtest run over the same symbol.
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

// SaveEquityPoint appends one equity-curve sample for a bot. Neither the
// Grid Engine nor the Backtest Engine calls it; backtest runs store their
// curves as RunEquityPoint rows.
func (l *Ledger) SaveEquityPoint(botName string, equity, pnl decimal.Decimal, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Create(&EquityPoint{
		BotName:   botName,
		Timestamp: at,
		Equity:    equity,
		PnL:       pnl,
	}).Error
}

// GetEquityCurve returns a bot's equity samples in chronological order.
func (l *Ledger) GetEquityCurve(botName string) ([]EquityPoint, error) {
	var points []EquityPoint
	err := l.db.Where("bot_name = ?", botName).Order("timestamp asc").Find(&points).Error
	return points, err
}
