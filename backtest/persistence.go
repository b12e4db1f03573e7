package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run is one persisted backtest invocation: its configuration plus the
// final report's summary figures. Grounded on the teacher's
// backtest_runs/backtest_equity/backtest_trades schema, reshaped onto GORM
// so a run shares the Ledger's database connection instead of opening a
// second one purely for backtest history.
type Run struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	Symbol         string          `gorm:"not null" json:"symbol"`
	Lower          decimal.Decimal `gorm:"type:string;not null" json:"lower"`
	Upper          decimal.Decimal `gorm:"type:string;not null" json:"upper"`
	GridCount      int             `gorm:"not null" json:"gridCount"`
	TotalTrades    int             `json:"totalTrades"`
	WinRate        float64         `json:"winRate"`
	ProfitFactor   float64         `json:"profitFactor"`
	RealizedProfit decimal.Decimal `gorm:"type:string" json:"realizedProfit"`
	TotalFees      decimal.Decimal `gorm:"type:string" json:"totalFees"`
	MaxDrawdownPct float64         `json:"maxDrawdownPct"`
	SharpeRatio    float64         `json:"sharpeRatio"`
	SkippedBuys    int             `json:"skippedBuys"`
	SkippedSells   int             `json:"skippedSells"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"createdAt"`
}

// RunEquityPoint is one sample of a persisted run's equity curve.
type RunEquityPoint struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	RunID  string          `gorm:"not null;index" json:"runId"`
	At     time.Time       `gorm:"not null" json:"at"`
	Equity decimal.Decimal `gorm:"type:string;not null" json:"equity"`
}

// RunTradeEvent is one persisted round-trip trade from a backtest run.
type RunTradeEvent struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	RunID  string          `gorm:"not null;index" json:"runId"`
	At     time.Time       `gorm:"not null" json:"at"`
	Entry  decimal.Decimal `gorm:"type:string;not null" json:"entry"`
	Exit   decimal.Decimal `gorm:"type:string;not null" json:"exit"`
	Amount decimal.Decimal `gorm:"type:string;not null" json:"amount"`
	Profit decimal.Decimal `gorm:"type:string;not null" json:"profit"`
	Fee    decimal.Decimal `gorm:"type:string;not null" json:"fee"`
	Reason string          `json:"reason"`
}

// Migrate creates or updates the three backtest tables on db, normally the
// same *gorm.DB the Ledger opened.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Run{}, &RunEquityPoint{}, &RunTradeEvent{})
}

// SaveRun persists a completed Report as a Run row plus its equity curve
// and trade history, and returns the generated run id.
func SaveRun(db *gorm.DB, symbol string, cfg Config, report *Report) (string, error) {
	run := Run{
		ID: uuid.NewString(), Symbol: symbol, Lower: cfg.Lower, Upper: cfg.Upper, GridCount: cfg.GridCount,
		TotalTrades: report.TotalTrades, WinRate: report.WinRate, ProfitFactor: report.ProfitFactor,
		RealizedProfit: report.RealizedProfit, TotalFees: report.TotalFees,
		MaxDrawdownPct: report.MaxDrawdownPct, SharpeRatio: report.SharpeRatio,
		SkippedBuys: report.SkippedBuys, SkippedSells: report.SkippedSells,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(&run).Error; err != nil {
		return "", err
	}
	for _, p := range report.EquityCurve {
		if err := db.Create(&RunEquityPoint{RunID: run.ID, At: p.At, Equity: p.Equity}).Error; err != nil {
			return run.ID, err
		}
	}
	for _, t := range report.Trades {
		if err := db.Create(&RunTradeEvent{
			RunID: run.ID, At: t.At, Entry: t.Entry, Exit: t.Exit, Amount: t.Amount, Profit: t.Profit, Fee: t.Fee, Reason: t.Reason,
		}).Error; err != nil {
			return run.ID, err
		}
	}
	return run.ID, nil
}

// LoadRun reconstructs a persisted Report from its run id, for comparing a
// later run against an earlier one without re-replaying the candles.
func LoadRun(db *gorm.DB, runID string) (*Report, error) {
	var run Run
	if err := db.First(&run, "id = ?", runID).Error; err != nil {
		return nil, err
	}
	var points []RunEquityPoint
	if err := db.Where("run_id = ?", runID).Order("at asc").Find(&points).Error; err != nil {
		return nil, err
	}
	var trades []RunTradeEvent
	if err := db.Where("run_id = ?", runID).Order("at asc").Find(&trades).Error; err != nil {
		return nil, err
	}

	report := &Report{
		MaxDrawdownPct: run.MaxDrawdownPct, SharpeRatio: run.SharpeRatio, WinRate: run.WinRate,
		ProfitFactor: run.ProfitFactor, RealizedProfit: run.RealizedProfit, TotalFees: run.TotalFees,
		TotalTrades: run.TotalTrades, SkippedBuys: run.SkippedBuys, SkippedSells: run.SkippedSells,
	}
	for _, p := range points {
		report.EquityCurve = append(report.EquityCurve, EquityPoint{At: p.At, Equity: p.Equity})
	}
	for _, t := range trades {
		report.Trades = append(report.Trades, TradeRecord{At: t.At, Entry: t.Entry, Exit: t.Exit, Amount: t.Amount, Profit: t.Profit, Fee: t.Fee, Reason: t.Reason})
	}
	return report, nil
}

// ListRuns returns every persisted run's summary row, newest first.
func ListRuns(db *gorm.DB) ([]Run, error) {
	var runs []Run
	err := db.Order("created_at desc").Find(&runs).Error
	return runs, err
}
