package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// BotStatus is the lifecycle state of a configured grid.
type BotStatus string

const (
	BotStopped BotStatus = "stopped"
	BotRunning BotStatus = "running"
	BotPaused  BotStatus = "paused"
)

// Stop/pause reasons recorded on a Bot.
const (
	StopReasonStopLossHit  = "STOP_LOSS_HIT"
	StopReasonTrailingStop = "TRAILING_STOP"
	StopReasonManual       = "MANUAL_STOP"
	StopReasonFatal        = "FATAL_ERROR"
)

// Bot is a configured grid, the unit the rest of the system orbits.
type Bot struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Name              string    `gorm:"uniqueIndex;not null" json:"name"`
	Symbol            string    `gorm:"not null" json:"symbol"`
	LowerPrice        decimal.Decimal `gorm:"type:string;not null" json:"lowerPrice"`
	UpperPrice        decimal.Decimal `gorm:"type:string;not null" json:"upperPrice"`
	GridCount         int       `gorm:"not null" json:"gridCount"`
	AdjustedGridCount int       `json:"adjustedGridCount"`
	OrderSize         decimal.Decimal `gorm:"type:string;not null" json:"orderSize"`
	Status            BotStatus `gorm:"not null;default:stopped" json:"status"`
	StopReason        string    `json:"stopReason,omitempty"`
	RebalanceCount    int       `json:"rebalanceCount"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// OrderSide is buy or sell.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderStatus is the lifecycle of a resting limit order. Transitions are
// monotonic: Open -> Filled | Cancelled, never backwards.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderSource tags where an order record came from.
type OrderSource string

const (
	SourceEngine    OrderSource = "engine"
	SourceImported  OrderSource = "imported"
	SourceDipBuyer  OrderSource = "dip_buyer"
	SourceProfitTaker OrderSource = "profit_taker"
)

// Order is a resting limit intent, exchange-assigned ID when live,
// synthetic when paper.
type Order struct {
	ID           string      `gorm:"primaryKey" json:"id"`
	BotName      string      `gorm:"not null;index" json:"botName"`
	Symbol       string      `gorm:"not null" json:"symbol"`
	Side         OrderSide   `gorm:"not null" json:"side"`
	Price        decimal.Decimal `gorm:"type:string;not null" json:"price"`
	Amount       decimal.Decimal `gorm:"type:string;not null" json:"amount"`
	SizeQuote    decimal.Decimal `gorm:"type:string;not null" json:"sizeQuote"`
	LevelIndex   int         `gorm:"not null;index:idx_bot_level" json:"levelIndex"`
	Weight       float64     `json:"weight"`
	Status       OrderStatus `gorm:"not null;default:open;index" json:"status"`
	Source       OrderSource `gorm:"not null;default:engine" json:"source"`
	CreatedAt    time.Time   `json:"createdAt"`
	FilledAt     *time.Time  `json:"filledAt,omitempty"`
	FilledPrice  *decimal.Decimal `gorm:"type:string" json:"filledPrice,omitempty"`
	CancelledAt  *time.Time  `json:"cancelledAt,omitempty"`
	CancelReason string      `json:"cancelReason,omitempty"`
}

// TradeSource tags how a trade record was produced.
type TradeSource string

const (
	TradeFill      TradeSource = "fill"
	TradeImported  TradeSource = "imported"
	TradeSimulated TradeSource = "simulated"
)

// Trade is a realized fill.
type Trade struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	BotName   string      `gorm:"not null;index" json:"botName"`
	Symbol    string      `gorm:"not null" json:"symbol"`
	Side      OrderSide   `gorm:"not null" json:"side"`
	Price     decimal.Decimal `gorm:"type:string;not null" json:"price"`
	Amount    decimal.Decimal `gorm:"type:string;not null" json:"amount"`
	Value     decimal.Decimal `gorm:"type:string;not null" json:"value"`
	Fee       decimal.Decimal `gorm:"type:string;not null" json:"fee"`
	Timestamp time.Time   `gorm:"not null;index" json:"timestamp"`
	OrderID   string      `json:"orderId,omitempty"`
	Source    TradeSource `gorm:"not null;default:fill" json:"source"`
	Profit    *decimal.Decimal `gorm:"type:string" json:"profit,omitempty"`
}

// Position is a bot's open (filled-buy, not yet closed) inventory slice.
// Trailing-stop state lives here, per-position, since multiple positions
// can coexist for the same bot.
type Position struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	BotName             string          `gorm:"not null;index" json:"botName"`
	Symbol              string          `gorm:"not null" json:"symbol"`
	EntryPrice          decimal.Decimal `gorm:"type:string;not null" json:"entryPrice"`
	Amount              decimal.Decimal `gorm:"type:string;not null" json:"amount"`
	OpenOrderID         string          `json:"openOrderId"`
	OpenedAt            time.Time       `json:"openedAt"`
	TrailingStopPrice   *decimal.Decimal `gorm:"type:string" json:"trailingStopPrice,omitempty"`
	PeakPnlPct          float64         `json:"peakPnlPct"`
}

// Metrics are derived, per-bot performance figures.
type Metrics struct {
	BotName        string  `gorm:"primaryKey" json:"botName"`
	TotalTrades    int     `json:"totalTrades"`
	OpenTrades     int     `json:"openTrades"`
	WinTrades      int     `json:"winTrades"`
	LossTrades     int     `json:"lossTrades"`
	WinRate        float64 `json:"winRate"`
	AvgWin         decimal.Decimal `gorm:"type:string" json:"avgWin"`
	AvgLoss        decimal.Decimal `gorm:"type:string" json:"avgLoss"`
	ProfitFactor   float64 `json:"profitFactor"`
	SharpeRatio    float64 `json:"sharpeRatio"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
	TotalPnl       decimal.Decimal `gorm:"type:string" json:"totalPnl"`
	TotalFees      decimal.Decimal `gorm:"type:string" json:"totalFees"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// EquityPoint is one sample of a live bot's equity curve, written by
// SaveEquityPoint. The Backtest Engine keeps its own curve
// (backtest.RunEquityPoint).
type EquityPoint struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BotName   string    `gorm:"not null;index" json:"botName"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Equity    decimal.Decimal `gorm:"type:string;not null" json:"equity"`
	PnL       decimal.Decimal `gorm:"type:string;not null" json:"pnl"`
}
