package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListPositions returns a bot's open inventory slices, oldest first (the
// order the Grid Engine closes them in on a sell sweep).
func (l *Ledger) ListPositions(botName string) ([]Position, error) {
	var positions []Position
	err := l.db.Where("bot_name = ?", botName).Order("opened_at asc").Find(&positions).Error
	return positions, err
}

// UpsertPosition inserts a new open position (OpenOrderID identifies it) or
// updates trailing-stop bookkeeping on an existing one.
func (l *Ledger) UpsertPosition(p Position) (*Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var existing Position
	err := l.db.Where("bot_name = ? AND open_order_id = ?", p.BotName, p.OpenOrderID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if p.OpenedAt.IsZero() {
			p.OpenedAt = time.Now().UTC()
		}
		if err := l.db.Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	case err != nil:
		return nil, err
	default:
		existing.TrailingStopPrice = p.TrailingStopPrice
		existing.PeakPnlPct = p.PeakPnlPct
		if err := l.db.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
}

// ClosePosition removes a position once its inventory has been sold off,
// e.g. by a stop-loss sweep or the Profit Taker.
func (l *Ledger) ClosePosition(id uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := l.db.Delete(&Position{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTrailingStop advances the trailing-stop price and peak-PnL
// watermark for a single position without touching its other fields.
func (l *Ledger) UpdateTrailingStop(id uint, stopPrice decimal.Decimal, peakPnlPct float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.db.Model(&Position{}).Where("id = ?", id).Updates(map[string]interface{}{
		"trailing_stop_price": stopPrice,
		"peak_pnl_pct":        peakPnlPct,
	}).Error
}
