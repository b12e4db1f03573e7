package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InsertOrders writes a batch of freshly-placed orders in one transaction.
// Used by the Grid Engine after a planning pass places a run of levels.
func (l *Ledger) InsertOrders(orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.db.Create(&orders).Error; err != nil {
		return fmt.Errorf("insert orders: %w", err)
	}
	return nil
}

// GetOrder fetches a single order by its exchange/synthetic ID.
func (l *Ledger) GetOrder(id string) (*Order, error) {
	var order Order
	err := l.db.Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOpenOrders returns every resting order for a bot.
func (l *Ledger) ListOpenOrders(botName string) ([]Order, error) {
	var orders []Order
	err := l.db.Where("bot_name = ? AND status = ?", botName, OrderOpen).
		Order("level_index asc").Find(&orders).Error
	return orders, err
}

// ListOrders returns every order for a bot regardless of status, most
// recent first, for reporting/audit.
func (l *Ledger) ListOrders(botName string) ([]Order, error) {
	var orders []Order
	err := l.db.Where("bot_name = ?", botName).Order("created_at desc").Find(&orders).Error
	return orders, err
}

// FillParams carries the exchange-reported fill details.
type FillParams struct {
	FilledPrice decimal.Decimal
	Fee         decimal.Decimal
	FilledAt    time.Time
}

// FillOrder marks an order filled and appends the corresponding Trade in a
// single transaction, so a crash between the two is impossible: an order is
// never filled without its trade, and vice versa. Returns ErrOrderNotOpen if
// the order was already filled or cancelled (the reconciler treats this as
// a no-op, not an error to surface).
func (l *Ledger) FillOrder(orderID string, fp FillParams) (*Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var trade *Trade
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.Where("id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if order.Status != OrderOpen {
			return ErrOrderNotOpen
		}

		filledAt := fp.FilledAt
		if filledAt.IsZero() {
			filledAt = time.Now().UTC()
		}
		price := fp.FilledPrice
		if price.IsZero() {
			price = order.Price
		}

		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":       OrderFilled,
			"filled_at":    filledAt,
			"filled_price": price,
		}).Error; err != nil {
			return err
		}

		value := price.Mul(order.Amount)
		t := Trade{
			BotName:   order.BotName,
			Symbol:    order.Symbol,
			Side:      order.Side,
			Price:     price,
			Amount:    order.Amount,
			Value:     value,
			Fee:       fp.Fee,
			Timestamp: filledAt,
			OrderID:   order.ID,
			Source:    TradeFill,
		}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		trade = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// CancelOrder marks an open order cancelled. A no-op (not an error) if the
// order is already filled or cancelled, since cancellation races against
// fills by design (the reconciler may observe either outcome first).
func (l *Ledger) CancelOrder(orderID, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var order Order
	if err := l.db.Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if order.Status != OrderOpen {
		return nil
	}

	now := time.Now().UTC()
	return l.db.Model(&order).Updates(map[string]interface{}{
		"status":        OrderCancelled,
		"cancelled_at":  now,
		"cancel_reason": reason,
	}).Error
}

// ListTrades returns a bot's realized trades, most recent first.
func (l *Ledger) ListTrades(botName string) ([]Trade, error) {
	var trades []Trade
	err := l.db.Where("bot_name = ?", botName).Order("timestamp desc").Find(&trades).Error
	return trades, err
}

// SetTradeProfit records a closed round-trip's realized profit against the
// trade that closed it. Called once the engine knows which entry the
// closing fill paired against; fees are already baked into profit by the
// caller, per the per-trade fee attribution the design mandates.
func (l *Ledger) SetTradeProfit(tradeID uint, profit decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Model(&Trade{}).Where("id = ?", tradeID).Update("profit", profit).Error
}
