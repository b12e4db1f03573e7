package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BotConfig is the input to CreateBot.
type BotConfig struct {
	Name       string
	Symbol     string
	LowerPrice decimal.Decimal
	UpperPrice decimal.Decimal
	GridCount  int
	OrderSize  decimal.Decimal
}

// Validate enforces the Bot invariants from the data model:
// 0 < lowerPrice < upperPrice; gridCount >= 2; orderSize > 0.
func (c BotConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBot)
	}
	if c.LowerPrice.LessThanOrEqual(decimal.Zero) || c.LowerPrice.GreaterThanOrEqual(c.UpperPrice) {
		return fmt.Errorf("%w: require 0 < lowerPrice < upperPrice", ErrInvalidBot)
	}
	if c.GridCount < 2 {
		return fmt.Errorf("%w: gridCount must be >= 2", ErrInvalidBot)
	}
	if c.OrderSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: orderSize must be > 0", ErrInvalidBot)
	}
	return nil
}

// CreateBot validates and inserts a new, stopped bot.
func (l *Ledger) CreateBot(cfg BotConfig) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var existing Bot
	err := l.db.Where("name = ?", cfg.Name).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateName
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	bot := &Bot{
		Name:              cfg.Name,
		Symbol:            cfg.Symbol,
		LowerPrice:        cfg.LowerPrice,
		UpperPrice:        cfg.UpperPrice,
		GridCount:         cfg.GridCount,
		AdjustedGridCount: cfg.GridCount,
		OrderSize:         cfg.OrderSize,
		Status:            BotStopped,
	}
	if err := l.db.Create(bot).Error; err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return bot, nil
}

// GetBot fetches a bot by name.
func (l *Ledger) GetBot(name string) (*Bot, error) {
	var bot Bot
	err := l.db.Where("name = ?", name).First(&bot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// ListBots returns every bot, newest first.
func (l *Ledger) ListBots() ([]Bot, error) {
	var bots []Bot
	err := l.db.Order("created_at desc").Find(&bots).Error
	return bots, err
}

// BotPatch describes a partial update to a bot; nil fields are left
// unchanged.
type BotPatch struct {
	LowerPrice        *decimal.Decimal
	UpperPrice        *decimal.Decimal
	AdjustedGridCount *int
	Status            *BotStatus
	StopReason        *string
	RebalanceCountInc bool
}

// UpdateBot applies a patch atomically.
func (l *Ledger) UpdateBot(name string, patch BotPatch) (*Bot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var bot Bot
	if err := l.db.Where("name = ?", name).First(&bot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if patch.LowerPrice != nil {
		bot.LowerPrice = *patch.LowerPrice
		updates["lower_price"] = *patch.LowerPrice
	}
	if patch.UpperPrice != nil {
		bot.UpperPrice = *patch.UpperPrice
		updates["upper_price"] = *patch.UpperPrice
	}
	if patch.AdjustedGridCount != nil {
		bot.AdjustedGridCount = *patch.AdjustedGridCount
		updates["adjusted_grid_count"] = *patch.AdjustedGridCount
	}
	if patch.Status != nil {
		bot.Status = *patch.Status
		updates["status"] = *patch.Status
	}
	if patch.StopReason != nil {
		bot.StopReason = *patch.StopReason
		updates["stop_reason"] = *patch.StopReason
	}
	if patch.RebalanceCountInc {
		bot.RebalanceCount++
		updates["rebalance_count"] = bot.RebalanceCount
	}

	if err := l.db.Model(&Bot{}).Where("name = ?", name).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update bot: %w", err)
	}
	return &bot, nil
}

// DeleteBot removes a bot and its orders/trades/positions. Callers (the
// CLI's `delete`) are responsible for refusing this while running unless
// --force, and for cancelling open orders first.
func (l *Ledger) DeleteBot(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bot_name = ?", name).Delete(&Order{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_name = ?", name).Delete(&Trade{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_name = ?", name).Delete(&Position{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_name = ?", name).Delete(&EquityPoint{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bot_name = ?", name).Delete(&Metrics{}).Error; err != nil {
			return err
		}
		res := tx.Where("name = ?", name).Delete(&Bot{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
