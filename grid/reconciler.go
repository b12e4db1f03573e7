package grid

import (
	"context"
	"errors"
	"fmt"

	"gridbot/exchange"
	"gridbot/ledger"
	"gridbot/logger"
)

// Reconciler is the single source of truth reconciliation between the
// Ledger's view of open orders and the exchange's. It runs ahead of each
// bot's Engine cycle so that any fill the exchange already knows about is
// resolved (trade recorded, replacement order queued) before planAndPlace
// decides what's missing from the grid — without this ordering the
// engine would place a duplicate order at a level that actually just
// filled.
type Reconciler struct {
	ledger  *ledger.Ledger
	gateway exchange.Gateway
	engine  *Engine
}

// NewReconciler wires a Reconciler against the same Ledger and Gateway the
// Engine uses, plus the Engine itself so it can react to fills it finds.
func NewReconciler(l *ledger.Ledger, gw exchange.Gateway, e *Engine) *Reconciler {
	return &Reconciler{ledger: l, gateway: gw, engine: e}
}

// ReconcileBot diffs one bot's ledger-open orders against the exchange.
func (r *Reconciler) ReconcileBot(ctx context.Context, botName string) error {
	bot, err := r.ledger.GetBot(botName)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", botName, err)
	}

	ledgerOpen, err := r.ledger.ListOpenOrders(botName)
	if err != nil {
		return fmt.Errorf("reconcile %s: list ledger orders: %w", botName, err)
	}
	exchangeOpen, err := r.gateway.OpenOrders(ctx, bot.Symbol)
	if err != nil {
		return fmt.Errorf("reconcile %s: list exchange orders: %w", botName, err)
	}
	onExchange := make(map[string]bool, len(exchangeOpen))
	for _, o := range exchangeOpen {
		onExchange[o.OrderID] = true
	}

	for _, lo := range ledgerOpen {
		if onExchange[lo.ID] {
			continue // still resting on both sides, nothing to reconcile
		}

		status, err := r.gateway.GetOrderStatus(ctx, bot.Symbol, lo.ID)
		if errors.Is(err, exchange.ErrNotFound) {
			if err := r.ledger.CancelOrder(lo.ID, "MISSING_ON_EXCHANGE"); err != nil {
				return fmt.Errorf("reconcile %s: cancel missing order %s: %w", botName, lo.ID, err)
			}
			logger.Infof("%s: order %s missing on exchange, marked cancelled", botName, lo.ID)
			continue
		}
		if err != nil {
			logger.Errorf("%s: get order status %s: %v", botName, lo.ID, err)
			continue
		}

		switch status.State {
		case exchange.StateFilled:
			trade, err := r.ledger.FillOrder(lo.ID, ledger.FillParams{
				FilledPrice: status.FilledPrice, Fee: status.Fee, FilledAt: status.UpdatedAt,
			})
			if err != nil && !errors.Is(err, ledger.ErrOrderNotOpen) {
				return fmt.Errorf("reconcile %s: fill order %s: %w", botName, lo.ID, err)
			}
			if trade == nil {
				continue
			}
			filled := lo
			filled.Status = ledger.OrderFilled
			if err := r.engine.ReactToFill(ctx, botName, filled); err != nil {
				return fmt.Errorf("reconcile %s: react to fill %s: %w", botName, lo.ID, err)
			}
		case exchange.StateCancelled, exchange.StateRejected:
			if err := r.ledger.CancelOrder(lo.ID, "CANCELLED_ON_EXCHANGE"); err != nil {
				return fmt.Errorf("reconcile %s: cancel order %s: %w", botName, lo.ID, err)
			}
		default:
			// still open or partially filled elsewhere; leave it resting
		}
	}

	return r.importUntracked(botName, bot.Symbol, exchangeOpen, ledgerOpen)
}

// importUntracked inserts any exchange order this Ledger has never seen —
// placed out of band, or surviving a Ledger restore from an older
// snapshot — so the grid's open-order accounting stays complete.
func (r *Reconciler) importUntracked(botName, symbol string, exchangeOpen []exchange.OrderStatus, ledgerOpen []ledger.Order) error {
	known := make(map[string]bool, len(ledgerOpen))
	for _, lo := range ledgerOpen {
		known[lo.ID] = true
	}

	var toImport []ledger.Order
	for _, eo := range exchangeOpen {
		if known[eo.OrderID] {
			continue
		}
		if _, err := r.ledger.GetOrder(eo.OrderID); err == nil {
			continue
		}
		toImport = append(toImport, ledger.Order{
			ID: eo.OrderID, BotName: botName, Symbol: symbol,
			Side: ledger.OrderSide(eo.Side), Price: eo.Price, Amount: eo.Amount,
			SizeQuote: eo.Price.Mul(eo.Amount), LevelIndex: -3, Status: ledger.OrderOpen,
			Source: ledger.SourceImported, CreatedAt: eo.UpdatedAt,
		})
	}
	if len(toImport) == 0 {
		return nil
	}
	logger.Infof("%s: importing %d order(s) found on exchange but not in ledger", botName, len(toImport))
	return r.ledger.InsertOrders(toImport)
}

// ReconcileAll runs ReconcileBot for every running bot the ledger knows
// about (paused and stopped bots are skipped), logging but not aborting on a single bot's failure so one bad symbol
// doesn't stall the rest of the fleet.
func (r *Reconciler) ReconcileAll(ctx context.Context) {
	bots, err := r.ledger.ListBots()
	if err != nil {
		logger.Errorf("reconcile all: list bots: %v", err)
		return
	}
	for _, bot := range bots {
		if bot.Status != ledger.BotRunning {
			continue
		}
		if err := r.ReconcileBot(ctx, bot.Name); err != nil {
			logger.Errorf("reconcile %s: %v", bot.Name, err)
		}
	}
}
