package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(Config{Driver: "sqlite", DSN: t.TempDir() + "/test.db"})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCreateBot_DuplicateName(t *testing.T) {
	l := openTestLedger(t)

	cfg := BotConfig{
		Name:       "grid-1",
		Symbol:     "BTCUSDT",
		LowerPrice: dec("25000"),
		UpperPrice: dec("35000"),
		GridCount:  10,
		OrderSize:  dec("100"),
	}
	_, err := l.CreateBot(cfg)
	require.NoError(t, err)

	_, err = l.CreateBot(cfg)
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestCreateBot_Validation(t *testing.T) {
	l := openTestLedger(t)

	tests := []struct {
		name string
		cfg  BotConfig
	}{
		{"inverted range", BotConfig{Name: "a", LowerPrice: dec("100"), UpperPrice: dec("50"), GridCount: 5, OrderSize: dec("1")}},
		{"too few grids", BotConfig{Name: "b", LowerPrice: dec("10"), UpperPrice: dec("20"), GridCount: 1, OrderSize: dec("1")}},
		{"zero order size", BotConfig{Name: "c", LowerPrice: dec("10"), UpperPrice: dec("20"), GridCount: 5, OrderSize: dec("0")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CreateBot(tt.cfg)
			require.ErrorIs(t, err, ErrInvalidBot)
		})
	}
}

func TestUpdateBot_NotFound(t *testing.T) {
	l := openTestLedger(t)
	_, err := l.UpdateBot("nope", BotPatch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFillOrder_CreatesTradeAtomically(t *testing.T) {
	l := openTestLedger(t)
	_, err := l.CreateBot(BotConfig{
		Name: "grid-1", Symbol: "BTCUSDT",
		LowerPrice: dec("25000"), UpperPrice: dec("35000"),
		GridCount: 10, OrderSize: dec("100"),
	})
	require.NoError(t, err)

	order := Order{
		ID: "order-1", BotName: "grid-1", Symbol: "BTCUSDT",
		Side: Buy, Price: dec("30000"), Amount: dec("0.01"),
		SizeQuote: dec("300"), LevelIndex: 3, Status: OrderOpen, Source: SourceEngine,
	}
	require.NoError(t, l.InsertOrders([]Order{order}))

	trade, err := l.FillOrder("order-1", FillParams{
		FilledPrice: dec("29950"),
		Fee:         dec("0.3"),
		FilledAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, "grid-1", trade.BotName)
	require.True(t, trade.Value.Equal(dec("299.5")))

	got, err := l.GetOrder("order-1")
	require.NoError(t, err)
	require.Equal(t, OrderFilled, got.Status)

	// A second fill attempt on an already-filled order is rejected.
	_, err = l.FillOrder("order-1", FillParams{})
	require.ErrorIs(t, err, ErrOrderNotOpen)
}

func TestCancelOrder_NoopWhenAlreadyResolved(t *testing.T) {
	l := openTestLedger(t)
	require.NoError(t, l.InsertOrders([]Order{{
		ID: "order-2", BotName: "grid-1", Symbol: "BTCUSDT",
		Side: Sell, Price: dec("31000"), Amount: dec("0.01"),
		SizeQuote: dec("310"), LevelIndex: 4, Status: OrderOpen, Source: SourceEngine,
	}}))

	require.NoError(t, l.CancelOrder("order-2", "rebalance"))
	// Cancelling again is a no-op, not an error: the reconciler may race a fill.
	require.NoError(t, l.CancelOrder("order-2", "rebalance"))

	got, err := l.GetOrder("order-2")
	require.NoError(t, err)
	require.Equal(t, OrderCancelled, got.Status)
}

func TestUpsertPosition_InsertThenUpdate(t *testing.T) {
	l := openTestLedger(t)

	p, err := l.UpsertPosition(Position{
		BotName: "grid-1", Symbol: "BTCUSDT",
		EntryPrice: dec("29950"), Amount: dec("0.01"),
		OpenOrderID: "order-1",
	})
	require.NoError(t, err)
	require.Zero(t, p.PeakPnlPct)

	stop := dec("29000")
	p2, err := l.UpsertPosition(Position{
		BotName: "grid-1", Symbol: "BTCUSDT",
		EntryPrice: dec("29950"), Amount: dec("0.01"),
		OpenOrderID: "order-1", TrailingStopPrice: &stop, PeakPnlPct: 2.5,
	})
	require.NoError(t, err)
	require.Equal(t, p.ID, p2.ID)
	require.Equal(t, 2.5, p2.PeakPnlPct)

	positions, err := l.ListPositions("grid-1")
	require.NoError(t, err)
	require.Len(t, positions, 1)

	require.NoError(t, l.ClosePosition(p2.ID))
	positions, err = l.ListPositions("grid-1")
	require.NoError(t, err)
	require.Empty(t, positions)
}

func TestRecomputeMetrics_WinRateAndProfitFactor(t *testing.T) {
	l := openTestLedger(t)

	win := dec("10")
	loss := dec("-4")
	trades := []Trade{
		{BotName: "grid-1", Symbol: "BTCUSDT", Side: Sell, Price: dec("31000"), Amount: dec("0.01"), Value: dec("310"), Fee: dec("0.1"), Timestamp: time.Now().UTC(), Profit: &win},
		{BotName: "grid-1", Symbol: "BTCUSDT", Side: Sell, Price: dec("29000"), Amount: dec("0.01"), Value: dec("290"), Fee: dec("0.1"), Timestamp: time.Now().UTC(), Profit: &loss},
	}
	require.NoError(t, l.db.Create(&trades).Error)

	m, err := l.RecomputeMetrics("grid-1")
	require.NoError(t, err)
	require.Equal(t, 2, m.TotalTrades)
	require.Equal(t, 1, m.WinTrades)
	require.Equal(t, 1, m.LossTrades)
	require.Equal(t, 0.5, m.WinRate)
	require.InDelta(t, 2.5, m.ProfitFactor, 1e-9)
}

func TestHealthCheck_OK(t *testing.T) {
	l := openTestLedger(t)
	require.NoError(t, l.HealthCheck())
}

func TestBackup_WritesSnapshotFile(t *testing.T) {
	l := openTestLedger(t)
	dir := t.TempDir()
	path, err := l.Backup(dir)
	require.NoError(t, err)
	require.FileExists(t, path)
}
