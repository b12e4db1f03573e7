package backtest

import (
	"testing"
	"time"

	"gridbot/exchange"
	"gridbot/grid"
	"gridbot/sentiment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func baseConfig() Config {
	return Config{
		Symbol:        "BTC/USDT",
		Lower:         dec("90000"),
		Upper:         dec("100000"),
		GridCount:     10,
		OrderSize:     dec("100"),
		InitialEquity: dec("10000"),
		TickSize:      decimal.Zero,
		LotStep:       decimal.Zero,
		Engine:        grid.DefaultConfig(),
	}
}

// oscillatingCandles walks the price down to the lower range and back up
// to the upper range over n bars, crossing multiple grid levels both ways
// so buys and their opposite-side replacement sells both get a chance to
// fill.
func oscillatingCandles(n int) []exchange.Candle {
	candles := make([]exchange.Candle, 0, n)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{95000, 92000, 90500, 93000, 97000, 99500, 96000, 91000, 94000, 98000}
	for i := 0; i < n; i++ {
		p := prices[i%len(prices)]
		low := p * 0.995
		high := p * 1.005
		candles = append(candles, exchange.Candle{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     decimal.NewFromFloat(p),
			High:     decimal.NewFromFloat(high),
			Low:      decimal.NewFromFloat(low),
			Close:    decimal.NewFromFloat(p),
		})
	}
	return candles
}

func TestRun_ProducesEquityCurveForEveryCandle(t *testing.T) {
	e := NewEngine(sentiment.Disabled{}, baseConfig())
	candles := oscillatingCandles(30)

	report, err := e.Run(candles, nil)
	require.NoError(t, err)
	require.Len(t, report.EquityCurve, len(candles))
	require.True(t, report.EquityCurve[0].At.Equal(candles[0].OpenTime))
}

func TestRun_GeneratesRoundTripTrades(t *testing.T) {
	e := NewEngine(sentiment.Disabled{}, baseConfig())
	candles := oscillatingCandles(40)

	report, err := e.Run(candles, nil)
	require.NoError(t, err)
	require.Greater(t, report.TotalTrades, 0)
	require.Equal(t, len(report.Trades), report.TotalTrades)
	for _, tr := range report.Trades {
		require.True(t, tr.Exit.GreaterThan(decimal.Zero))
		require.True(t, tr.Amount.GreaterThan(decimal.Zero))
	}
}

func TestRun_FeesAccumulateWithTrades(t *testing.T) {
	e := NewEngine(sentiment.Disabled{}, baseConfig())
	report, err := e.Run(oscillatingCandles(40), nil)
	require.NoError(t, err)
	if report.TotalTrades > 0 {
		require.True(t, report.TotalFees.GreaterThan(decimal.Zero))
	}
}

func TestRun_RejectsInvertedRange(t *testing.T) {
	cfg := baseConfig()
	cfg.Lower, cfg.Upper = cfg.Upper, cfg.Lower
	e := NewEngine(sentiment.Disabled{}, cfg)
	_, err := e.Run(oscillatingCandles(5), nil)
	require.Error(t, err)
}

func TestRun_RejectsEmptyCandles(t *testing.T) {
	e := NewEngine(sentiment.Disabled{}, baseConfig())
	_, err := e.Run(nil, nil)
	require.Error(t, err)
}

func TestRun_ExtremeFearSkipsSells(t *testing.T) {
	cfg := baseConfig()
	e := NewEngine(sentiment.NewComposite(sentiment.DefaultWeights(), sentiment.DefaultThresholds()), cfg)

	fear := 10.0
	history := make(map[string]sentiment.Signals)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		date := start.Add(time.Duration(i) * time.Hour).Format("2006-01-02")
		history[date] = sentiment.Signals{FearGreed: &fear}
	}

	report, err := e.Run(oscillatingCandles(30), history)
	require.NoError(t, err)
	require.Greater(t, report.SkippedSells, 0)
}

func TestMaxDrawdownPct_FlatCurveIsZero(t *testing.T) {
	points := []EquityPoint{{Equity: dec("1000")}, {Equity: dec("1000")}, {Equity: dec("1000")}}
	require.Equal(t, 0.0, maxDrawdownPct(points))
}

func TestMaxDrawdownPct_TracksPeakToTrough(t *testing.T) {
	points := []EquityPoint{{Equity: dec("1000")}, {Equity: dec("1200")}, {Equity: dec("900")}, {Equity: dec("1100")}}
	dd := maxDrawdownPct(points)
	require.InDelta(t, 25.0, dd, 0.01)
}
