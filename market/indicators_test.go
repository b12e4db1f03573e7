package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	require.Equal(t, 4.0, SMA(closes, 3))
	require.Equal(t, 0.0, SMA(closes, 10))
}

func TestEMA_ConvergesTowardLatestPrice(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	require.InDelta(t, 100, EMA(closes, 10), 1e-9)
}

func TestRSI_AllGainsIsOverbought(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	require.Equal(t, 100.0, RSI(closes, 14))
}

func TestRSI_InsufficientDataReturnsNeutral(t *testing.T) {
	require.Equal(t, 50.0, RSI([]float64{1, 2}, 14))
}

func TestATR_FlatCandlesIsZero(t *testing.T) {
	candles := make([]Candle, 20)
	for i := range candles {
		candles[i] = Candle{Open: 100, High: 100, Low: 100, Close: 100}
	}
	require.Equal(t, 0.0, ATR(candles, 14))
}

func TestClassifyRegime(t *testing.T) {
	tests := []struct {
		name           string
		bollingerWidth float64
		atr14Pct       float64
		expected       Regime
	}{
		{"narrow", 1.5, 0.8, RegimeNarrow},
		{"standard", 2.5, 1.5, RegimeStandard},
		{"wide", 3.5, 2.5, RegimeWide},
		{"volatile", 5.0, 4.0, RegimeVolatile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, ClassifyRegime(tt.bollingerWidth, tt.atr14Pct))
		})
	}
}

func TestClassifyVolatilityBucket(t *testing.T) {
	require.Equal(t, VolatilityLow, ClassifyVolatilityBucket(0.5))
	require.Equal(t, VolatilityMedium, ClassifyVolatilityBucket(2.0))
	require.Equal(t, VolatilityHigh, ClassifyVolatilityBucket(3.5))
}
