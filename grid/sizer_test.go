package grid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizer_BasicNoAdjustments(t *testing.T) {
	s := NewSizer()
	result := s.Size(SizerInput{
		BaseOrderSize:   dec("100"),
		CurrentPrice:    dec("50000"),
		AvailableEquity: dec("100000"),
		LevelWeight:     1.0,
	})
	require.True(t, result.Size.Equal(dec("100")))
}

func TestSizer_CapsToMaxPositionPercent(t *testing.T) {
	s := NewSizer()
	result := s.Size(SizerInput{
		BaseOrderSize:      dec("50000"),
		CurrentPrice:       dec("50000"),
		AvailableEquity:    dec("100000"),
		LevelWeight:        1.0,
		MaxPositionPercent: 0.10,
	})
	require.True(t, result.Size.Equal(dec("10000")))
}

func TestSizer_MonotonicInEquity(t *testing.T) {
	s := NewSizer()
	base := SizerInput{BaseOrderSize: dec("10"), CurrentPrice: dec("100"), LevelWeight: 1.0, MaxPositionPercent: 0.5}
	low := base
	low.AvailableEquity = dec("100")
	high := base
	high.AvailableEquity = dec("1000")

	require.True(t, s.Size(high).Size.GreaterThanOrEqual(s.Size(low).Size))
}

func TestSizer_MonotonicInverseATR(t *testing.T) {
	s := NewSizer()
	base := SizerInput{BaseOrderSize: dec("10"), CurrentPrice: dec("100"), AvailableEquity: dec("100000"), LevelWeight: 1.0, MaxPositionPercent: 1}
	lowVol := base
	lowVol.ATRPercent = 0.5
	highVol := base
	highVol.ATRPercent = 2.0

	require.True(t, s.Size(lowVol).Size.GreaterThanOrEqual(s.Size(highVol).Size))
}

func TestSizer_KellyAPpliesAfter20Trades(t *testing.T) {
	s := NewSizer()
	result := s.Size(SizerInput{
		BaseOrderSize:   dec("100"),
		CurrentPrice:    dec("100"),
		AvailableEquity: dec("100000"),
		LevelWeight:     1.0,
		TotalTrades:     25,
		WinRate:         0.6,
		AvgWin:          dec("10"),
		AvgLoss:         dec("5"),
		MaxPositionPercent: 1,
	})
	require.NotEmpty(t, result.Adjustments)
	hasKelly := false
	for _, a := range result.Adjustments {
		if strings.HasPrefix(a, "kelly") {
			hasKelly = true
		}
	}
	require.True(t, hasKelly)
	require.True(t, result.Size.Equal(dec("50")))
}

func TestSizer_RoundsToLotStep(t *testing.T) {
	s := NewSizer()
	result := s.Size(SizerInput{
		BaseOrderSize:      dec("10.37"),
		CurrentPrice:       dec("100"),
		AvailableEquity:    dec("100000"),
		LevelWeight:        1.0,
		MaxPositionPercent: 1,
		LotStep:            dec("0.1"),
	})
	require.True(t, result.Size.Equal(dec("10.3")))
}
