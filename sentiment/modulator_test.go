package sentiment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestComposite_MissingSignalsDropOut(t *testing.T) {
	c := NewComposite(DefaultWeights(), DefaultThresholds())
	out := c.Evaluate("BTC/USD", Signals{FearGreed: f(80)})
	require.Equal(t, 80.0, out.Score)
	require.True(t, out.SkipBuys)
}

func TestComposite_NoSignalsIsNeutral(t *testing.T) {
	c := NewComposite(DefaultWeights(), DefaultThresholds())
	out := c.Evaluate("BTC/USD", Signals{})
	require.Equal(t, 50.0, out.Score)
	require.False(t, out.SkipBuys)
	require.False(t, out.SkipSells)
}

func TestSizeMultiplierBands(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{10, 1.4}, {30, 1.2}, {45, 1.1}, {52, 1.0}, {60, 0.9}, {70, 0.6}, {90, 0.5},
	}
	c := NewComposite(Weights{FearGreed: 1}, DefaultThresholds())
	for _, tt := range tests {
		out := c.Evaluate("BTC/USD", Signals{FearGreed: f(tt.score)})
		require.Equal(t, tt.want, out.SizeMultiplier)
	}
}

func TestDisabled_PassThrough(t *testing.T) {
	out := Disabled{}.Evaluate("BTC/USD", Signals{FearGreed: f(90)})
	require.Equal(t, 50.0, out.Score)
	require.False(t, out.SkipBuys)
	require.Equal(t, 1.0, out.SizeMultiplier)
	require.Equal(t, 1.0, out.DipBuyerMultiplier)
}
