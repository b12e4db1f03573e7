package market

import "math"

// Candle is the OHLCV shape every indicator function walks. It mirrors the
// Exchange Gateway's Candle but is kept dependency-free so market stays
// importable from both the exchange and grid packages without a cycle.
type Candle struct {
	Open, High, Low, Close float64
}

// SMA is the simple moving average of the last period closes.
func SMA(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	return average(closes[len(closes)-period:])
}

// EMA computes the exponential moving average over the full series, using
// the SMA of the first period closes as the seed the way most charting
// libraries do.
func EMA(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := average(closes[:period])
	for _, c := range closes[period:] {
		ema = c*k + ema*(1-k)
	}
	return ema
}

// RSI14-style relative strength index over an arbitrary period.
func RSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}
	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}
	if len(gains) > period {
		gains = gains[len(gains)-period:]
		losses = losses[len(losses)-period:]
	}
	avgGain := average(gains)
	avgLoss := average(losses)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ATR is the average true range over period candles, computed as a simple
// average of true range rather than with Wilder's smoothing (accurate
// enough for regime classification — Wilder's smoothing constant only
// matters for longer indicator chains).
func ATR(candles []Candle, period int) float64 {
	if len(candles) <= period {
		return 0
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		c := candles[i]
		prevClose := candles[i-1].Close
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		trs = append(trs, tr)
	}
	if len(trs) > period {
		trs = trs[len(trs)-period:]
	}
	return average(trs)
}

// BollingerWidth returns the Bollinger band width as a percentage of the
// middle band: (upper-lower)/middle*100, using numStd standard deviations.
func BollingerWidth(closes []float64, period int, numStd float64) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	window := closes[len(closes)-period:]
	mid := average(window)
	if mid == 0 {
		return 0
	}
	variance := 0.0
	for _, c := range window {
		variance += (c - mid) * (c - mid)
	}
	variance /= float64(len(window))
	std := math.Sqrt(variance)
	upper := mid + numStd*std
	lower := mid - numStd*std
	return (upper - lower) / mid * 100
}

// Volatility is the coefficient of variation of the last period closes,
// the same normalized-stdev shape used across the codebase for "how noisy
// has this symbol been lately".
func Volatility(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	window := closes[len(closes)-period:]
	mean := average(window)
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, c := range window {
		variance += math.Pow(c-mean, 2)
	}
	variance /= float64(len(window))
	return math.Sqrt(variance) / mean
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
