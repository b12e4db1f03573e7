package market

// Regime buckets recent volatility into coarse levels. The Grid Engine
// records one in each cycle's snapshot; the Grid Planner does not read it
// (its grid-count scaling uses VolatilityBucket).
type Regime string

const (
	RegimeNarrow   Regime = "narrow"
	RegimeStandard Regime = "standard"
	RegimeWide     Regime = "wide"
	RegimeVolatile Regime = "volatile"
)

// ClassifyRegime buckets a symbol's current Bollinger width and ATR14 (both
// expressed as a percentage of price) into a Regime. Thresholds widen
// together: a market only counts as Narrow if both its Bollinger width and
// its ATR are below the Narrow cut-offs.
func ClassifyRegime(bollingerWidthPct, atr14Pct float64) Regime {
	switch {
	case bollingerWidthPct < 2.0 && atr14Pct < 1.0:
		return RegimeNarrow
	case bollingerWidthPct <= 3.0 && atr14Pct <= 2.0:
		return RegimeStandard
	case bollingerWidthPct <= 4.0 && atr14Pct <= 3.0:
		return RegimeWide
	default:
		return RegimeVolatile
	}
}
