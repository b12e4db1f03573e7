// Package sentiment turns external market-mood signals into admission and
// sizing adjustments the Grid Engine applies uniformly, regardless of
// which (if any) upstream signal sources are configured.
package sentiment

import "fmt"

// Signals is a point-in-time snapshot of whatever sentiment sources are
// configured. Pointer fields so "not configured" and "configured but
// reporting 0" are distinguishable — a missing signal drops out of the
// weighted average entirely rather than silently pulling it toward zero.
type Signals struct {
	FearGreed  *float64 // 0-100, CNN Fear & Greed style index
	News       *float64 // 0-100, news-sentiment aggregate
	AIAnalysis *float64 // 0-100, LLM-derived read of recent price action
	OnChain    *float64 // 0-100, on-chain flow sentiment
}

// Weights assigns each configured signal a contribution to the composite
// score. Must sum to 1.0 across whichever signals end up present;
// normalization happens at score time so partial configuration still
// produces a valid [0,100] score.
type Weights struct {
	FearGreed  float64
	News       float64
	AIAnalysis float64
	OnChain    float64
}

// DefaultWeights mirrors equal-weighting across all four sources.
func DefaultWeights() Weights {
	return Weights{FearGreed: 0.25, News: 0.25, AIAnalysis: 0.25, OnChain: 0.25}
}

// Thresholds configures the admission cutoffs; defaults match the spec's
// documented skipBuys ≥ 75 / skipSells ≤ 25.
type Thresholds struct {
	SkipBuysAt  float64
	SkipSellsAt float64
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{SkipBuysAt: 75, SkipSellsAt: 25}
}

// Output is what the Grid Engine consumes each cycle.
type Output struct {
	Score              float64
	SkipBuys           bool
	SkipSells          bool
	SizeMultiplier     float64
	DipBuyerMultiplier float64
	Recommendation     string
}

// Modulator computes an Output from a point-in-time Signals snapshot.
type Modulator interface {
	Evaluate(symbol string, signals Signals) Output
}

// Composite is the normal, configured Modulator.
type Composite struct {
	weights    Weights
	thresholds Thresholds
}

// NewComposite builds a Modulator from explicit weights/thresholds.
func NewComposite(weights Weights, thresholds Thresholds) *Composite {
	return &Composite{weights: weights, thresholds: thresholds}
}

func (c *Composite) Evaluate(symbol string, s Signals) Output {
	score := compositeScore(c.weights, s)

	out := Output{
		Score:              score,
		SkipBuys:           score >= c.thresholds.SkipBuysAt,
		SkipSells:          score <= c.thresholds.SkipSellsAt,
		SizeMultiplier:     sizeMultiplierForScore(score),
		DipBuyerMultiplier: dipBuyerMultiplierForScore(score),
	}
	out.Recommendation = recommendation(symbol, out)
	return out
}

// compositeScore is a weighted average over whatever signals are present;
// missing components drop from both numerator and denominator.
func compositeScore(w Weights, s Signals) float64 {
	var num, den float64
	add := func(v *float64, weight float64) {
		if v == nil || weight == 0 {
			return
		}
		num += *v * weight
		den += weight
	}
	add(s.FearGreed, w.FearGreed)
	add(s.News, w.News)
	add(s.AIAnalysis, w.AIAnalysis)
	add(s.OnChain, w.OnChain)
	if den == 0 {
		return 50
	}
	return num / den
}

// sizeMultiplierForScore implements the documented band table.
func sizeMultiplierForScore(score float64) float64 {
	switch {
	case score <= 25:
		return 1.4
	case score <= 40:
		return 1.2
	case score <= 50:
		return 1.1
	case score <= 55:
		return 1.0
	case score <= 65:
		return 0.9
	case score <= 75:
		return 0.6
	default:
		return 0.5
	}
}

// dipBuyerMultiplierForScore scales the Dip Buyer's extra-buy size: fear
// makes a dip more attractive to buy into, greed makes it suspicious of a
// reversal. Like sizeMultiplierForScore the curve falls as the score
// rises, over a wider range (2.0 down to 0.25).
func dipBuyerMultiplierForScore(score float64) float64 {
	switch {
	case score <= 25:
		return 2.0
	case score <= 40:
		return 1.5
	case score <= 55:
		return 1.0
	case score <= 75:
		return 0.5
	default:
		return 0.25
	}
}

func recommendation(symbol string, o Output) string {
	switch {
	case o.SkipBuys:
		return fmt.Sprintf("%s: sentiment extreme-greed (%.0f), holding off new buys", symbol, o.Score)
	case o.SkipSells:
		return fmt.Sprintf("%s: sentiment extreme-fear (%.0f), holding off new sells", symbol, o.Score)
	default:
		return fmt.Sprintf("%s: sentiment neutral (%.0f)", symbol, o.Score)
	}
}

// Disabled is the pass-through Modulator used when no sentiment sources
// are configured at all.
type Disabled struct{}

func (Disabled) Evaluate(string, Signals) Output {
	return Output{Score: 50, SizeMultiplier: 1.0, DipBuyerMultiplier: 1.0}
}
