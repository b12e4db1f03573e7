package grid

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SizerInput bundles every input the Position Sizer's seven steps read.
type SizerInput struct {
	BaseOrderSize       decimal.Decimal
	CurrentPrice        decimal.Decimal
	AvailableEquity     decimal.Decimal
	WinRate             float64 // p, in [0,1]
	AvgWin              decimal.Decimal
	AvgLoss             decimal.Decimal
	TotalTrades         int
	ATRPercent          float64 // e.g. 2.0 for 2%
	GridSpacingPercent  float64
	SentimentMultiplier float64
	LevelWeight         float64

	MaxPositionPercent float64 // default 0.10
	MaxRiskPerTrade    float64 // e.g. 0.02
	MinPositionPercent float64 // e.g. 0.001
	KellyFraction      float64 // default 0.25

	LotStep decimal.Decimal // exchange quantity step; zero skips rounding
}

// DefaultSizerCaps fills in the documented defaults for the cap fields,
// leaving the decision/market inputs to the caller.
func DefaultSizerCaps(in SizerInput) SizerInput {
	if in.MaxPositionPercent == 0 {
		in.MaxPositionPercent = 0.10
	}
	if in.KellyFraction == 0 {
		in.KellyFraction = 0.25
	}
	return in
}

// SizerResult is the sized amount plus an audit trail naming every rule
// that fired, so a sizing decision is always explainable after the fact.
type SizerResult struct {
	Size        decimal.Decimal
	Adjustments []string
}

// Sizer is a pure function: identical SizerInput always yields identical
// SizerResult.
type Sizer struct{}

// NewSizer constructs a Sizer.
func NewSizer() *Sizer { return &Sizer{} }

// Size runs the seven-step Position Sizer algorithm.
func (s *Sizer) Size(in SizerInput) SizerResult {
	var adjustments []string

	// 1. base * levelWeight * sentimentMultiplier
	sentimentMult := in.SentimentMultiplier
	if sentimentMult == 0 {
		sentimentMult = 1.0
	}
	levelWeight := in.LevelWeight
	if levelWeight == 0 {
		levelWeight = 1.0
	}
	size := in.BaseOrderSize.Mul(decimal.NewFromFloat(levelWeight)).Mul(decimal.NewFromFloat(sentimentMult))
	adjustments = append(adjustments, fmt.Sprintf("base=%s levelWeight=%.3f sentiment=%.3f -> %s", in.BaseOrderSize, levelWeight, sentimentMult, size))

	// 2. cap to maxPositionPercent * equity
	maxPositionPct := in.MaxPositionPercent
	if maxPositionPct == 0 {
		maxPositionPct = 0.10
	}
	positionCap := in.AvailableEquity.Mul(decimal.NewFromFloat(maxPositionPct))
	if size.GreaterThan(positionCap) {
		size = positionCap
		adjustments = append(adjustments, fmt.Sprintf("capped to maxPositionPercent=%.2f%% of equity -> %s", maxPositionPct*100, size))
	}

	// 3. fractional Kelly once there's enough trade history
	if in.TotalTrades >= 20 && in.AvgLoss.GreaterThan(decimal.Zero) {
		b, _ := in.AvgWin.Div(in.AvgLoss).Float64()
		p := in.WinRate
		q := 1 - p
		if b > 0 {
			kellyStar := (p*b - q) / b
			kellyFraction := in.KellyFraction
			if kellyFraction == 0 {
				kellyFraction = 0.25
			}
			mult := kellyFraction * kellyStar
			if mult < 0.5 {
				mult = 0.5
			} else if mult > 1.5 {
				mult = 1.5
			}
			size = size.Mul(decimal.NewFromFloat(mult))
			adjustments = append(adjustments, fmt.Sprintf("kelly f*=%.4f fraction=%.2f clamped mult=%.3f -> %s", kellyStar, kellyFraction, mult, size))
		}
	}

	// 4. volatility multiplier: base/atrPercent, clamped [0.5, 2.0]
	if in.ATRPercent > 0 {
		volMult := 1.0 / in.ATRPercent
		if volMult < 0.5 {
			volMult = 0.5
		} else if volMult > 2.0 {
			volMult = 2.0
		}
		size = size.Mul(decimal.NewFromFloat(volMult))
		adjustments = append(adjustments, fmt.Sprintf("volatility mult=%.3f (atrPercent=%.3f) -> %s", volMult, in.ATRPercent, size))
	}

	// 5. risk cap: size <= (maxRiskPerTrade * equity) / potentialLossPercent
	if in.MaxRiskPerTrade > 0 && in.GridSpacingPercent > 0 {
		riskBudget := in.AvailableEquity.Mul(decimal.NewFromFloat(in.MaxRiskPerTrade))
		riskCap := riskBudget.Div(decimal.NewFromFloat(in.GridSpacingPercent))
		if size.GreaterThan(riskCap) {
			size = riskCap
			adjustments = append(adjustments, fmt.Sprintf("capped to risk budget maxRiskPerTrade=%.3f -> %s", in.MaxRiskPerTrade, size))
		}
	}

	// 6. minPositionPercent * equity / price floor
	if in.MinPositionPercent > 0 && in.CurrentPrice.GreaterThan(decimal.Zero) {
		floor := in.AvailableEquity.Mul(decimal.NewFromFloat(in.MinPositionPercent)).Div(in.CurrentPrice)
		if size.LessThan(floor) {
			size = floor
			adjustments = append(adjustments, fmt.Sprintf("raised to minPositionPercent floor -> %s", size))
		}
	}

	// 7. round to exchange lot precision
	if in.LotStep.GreaterThan(decimal.Zero) {
		steps := size.Div(in.LotStep).Floor()
		rounded := steps.Mul(in.LotStep)
		if !rounded.Equal(size) {
			size = rounded
			adjustments = append(adjustments, fmt.Sprintf("rounded to lot step %s -> %s", in.LotStep, size))
		}
	}

	return SizerResult{Size: size, Adjustments: adjustments}
}
