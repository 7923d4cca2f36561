// Package confidence derives confidence scores and discrete regime
// classification from raw model probabilities and features.
package confidence

import (
	"github.com/genesis-core/genesis-core/internal/features"
	"github.com/genesis-core/genesis-core/internal/model"
)

// Regime is a closed enum of discrete market-state labels.
type Regime int

const (
	Balanced Regime = iota
	Bull
	Bear
	Ranging
)

func (r Regime) String() string {
	switch r {
	case Bull:
		return "bull"
	case Bear:
		return "bear"
	case Ranging:
		return "ranging"
	default:
		return "balanced"
	}
}

// VolatilityZone is an auxiliary calm/normal/volatile axis used for
// zone-specific threshold selection in the decision engine; it is
// distinct from Regime.
type VolatilityZone int

const (
	ZoneCalm VolatilityZone = iota
	ZoneNormal
	ZoneVolatile
)

// QualityFactors multiply raw probabilities to account for data/market
// quality before clamping.
type QualityFactors struct {
	VolumeScore    float64 // [0,1]
	SpreadPenalty  float64 // [0,1], subtracted
	DataQuality    float64 // [0,1]
}

// Confidence is the clamped, quality-adjusted probability readout.
type Confidence struct {
	Buy     float64
	Sell    float64
	Overall float64
}

// Classify derives confidence and regime from probabilities and features.
func Classify(p model.Probas, vec features.Vector, q QualityFactors) (Confidence, Regime, VolatilityZone) {
	quality := q.VolumeScore * q.DataQuality * (1 - q.SpreadPenalty)
	if quality <= 0 {
		quality = 0
	}

	buy := clamp01(p.Buy * quality)
	sell := clamp01(p.Sell * quality)
	overall := buy
	if sell > overall {
		overall = sell
	}

	regime := classifyRegime(vec)
	zone := classifyVolatilityZone(vec)

	return Confidence{Buy: buy, Sell: sell, Overall: overall}, regime, zone
}

// classifyRegime uses a weighted multi-indicator majority vote over EMA
// order, ADX trend strength and RSI to choose among the four discrete
// regimes. ATR percentile is not an input.
func classifyRegime(vec features.Vector) Regime {
	ema20 := vec["ema_20"]
	ema50 := vec["ema_50"]
	adx := vec["adx_14"]
	rsi := vec["rsi_14"]

	bullVotes, bearVotes, rangingVotes := 0.0, 0.0, 0.0

	// EMA order/slope vote (weight 2)
	if ema20 > ema50 {
		bullVotes += 2
	} else if ema20 < ema50 {
		bearVotes += 2
	} else {
		rangingVotes += 2
	}

	// ADX trend-strength vote (weight 1): weak ADX favors ranging
	// regardless of direction.
	if adx < 20 {
		rangingVotes += 1
	} else {
		if ema20 > ema50 {
			bullVotes += 1
		} else {
			bearVotes += 1
		}
	}

	// RSI mid-band vote (weight 1): near 50 favors balanced/ranging.
	if rsi >= 45 && rsi <= 55 {
		rangingVotes += 1
	} else if rsi > 55 {
		bullVotes += 1
	} else {
		bearVotes += 1
	}

	max := bullVotes
	regime := Bull
	if bearVotes > max {
		max = bearVotes
		regime = Bear
	}
	if rangingVotes > max {
		max = rangingVotes
		regime = Ranging
	}
	if bullVotes == bearVotes && bullVotes >= rangingVotes {
		regime = Balanced
	}
	return regime
}

func classifyVolatilityZone(vec features.Vector) VolatilityZone {
	atr := vec["atr_14"]
	switch {
	case atr <= 0:
		return ZoneCalm
	case atr < 1:
		return ZoneNormal
	default:
		return ZoneVolatile
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
