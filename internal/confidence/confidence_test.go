package confidence

import (
	"testing"

	"github.com/genesis-core/genesis-core/internal/features"
	"github.com/genesis-core/genesis-core/internal/model"
)

func TestClassifyClampsToUnitInterval(t *testing.T) {
	c, _, _ := Classify(model.Probas{Buy: 1.5, Sell: -0.5}, features.Vector{}, QualityFactors{VolumeScore: 1, DataQuality: 1})
	if c.Buy > 1 || c.Buy < 0 {
		t.Fatalf("expected buy confidence in [0,1], got %v", c.Buy)
	}
}

func TestClassifyZeroQualityZeroesConfidence(t *testing.T) {
	c, _, _ := Classify(model.Probas{Buy: 0.9, Sell: 0.1}, features.Vector{}, QualityFactors{VolumeScore: 0, DataQuality: 1})
	if c.Overall != 0 {
		t.Fatalf("expected zero confidence under zero volume score, got %v", c.Overall)
	}
}

func TestClassifyRegimeBull(t *testing.T) {
	vec := features.Vector{"ema_20": 110, "ema_50": 100, "adx_14": 30, "rsi_14": 65}
	_, regime, _ := Classify(model.Probas{Buy: 0.8, Sell: 0.1}, vec, QualityFactors{VolumeScore: 1, DataQuality: 1})
	if regime != Bull {
		t.Fatalf("expected Bull regime, got %v", regime)
	}
}

func TestClassifyRegimeRangingOnWeakTrend(t *testing.T) {
	vec := features.Vector{"ema_20": 100, "ema_50": 100, "adx_14": 10, "rsi_14": 50}
	_, regime, _ := Classify(model.Probas{Buy: 0.5, Sell: 0.5}, vec, QualityFactors{VolumeScore: 1, DataQuality: 1})
	if regime != Ranging && regime != Balanced {
		t.Fatalf("expected Ranging or Balanced regime for flat market, got %v", regime)
	}
}
