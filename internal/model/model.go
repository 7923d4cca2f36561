// Package model adapts trained scorers into a uniform probability
// interface, keyed by (symbol, timeframe, regime).
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/genesis-core/genesis-core/internal/features"
)

// Probas is the output of a scorer: buy/sell probabilities with
// buy + sell <= 1.
type Probas struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// Key identifies a scorer slot in the registry.
type Key struct {
	Symbol    string
	Timeframe string
	Regime    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Symbol, k.Timeframe, k.Regime)
}

// Scorer is the opaque callable a registered model exposes. In this
// reference implementation it is a schema-validated linear scorer, but
// the adapter treats it as opaque beyond schema checking.
type Scorer struct {
	RequiredFeatures []string           `json:"required_features"`
	Weights          map[string]float64 `json:"weights"`
	BuyBias          float64            `json:"buy_bias"`
	SellBias         float64            `json:"sell_bias"`
}

// Registry is a collection of scorers loaded from a JSON file.
type Registry struct {
	scorers map[string]Scorer
}

// LoadRegistry reads a JSON registry file mapping "symbol|timeframe|regime"
// to a Scorer definition.
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: reading registry %s: %w", path, err)
	}
	var raw map[string]Scorer
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("model: parsing registry %s: %w", path, err)
	}
	return &Registry{scorers: raw}, nil
}

// NewRegistry builds a registry directly from an in-memory map, useful
// for tests and for programmatic wiring.
func NewRegistry(scorers map[string]Scorer) *Registry {
	return &Registry{scorers: scorers}
}

// Adapter evaluates a feature vector against a registered scorer.
type Adapter struct {
	registry *Registry
}

// NewAdapter constructs an Adapter over the given registry.
func NewAdapter(r *Registry) *Adapter {
	return &Adapter{registry: r}
}

// ErrSchemaMismatch is returned when a scorer's required features are
// absent from the supplied feature vector; this is a fatal condition.
var ErrSchemaMismatch = fmt.Errorf("model: scorer schema mismatch")

// Score returns probabilities for the given key and feature vector. An
// unregistered (symbol, timeframe) returns a zero Probas so the EV gate
// downstream naturally rejects, rather than erroring.
func (a *Adapter) Score(key Key, vec features.Vector) (Probas, error) {
	scorer, ok := a.registry.scorers[key.String()]
	if !ok {
		return Probas{}, nil
	}
	for _, f := range scorer.RequiredFeatures {
		v, present := vec[f]
		if !present || v != v {
			return Probas{}, fmt.Errorf("%w: missing feature %q for %s", ErrSchemaMismatch, f, key)
		}
	}

	buy := scorer.BuyBias
	sell := scorer.SellBias
	for feat, w := range scorer.Weights {
		buy += w * vec[feat]
	}
	for feat, w := range scorer.Weights {
		sell -= w * vec[feat]
	}

	p := Probas{Buy: clamp01(sigmoid(buy)), Sell: clamp01(sigmoid(sell))}
	if p.Buy+p.Sell > 1 {
		scale := 1 / (p.Buy + p.Sell)
		p.Buy *= scale
		p.Sell *= scale
	}
	return p, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
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
