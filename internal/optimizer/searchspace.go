// Package optimizer implements the hyperparameter search: a
// YAML-declared parameter space, a coordinate-descent suggester, param
// fingerprint + score-memory caching, hard/soft constraint scoring, an
// abort heuristic, resume-signature guarding, and champion promotion.
package optimizer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	cerrors "github.com/genesis-core/genesis-core/internal/errors"
)

// LeafKind is the closed set of search-space leaf types: fixed, grid,
// float range, int range, or log-uniform.
type LeafKind int

const (
	Fixed LeafKind = iota
	Grid
	FloatRange
	IntRange
	LogUniform
)

func (k LeafKind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Grid:
		return "grid"
	case FloatRange:
		return "float"
	case IntRange:
		return "int"
	case LogUniform:
		return "loguniform"
	default:
		return "unknown"
	}
}

// Leaf is one parameter's search-space declaration.
type Leaf struct {
	Kind   LeafKind
	Value  interface{}
	Values []interface{}
	Min    float64
	Max    float64
}

type rawLeaf struct {
	Type   string        `yaml:"type"`
	Value  interface{}   `yaml:"value"`
	Values []interface{} `yaml:"values"`
	Min    float64       `yaml:"min"`
	Max    float64       `yaml:"max"`
}

// UnmarshalYAML decodes a leaf's "type" string into the closed LeafKind enum.
func (l *Leaf) UnmarshalYAML(value *yaml.Node) error {
	var raw rawLeaf
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch raw.Type {
	case "fixed":
		l.Kind = Fixed
	case "grid":
		l.Kind = Grid
	case "float":
		l.Kind = FloatRange
	case "int":
		l.Kind = IntRange
	case "loguniform":
		l.Kind = LogUniform
	default:
		return fmt.Errorf("optimizer: unknown search-space leaf type %q", raw.Type)
	}
	l.Value = raw.Value
	l.Values = raw.Values
	l.Min = raw.Min
	l.Max = raw.Max
	return nil
}

// ParamSpace maps a dotted parameter name to its search-space leaf.
type ParamSpace map[string]Leaf

// PromotionConfig controls champion promotion.
type PromotionConfig struct {
	Enabled        bool    `yaml:"enabled"`
	MinImprovement float64 `yaml:"min_improvement"`
}

// SearchConfig is the full optimizer search-space YAML document.
type SearchConfig struct {
	Parameters            ParamSpace      `yaml:"parameters"`
	Promotion             PromotionConfig `yaml:"promotion"`
	MinTrades             int             `yaml:"min_trades"`
	MinProfitFactor        float64         `yaml:"min_profit_factor"`
	MaxMaxDD               float64         `yaml:"max_max_dd"`
	ConstraintSoftPenalty  float64         `yaml:"constraint_soft_penalty"`
	MaxTrades              int             `yaml:"max_trades"`
	MaxTotalCommissionPct  float64         `yaml:"max_total_commission_pct"`
	AbortIfZeroTrades      bool            `yaml:"abort_if_zero_trades"`
	AbortAfterTrials       int             `yaml:"abort_after_trials"`
}

// LoadSearchConfig reads and parses a search-space YAML file.
func LoadSearchConfig(path string) (*SearchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.FatalConfig("failed to read search-space file", err)
	}
	var cfg SearchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cerrors.FatalConfig("failed to parse search-space YAML", err)
	}
	if cfg.ConstraintSoftPenalty == 0 {
		cfg.ConstraintSoftPenalty = 150
	}
	return &cfg, nil
}
