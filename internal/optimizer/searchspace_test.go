package optimizer

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSearchSpaceFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "search.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write search space file: %v", err)
	}
	return path
}

func TestLoadSearchConfigParsesAllLeafKinds(t *testing.T) {
	path := writeSearchSpaceFile(t, `
parameters:
  decision.r_default:
    type: fixed
    value: 1.8
  decision.cooldown_bars:
    type: grid
    values: [1, 2, 3]
  decision.min_edge:
    type: float
    min: 0.0
    max: 0.5
  decision.hysteresis_steps:
    type: int
    min: 1
    max: 5
  exits.trail_atr_multiplier:
    type: loguniform
    min: 0.5
    max: 4.0
min_trades: 10
min_profit_factor: 1.1
max_max_dd: 0.3
promotion:
  enabled: true
  min_improvement: 0.05
`)
	cfg, err := LoadSearchConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Parameters) != 5 {
		t.Fatalf("expected 5 parameters, got %d", len(cfg.Parameters))
	}
	if cfg.Parameters["decision.r_default"].Kind != Fixed {
		t.Fatalf("expected fixed kind for r_default")
	}
	if cfg.Parameters["decision.cooldown_bars"].Kind != Grid {
		t.Fatalf("expected grid kind for cooldown_bars")
	}
	if cfg.Parameters["exits.trail_atr_multiplier"].Kind != LogUniform {
		t.Fatalf("expected loguniform kind for trail_atr_multiplier")
	}
	if !cfg.Promotion.Enabled || cfg.Promotion.MinImprovement != 0.05 {
		t.Fatalf("expected promotion config to parse, got %+v", cfg.Promotion)
	}
	if cfg.ConstraintSoftPenalty != 150 {
		t.Fatalf("expected default soft penalty of 150, got %v", cfg.ConstraintSoftPenalty)
	}
}

func TestLoadSearchConfigRejectsUnknownLeafType(t *testing.T) {
	path := writeSearchSpaceFile(t, `
parameters:
  decision.r_default:
    type: not-a-real-type
    value: 1
`)
	if _, err := LoadSearchConfig(path); err == nil {
		t.Fatal("expected error for unknown leaf type")
	}
}
