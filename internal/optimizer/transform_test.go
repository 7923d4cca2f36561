package optimizer

import (
	"testing"

	"github.com/genesis-core/genesis-core/internal/config"
	"github.com/genesis-core/genesis-core/internal/decision"
)

func nestedDoc(t *testing.T, doc config.Doc, key string) config.Doc {
	t.Helper()
	nested, ok := doc[key].(config.Doc)
	if !ok {
		t.Fatalf("expected %q to be a nested config.Doc, got %T", key, doc[key])
	}
	return nested
}

func TestTransformParametersExpandsDottedKeys(t *testing.T) {
	flat := map[string]interface{}{
		"decision.r_default":  1.9,
		"exits.policy":        "HYBRID",
		"features.atr_period": 14.0,
	}
	doc := TransformParameters(flat)

	if nestedDoc(t, doc, "decision")["r_default"] != 1.9 {
		t.Fatalf("expected nested r_default, got %+v", doc)
	}
	if nestedDoc(t, doc, "exits")["policy"] != "HYBRID" {
		t.Fatalf("expected nested exits.policy, got %+v", doc)
	}
}

func TestTransformParametersDerivesRiskMapFromDeltas(t *testing.T) {
	flat := map[string]interface{}{
		"risk_map_base_pct": 0.02,
		"risk_map_deltas": map[string]interface{}{
			"0.5": 0.0,
			"0.8": 0.03,
		},
	}
	doc := TransformParameters(flat)
	entries, ok := nestedDoc(t, doc, "decision")["risk_map"].([]decision.RiskMapEntry)
	if !ok {
		t.Fatalf("expected []decision.RiskMapEntry, got %T", doc["decision"])
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 risk map entries, got %d", len(entries))
	}
	if entries[0].ConfThreshold != 0.5 || entries[0].SizePct != 0.02 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].ConfThreshold != 0.8 || entries[1].SizePct != 0.05 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestEnsureSkipChampionMergeStampsMeta(t *testing.T) {
	doc := TransformParameters(map[string]interface{}{"decision.r_default": 1.8})
	ensureSkipChampionMerge(doc)
	meta := nestedDoc(t, doc, "meta")
	if meta["skip_champion_merge"] != true {
		t.Fatalf("expected skip_champion_merge=true, got %+v", meta)
	}
}
