package optimizer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/genesis-core/genesis-core/internal/config"
	"github.com/genesis-core/genesis-core/internal/decision"
)

// TransformParameters expands a flat, dotted-key parameter map (as
// produced by a suggester) into the nested config.Doc shape the
// runtime config expects, then derives the composed fields the search
// space only states as deltas: decision.risk_map from
// risk_map_base_pct/risk_map_deltas, and zone thresholds from
// zone_threshold_base/zone_threshold_deltas.
func TransformParameters(flat map[string]interface{}) config.Doc {
	doc := config.Doc{}
	for k, v := range flat {
		setDotted(doc, k, v)
	}
	deriveRiskMap(doc, flat)
	deriveZoneThresholds(doc, flat)
	return doc
}

func setDotted(doc config.Doc, dottedKey string, value interface{}) {
	parts := strings.Split(dottedKey, ".")
	cur := doc
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(config.Doc)
		if !ok {
			nextMap, ok := cur[p].(map[string]interface{})
			if ok {
				next = config.Doc(nextMap)
			} else {
				next = config.Doc{}
			}
			cur[p] = next
		}
		cur = next
	}
}

// deriveRiskMap builds decision.risk_map as a sorted list of
// {conf_threshold, size_pct} entries from a base size and a set of
// per-threshold deltas.
func deriveRiskMap(doc config.Doc, flat map[string]interface{}) {
	base, ok := flat["risk_map_base_pct"].(float64)
	if !ok {
		return
	}
	deltas, ok := flat["risk_map_deltas"].(map[string]interface{})
	if !ok {
		return
	}
	entries := make([]decision.RiskMapEntry, 0, len(deltas))
	for thresholdStr, deltaRaw := range deltas {
		threshold, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil {
			continue
		}
		delta, _ := deltaRaw.(float64)
		entries = append(entries, decision.RiskMapEntry{
			ConfThreshold: threshold,
			SizePct:       base + delta,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ConfThreshold < entries[j].ConfThreshold })

	decisionSection, _ := doc["decision"].(config.Doc)
	if decisionSection == nil {
		decisionSection = config.Doc{}
	}
	decisionSection["risk_map"] = entries
	doc["decision"] = decisionSection
}

// deriveZoneThresholds builds a zone-name -> threshold map from a base
// value plus per-zone deltas, the same base+delta idiom as risk_map.
func deriveZoneThresholds(doc config.Doc, flat map[string]interface{}) {
	base, ok := flat["zone_threshold_base"].(float64)
	if !ok {
		return
	}
	deltas, ok := flat["zone_threshold_deltas"].(map[string]interface{})
	if !ok {
		return
	}
	thresholds := make(map[string]float64, len(deltas))
	for zone, deltaRaw := range deltas {
		delta, _ := deltaRaw.(float64)
		thresholds[zone] = base + delta
	}
	decisionSection, _ := doc["decision"].(config.Doc)
	if decisionSection == nil {
		decisionSection = config.Doc{}
	}
	decisionSection["zone_thresholds"] = thresholds
	doc["decision"] = decisionSection
}

// ensureSkipChampionMerge stamps meta.skip_champion_merge=true on an
// effective config, recording the optimizer's merge strategy choice
// for any downstream code still reading the legacy sentinel field.
// RunTrial itself enforces the skip via config.CallerOnly; this stamp
// only keeps the field's value truthful for reporting.
func ensureSkipChampionMerge(doc config.Doc) {
	meta, _ := doc["meta"].(config.Doc)
	if meta == nil {
		meta = config.Doc{}
	}
	meta["skip_champion_merge"] = true
	doc["meta"] = meta
}

func cloneParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func paramNamesSorted(params map[string]interface{}) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
