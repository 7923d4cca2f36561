package config

import "dario.cat/mergo"

// MergeStrategy selects how ResolveEffective combines override, champion,
// and runtime-default configs. Callers state their intent directly via
// this explicit parameter rather than relying on a metadata flag buried
// in the patch body.
type MergeStrategy int

const (
	// WithChampionOverlay applies runtime defaults, then the champion
	// config, then caller overrides (the live evaluator path).
	WithChampionOverlay MergeStrategy = iota
	// CallerOnly applies runtime defaults, then caller overrides,
	// skipping the champion layer entirely. Optimizer trials always
	// use this: a trial must be scored against its own proposed
	// parameters, never blended with whatever config currently holds
	// the champion slot.
	CallerOnly
)

// ResolveEffective computes the effective config for a request:
// request-supplied overrides take precedence over champion config,
// which takes precedence over runtime defaults — unless strategy is
// CallerOnly, in which case the champion layer is skipped entirely.
// Deep-merge is recursive for maps; scalars and lists replace.
func ResolveEffective(defaults, champion, overrides Doc, strategy MergeStrategy) (Doc, error) {
	effective := cloneDoc(defaults)

	if strategy == WithChampionOverlay && champion != nil {
		if err := mergo.Merge(&effective, champion, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	if overrides != nil {
		if err := mergo.Merge(&effective, overrides, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	return effective, nil
}
