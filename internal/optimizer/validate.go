package optimizer

import (
	"sort"

	"github.com/genesis-core/genesis-core/internal/metrics"
)

// SelectTopN returns the n highest-scoring non-cached-abort trials,
// ranked descending by score, for the explore->validate flow: a study
// explores broadly, then re-runs its best candidates on a held-out
// validation window under stricter constraints before promotion.
func SelectTopN(trials []TrialResult, n int) []TrialResult {
	candidates := make([]TrialResult, 0, len(trials))
	for _, t := range trials {
		if t.Aborted {
			continue
		}
		candidates = append(candidates, t)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}

// ValidationConfig is the stricter constraint set applied when
// re-running a top candidate on the validation window: the top-N
// trials from the explore phase are re-scored against held-out data
// before either is trusted as champion-worthy.
type ValidationConfig struct {
	SearchCfg    SearchConfig
	WindowStart  int64
	WindowEnd    int64
}

// Validate re-scores a candidate's validation-window backtest result
// against the stricter validation constraint set rather than the
// exploration one.
func Validate(vcfg ValidationConfig, tm metrics.TradeMetrics, em metrics.EquityMetrics, totalCommissionPct float64) ConstraintVerdict {
	return EvaluateConstraints(vcfg.SearchCfg, tm, em, totalCommissionPct)
}
