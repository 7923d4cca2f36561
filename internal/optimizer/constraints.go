package optimizer

import (
	"fmt"

	"github.com/genesis-core/genesis-core/internal/metrics"
)

// ConstraintVerdict is the outcome of evaluating one trial's metrics
// against the search config's hard and soft constraints: a split
// between disqualifying (hard) and score-adjusting (soft) bounds.
type ConstraintVerdict struct {
	HardFailed     bool
	HardReasons    []string
	SoftViolations []string
	Penalty        float64
}

// EvaluateConstraints applies the search config's hard and soft bounds
// to one trial's trade/equity metrics.
func EvaluateConstraints(cfg SearchConfig, tm metrics.TradeMetrics, em metrics.EquityMetrics, totalCommissionPct float64) ConstraintVerdict {
	v := ConstraintVerdict{}

	if cfg.MinTrades > 0 && tm.Count < cfg.MinTrades {
		v.HardFailed = true
		v.HardReasons = append(v.HardReasons, fmt.Sprintf("num_trades %d < min_trades %d", tm.Count, cfg.MinTrades))
	}
	if cfg.MinProfitFactor > 0 && tm.ProfitFactor < cfg.MinProfitFactor {
		v.HardFailed = true
		v.HardReasons = append(v.HardReasons, fmt.Sprintf("profit_factor %.4f < min_profit_factor %.4f", tm.ProfitFactor, cfg.MinProfitFactor))
	}
	if cfg.MaxMaxDD > 0 && em.MaxDrawdown > cfg.MaxMaxDD {
		v.HardFailed = true
		v.HardReasons = append(v.HardReasons, fmt.Sprintf("max_drawdown %.4f > max_max_dd %.4f", em.MaxDrawdown, cfg.MaxMaxDD))
	}

	softPenalty := cfg.ConstraintSoftPenalty
	if softPenalty == 0 {
		softPenalty = 150
	}
	if cfg.MaxTrades > 0 && tm.Count > cfg.MaxTrades {
		v.SoftViolations = append(v.SoftViolations, fmt.Sprintf("num_trades %d > max_trades %d", tm.Count, cfg.MaxTrades))
		v.Penalty += softPenalty
	}
	if cfg.MaxTotalCommissionPct > 0 && totalCommissionPct > cfg.MaxTotalCommissionPct {
		v.SoftViolations = append(v.SoftViolations, fmt.Sprintf("total_commission_pct %.4f > max_total_commission_pct %.4f", totalCommissionPct, cfg.MaxTotalCommissionPct))
		v.Penalty += softPenalty
	}

	return v
}

// HardFailureScore is the fixed penalty score assigned to a trial that
// fails a hard constraint.
const HardFailureScore = -100.0

// ZeroTradeAbortScore is the fixed penalty assigned once a study has
// run past AbortAfterTrials trials and the most recent one produced no
// trades at all.
const ZeroTradeAbortScore = -500.0
