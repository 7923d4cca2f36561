// Package metrics computes trade-level and equity-curve metrics and the
// optimizer's composite score.
package metrics

import (
	"math"
	"sort"

	"github.com/genesis-core/genesis-core/internal/tracker"
)

// TradeMetrics summarizes the closed trade log.
type TradeMetrics struct {
	Count          int
	WinRate        float64
	GrossProfit    float64
	GrossLoss      float64
	ProfitFactor   float64 // math.Inf(1) when no losses
	AvgWin         float64
	AvgLoss        float64
	AvgDurationMS  float64
}

// EquityMetrics summarizes the equity curve.
type EquityMetrics struct {
	TotalReturn float64
	MaxDrawdown float64
	Sharpe      float64
	Sortino     float64
	Calmar      float64
}

// DecileReport buckets closed trades by confidence-at-entry decile and
// reports per-decile performance, enriching optimizer score
// explainability beyond the headline composite score.
type DecileReport struct {
	Deciles []DecileBucket
}

// DecileBucket is one decile's aggregate stats.
type DecileBucket struct {
	Decile     int
	TradeCount int
	WinRate    float64
	AvgPnL     float64
}

// ComputeTradeMetrics derives trade-level metrics from the closed trade
// log, net of commissions (Trade.PnL is already commission-net; see
// internal/tracker).
func ComputeTradeMetrics(trades []tracker.Trade) TradeMetrics {
	m := TradeMetrics{Count: len(trades)}
	if len(trades) == 0 {
		m.ProfitFactor = math.Inf(1)
		return m
	}

	wins, losses := 0, 0
	var totalWinDuration, totalLossDuration float64
	for _, tr := range trades {
		pnl, _ := tr.PnL.Float64()
		duration := float64(tr.ExitTimeMS - tr.EntryTimeMS)
		if pnl >= 0 {
			m.GrossProfit += pnl
			wins++
			totalWinDuration += duration
		} else {
			m.GrossLoss += -pnl
			losses++
			totalLossDuration += duration
		}
		m.AvgDurationMS += duration
	}
	m.AvgDurationMS /= float64(len(trades))
	m.WinRate = float64(wins) / float64(len(trades))
	if wins > 0 {
		m.AvgWin = m.GrossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = m.GrossLoss / float64(losses)
	}
	if m.GrossLoss == 0 {
		m.ProfitFactor = math.Inf(1)
	} else {
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	}
	return m
}

// ComputeEquityMetrics derives equity-curve metrics. barsPerYear
// annualizes Sharpe/Sortino (e.g. 365*24 for hourly bars).
func ComputeEquityMetrics(curve []tracker.EquitySnapshot, initialCapital float64, barsPerYear float64) EquityMetrics {
	var m EquityMetrics
	if len(curve) == 0 || initialCapital == 0 {
		return m
	}

	last, _ := curve[len(curve)-1].Equity.Float64()
	m.TotalReturn = (last - initialCapital) / initialCapital

	maxDD := 0.0
	for _, s := range curve {
		dd, _ := s.DrawdownPct.Float64()
		if dd > maxDD {
			maxDD = dd
		}
	}
	m.MaxDrawdown = maxDD

	returns := barReturns(curve, initialCapital)
	mean, std := meanStdDev(returns)
	if std == 0 {
		m.Sharpe = 0
	} else {
		m.Sharpe = (mean / std) * math.Sqrt(barsPerYear)
	}

	downside := downsideStdDev(returns)
	if downside == 0 {
		m.Sortino = 0
	} else {
		m.Sortino = (mean / downside) * math.Sqrt(barsPerYear)
	}

	if maxDD == 0 {
		m.Calmar = 0
	} else {
		m.Calmar = m.TotalReturn / maxDD
	}
	return m
}

func barReturns(curve []tracker.EquitySnapshot, initialCapital float64) []float64 {
	returns := make([]float64, 0, len(curve))
	prev := initialCapital
	for _, s := range curve {
		eq, _ := s.Equity.Float64()
		if prev != 0 {
			returns = append(returns, (eq-prev)/prev)
		}
		prev = eq
	}
	return returns
}

func meanStdDev(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func downsideStdDev(values []float64) float64 {
	var sumSq float64
	var n int
	for _, v := range values {
		if v < 0 {
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

// ClipF clamps v to [lo, hi].
func ClipF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CompositeScore implements the default v2 composite score formula.
func CompositeScore(equity EquityMetrics, trade TradeMetrics) float64 {
	sharpe := ClipF(equity.Sharpe, -1, 3)
	ret := ClipF(equity.TotalReturn, -0.5, 0.5)
	pf := trade.ProfitFactor
	if math.IsInf(pf, 1) {
		pf = 5.0
	}
	pf = ClipF(pf, 0.25, 5.0)
	winrate := ClipF(trade.WinRate-0.5, -0.1, 0.1)

	return sharpe + 0.15*math.Log1p(ret) + 0.10*math.Log(pf) + 0.05*winrate
}

// ComputeDecileReport buckets trades by confidenceAtEntry (aligned
// positionally with trades) into deciles 0-9 by ascending confidence.
func ComputeDecileReport(trades []tracker.Trade, confidenceAtEntry []float64) DecileReport {
	if len(trades) == 0 || len(trades) != len(confidenceAtEntry) {
		return DecileReport{}
	}

	type indexed struct {
		idx  int
		conf float64
	}
	sorted := make([]indexed, len(trades))
	for i := range trades {
		sorted[i] = indexed{idx: i, conf: confidenceAtEntry[i]}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].conf < sorted[j].conf })

	buckets := make([]DecileBucket, 10)
	for d := 0; d < 10; d++ {
		buckets[d].Decile = d
	}
	n := len(sorted)
	for rank, s := range sorted {
		decile := rank * 10 / n
		if decile > 9 {
			decile = 9
		}
		pnl, _ := trades[s.idx].PnL.Float64()
		buckets[decile].TradeCount++
		buckets[decile].AvgPnL += pnl
		if pnl >= 0 {
			buckets[decile].WinRate++
		}
	}
	for i := range buckets {
		if buckets[i].TradeCount > 0 {
			buckets[i].AvgPnL /= float64(buckets[i].TradeCount)
			buckets[i].WinRate /= float64(buckets[i].TradeCount)
		}
	}
	return DecileReport{Deciles: buckets}
}
