package metrics

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/genesis-core/genesis-core/internal/tracker"
)

func TestProfitFactorInfinityWithNoLosses(t *testing.T) {
	trades := []tracker.Trade{
		{PnL: decimal.NewFromFloat(10)},
		{PnL: decimal.NewFromFloat(20)},
	}
	m := ComputeTradeMetrics(trades)
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Fatalf("expected +Inf profit factor, got %v", m.ProfitFactor)
	}
}

func TestProfitFactorZeroTradesDefined(t *testing.T) {
	m := ComputeTradeMetrics(nil)
	if !math.IsInf(m.ProfitFactor, 1) || m.Count != 0 {
		t.Fatalf("expected +Inf profit factor for zero trades, got %+v", m)
	}
}

func TestSharpeZeroStdDevReturnsZeroNotNaN(t *testing.T) {
	curve := []tracker.EquitySnapshot{
		{Equity: decimal.NewFromFloat(10000), DrawdownPct: decimal.Zero},
		{Equity: decimal.NewFromFloat(10000), DrawdownPct: decimal.Zero},
	}
	m := ComputeEquityMetrics(curve, 10000, 365*24)
	if math.IsNaN(m.Sharpe) || m.Sharpe != 0 {
		t.Fatalf("expected Sharpe 0 for zero stddev, got %v", m.Sharpe)
	}
}

func TestCompositeScoreClipsInputs(t *testing.T) {
	score := CompositeScore(EquityMetrics{Sharpe: 100, TotalReturn: 100}, TradeMetrics{ProfitFactor: math.Inf(1), WinRate: 1})
	if math.IsInf(score, 0) || math.IsNaN(score) {
		t.Fatalf("expected finite clipped score, got %v", score)
	}
}

func TestDecileReportBucketsByConfidence(t *testing.T) {
	trades := make([]tracker.Trade, 10)
	conf := make([]float64, 10)
	for i := range trades {
		trades[i] = tracker.Trade{PnL: decimal.NewFromFloat(float64(i))}
		conf[i] = float64(i) / 10.0
	}
	report := ComputeDecileReport(trades, conf)
	if len(report.Deciles) != 10 {
		t.Fatalf("expected 10 deciles, got %d", len(report.Deciles))
	}
	total := 0
	for _, d := range report.Deciles {
		total += d.TradeCount
	}
	if total != 10 {
		t.Fatalf("expected all 10 trades bucketed, got %d", total)
	}
}
