package backtest

import (
	"testing"

	"github.com/genesis-core/genesis-core/internal/candle"
	"github.com/genesis-core/genesis-core/internal/confidence"
	"github.com/genesis-core/genesis-core/internal/decision"
	"github.com/genesis-core/genesis-core/internal/exits"
	"github.com/genesis-core/genesis-core/internal/features"
	"github.com/genesis-core/genesis-core/internal/model"
)

func constantCandles(n int, price float64) []candle.Candle {
	bars := make([]candle.Candle, n)
	for i := range bars {
		bars[i] = candle.Candle{
			TimestampMS: int64(i+1) * 3600000,
			Open:        price, High: price, Low: price, Close: price, Volume: 1,
		}
	}
	return bars
}

func baseEngineConfig(registry *model.Registry) Config {
	return Config{
		Symbol: "BTC-USD", Timeframe: "1h", WarmupBars: 50,
		InitialCapital: 10000, CommissionPct: 0.002, SlippagePct: 0.0005,
		FeaturesCfg: features.Config{Symbol: "BTC-USD", Timeframe: "1h", ATRPeriod: 14, SwingLookback: 3},
		ModelKeyFn: func(r confidence.Regime) model.Key {
			return model.Key{Symbol: "BTC-USD", Timeframe: "1h", Regime: r.String()}
		},
		Adapter:     model.NewAdapter(registry),
		DecisionCfg: decision.Config{RDefault: 1.8, HysteresisSteps: 1, MaxPositionSize: 0.1},
		ExitsCfg:    exits.Config{FibThresholdATR: 0.5, TrailATRMultiplier: 1.8},
		Quality:     confidence.QualityFactors{VolumeScore: 1, DataQuality: 1},
		StopLossATRMultiplier:   2,
		TakeProfitATRMultiplier: 3,
		MaxHoldBars:             50,
		Flags:                   ModeFlags{},
		BarsPerYear:             365 * 24,
	}
}

// S1: dry engine, no registered scorer, constant price -> zero trades,
// zero return, every decision reason within the expected closed set.
func TestDryEngineNoSignals(t *testing.T) {
	registry := model.NewRegistry(map[string]model.Scorer{})
	cfg := baseEngineConfig(registry)
	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("unexpected error constructing engine: %v", err)
	}

	series := constantCandles(200, 100.0)
	result, err := eng.Run(series)
	if err != nil {
		t.Fatalf("unexpected error running backtest: %v", err)
	}

	if len(result.Trades) != 0 {
		t.Fatalf("expected zero trades, got %d", len(result.Trades))
	}
	if result.EquityMetrics.TotalReturn != 0 {
		t.Fatalf("expected zero return, got %v", result.EquityMetrics.TotalReturn)
	}
	for _, r := range result.BarReasons {
		switch r {
		case decision.ReasonProbaThreshold, decision.ReasonConfTooLow, decision.ReasonEVNeg:
		default:
			t.Fatalf("unexpected decision reason in dry run: %v", r)
		}
	}
}

// S2-style: a forced-buy scorer should open a LONG position and charge
// commission on entry.
func TestForcedLongOpensPosition(t *testing.T) {
	registry := model.NewRegistry(map[string]model.Scorer{
		"BTC-USD|1h|balanced": {BuyBias: 10, SellBias: -10},
	})
	cfg := baseEngineConfig(registry)
	cfg.DecisionCfg.RiskMap = []decision.RiskMapEntry{{ConfThreshold: 0, SizePct: 0.02}}
	cfg.DecisionCfg.MinEdge = 0
	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	series := constantCandles(60, 100.0)
	result, err := eng.Run(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Trades) == 0 {
		t.Fatal("expected at least one trade to open under a forced-buy scorer")
	}
}

// Position size must scale with equity: a 2% risk-map entry against a
// 10,000 initial capital and a 100 entry price should open ~2 units
// (qty = equity * size_pct / price), not 0.02 units.
func TestPositionSizeScalesWithEquity(t *testing.T) {
	registry := model.NewRegistry(map[string]model.Scorer{
		"BTC-USD|1h|balanced": {BuyBias: 10, SellBias: -10},
	})
	cfg := baseEngineConfig(registry)
	cfg.DecisionCfg.RiskMap = []decision.RiskMapEntry{{ConfThreshold: 0, SizePct: 0.02}}
	cfg.DecisionCfg.MinEdge = 0
	eng, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	series := constantCandles(60, 100.0)
	result, err := eng.Run(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Trades) == 0 {
		t.Fatal("expected at least one trade to open")
	}

	size, _ := result.Trades[0].Size.Float64()
	wantQty := 10000.0 * 0.02 / 100.0
	if size < wantQty*0.5 || size > wantQty*1.5 {
		t.Fatalf("expected position size near %v (equity*size_pct/price), got %v", wantQty, size)
	}
}

func TestEnforceCanonicalModeRejectsMismatch(t *testing.T) {
	err := EnforceCanonicalMode(ModeFlags{FastWindow: true, PrecomputeFeatures: false, ModeExplicit: false})
	if err == nil {
		t.Fatal("expected fatal config error for fast_window without precompute_features")
	}
}

func TestEnforceCanonicalModeAllowsExplicitOverride(t *testing.T) {
	err := EnforceCanonicalMode(ModeFlags{FastWindow: true, PrecomputeFeatures: false, ModeExplicit: true})
	if err != nil {
		t.Fatalf("expected mode_explicit override to be accepted, got %v", err)
	}
}
