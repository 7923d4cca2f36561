package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/genesis-core/genesis-core/internal/backtest"
	"github.com/genesis-core/genesis-core/internal/circuit"
	"github.com/genesis-core/genesis-core/internal/confidence"
	"github.com/genesis-core/genesis-core/internal/config"
	"github.com/genesis-core/genesis-core/internal/decision"
	cerrors "github.com/genesis-core/genesis-core/internal/errors"
	"github.com/genesis-core/genesis-core/internal/exits"
	"github.com/genesis-core/genesis-core/internal/features"
	"github.com/genesis-core/genesis-core/internal/metrics"
	"github.com/genesis-core/genesis-core/internal/model"
)

// modelRegistryBreaker guards model.LoadRegistry: a registry file on a
// flaky network mount should fail fast on repeated reads rather than
// hang every trial on the same timeout.
var modelRegistryBreaker = circuit.New(circuit.Config{
	Name:            "model-registry-load",
	MaxFailures:     5,
	OpenTimeout:     30 * time.Second,
	HalfOpenMaxCall: 1,
})

// newBacktestCmd builds the backtest subcommand: --symbol, --timeframe,
// --start, --end, --warmup, --config-file, --capital, --commission,
// --slippage.
func newBacktestCmd() *cobra.Command {
	var (
		symbol, timeframe, configFile, candleFile, modelFile, outDir string
		startMS, endMS                                               int64
		warmup                                                       int
		capital, commission, slippage                                float64
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a single deterministic backtest",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadRuntimeConfigDoc(configFile)
			if err != nil {
				return err
			}
			if err := requireBacktestCommission(doc, commission); err != nil {
				return err
			}

			bars, err := loadCandles(candleFile, startMS, endMS)
			if err != nil {
				return err
			}

			registry := metrics.NewRegistry()
			cfg, err := buildEngineConfig(doc, symbol, timeframe, modelFile, warmup, capital, commission, slippage, registry)
			if err != nil {
				return err
			}

			eng, err := backtest.NewEngine(cfg)
			if err != nil {
				return err
			}
			result, err := eng.Run(bars)
			if err != nil {
				return err
			}

			path, err := writeBacktestResult(outDir, symbol, timeframe, result)
			if err != nil {
				return err
			}
			fmt.Printf("[SAVED] Results: %s\n", path)
			printGateBlockSummary(registry)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Trading symbol (required)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "1h", "Candle timeframe")
	cmd.Flags().Int64Var(&startMS, "start", 0, "Start timestamp, ms UTC (0 = unbounded)")
	cmd.Flags().Int64Var(&endMS, "end", 0, "End timestamp, ms UTC (0 = unbounded)")
	cmd.Flags().IntVar(&warmup, "warmup", 50, "Warmup bars before the first decision")
	cmd.Flags().StringVar(&configFile, "config-file", "", "Runtime config JSON file (required)")
	cmd.Flags().Float64Var(&capital, "capital", 10000, "Initial capital")
	cmd.Flags().Float64Var(&commission, "commission", 0, "Commission rate (fraction); required here or in --config-file")
	cmd.Flags().Float64Var(&slippage, "slippage", 0.0005, "Slippage rate (fraction)")
	cmd.Flags().StringVar(&candleFile, "candle-file", "", "Path to a JSON candle array (required)")
	cmd.Flags().StringVar(&modelFile, "model-file", "", "Path to a model registry JSON file (empty = no registered scorers)")
	cmd.Flags().StringVar(&outDir, "out", "out/backtest", "Output directory for the result file")

	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("config-file")
	_ = cmd.MarkFlagRequired("candle-file")

	return cmd
}

// requireBacktestCommission enforces the mandatory-commission rule at
// the CLI boundary: --commission must be supplied explicitly (nonzero),
// or backtest.commission must already be present in the config file.
func requireBacktestCommission(doc map[string]interface{}, commissionFlag float64) error {
	if commissionFlag != 0 {
		return nil
	}
	backtestSection, ok := doc["backtest"].(map[string]interface{})
	if ok {
		if _, ok := backtestSection["commission"]; ok {
			return nil
		}
	}
	return cerrors.FatalConfig("commission is mandatory: pass --commission or set backtest.commission in --config-file", nil)
}

func buildEngineConfig(doc map[string]interface{}, symbol, timeframe, modelFile string, warmup int, capital, commission, slippage float64, registry *metrics.Registry) (backtest.Config, error) {
	backtestSection, _ := doc["backtest"].(map[string]interface{})
	if commission == 0 {
		if c, ok := backtestSection["commission"].(float64); ok {
			commission = c
		}
	}

	modelRegistry, err := loadModelRegistry(modelFile)
	if err != nil {
		return backtest.Config{}, err
	}

	return backtest.Config{
		Symbol:         symbol,
		Timeframe:      timeframe,
		WarmupBars:     warmup,
		InitialCapital: capital,
		CommissionPct:  commission,
		SlippagePct:    slippage,
		FeaturesCfg: features.Config{
			Symbol:        symbol,
			Timeframe:     timeframe,
			ATRPeriod:     config.SafeInt(floatToIntPtr(doc, "features", "atr_period"), 14),
			SwingLookback: config.SafeInt(floatToIntPtr(doc, "features", "swing_lookback"), 3),
		},
		ModelKeyFn: func(r confidence.Regime) model.Key {
			return model.Key{Symbol: symbol, Timeframe: timeframe, Regime: r.String()}
		},
		Adapter: model.NewAdapter(modelRegistry),
		DecisionCfg: decision.Config{
			RDefault:        config.SafeFloat(floatPtr(doc, "decision", "r_default"), 1.8),
			MinEdge:         config.SafeFloat(floatPtr(doc, "decision", "min_edge"), 0),
			HysteresisSteps: config.SafeInt(floatToIntPtr(doc, "decision", "hysteresis_steps"), 1),
			MaxPositionSize: config.SafeFloat(floatPtr(doc, "decision", "max_position_size"), 0.1),
			RiskMap:         riskMapFrom(doc),
			ZoneThreshold:   func(confidence.Regime, confidence.VolatilityZone) float64 { return 0 },
			ConfThreshold:   func(confidence.Regime) float64 { return 0 },
		},
		ExitsCfg: exits.Config{
			FibThresholdATR:    config.SafeFloat(floatPtr(doc, "exits", "fib_threshold_atr"), 0.5),
			TrailATRMultiplier: config.SafeFloat(floatPtr(doc, "exits", "trail_atr_multiplier"), 1.8),
		},
		Quality:                 confidence.QualityFactors{VolumeScore: 1, DataQuality: 1},
		StopLossATRMultiplier:   config.SafeFloat(floatPtr(doc, "backtest", "stop_loss_atr_multiplier"), 2),
		TakeProfitATRMultiplier: config.SafeFloat(floatPtr(doc, "backtest", "take_profit_atr_multiplier"), 3),
		MaxHoldBars:             config.SafeInt(floatToIntPtr(doc, "backtest", "max_hold_bars"), 200),
		Flags:                   modeFlagsFromEnv(),
		BarsPerYear:             365 * 24,
		Registry:                registry,
	}, nil
}

// printGateBlockSummary prints the per-reason gate-block counts
// collected during a run, pulled straight from the Prometheus registry
// via Gather rather than any parallel in-memory tally.
func printGateBlockSummary(registry *metrics.Registry) {
	families, err := registry.Gather()
	if err != nil {
		return
	}
	for _, fam := range families {
		if fam.GetName() != "genesis_core_gate_blocks_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			reason := "unknown"
			for _, lbl := range m.GetLabel() {
				if lbl.GetName() == "reason" {
					reason = lbl.GetValue()
				}
			}
			fmt.Printf("[GATE] %s: %.0f\n", reason, m.GetCounter().GetValue())
		}
	}
}

// loadModelRegistry loads the scorer registry named by --model-file, or
// returns an empty registry (every key falls back to zero Probas, per
// model.Adapter.Score's documented NONE-signalling behavior) when no
// file is given.
func loadModelRegistry(modelFile string) (*model.Registry, error) {
	if modelFile == "" {
		return model.NewRegistry(map[string]model.Scorer{}), nil
	}
	result, err := modelRegistryBreaker.Execute(func() (interface{}, error) {
		return model.LoadRegistry(modelFile)
	})
	if err != nil {
		if circuit.IsOpenError(err) {
			return nil, cerrors.Transient("model registry breaker open: load rejected", err)
		}
		return nil, cerrors.FatalConfig("failed to load model registry", err)
	}
	return result.(*model.Registry), nil
}

func riskMapFrom(doc map[string]interface{}) []decision.RiskMapEntry {
	decisionSection, ok := doc["decision"].(map[string]interface{})
	if !ok {
		return []decision.RiskMapEntry{{ConfThreshold: 0, SizePct: 0.02}}
	}
	raw, ok := decisionSection["risk_map"].([]interface{})
	if !ok {
		return []decision.RiskMapEntry{{ConfThreshold: 0, SizePct: 0.02}}
	}
	entries := make([]decision.RiskMapEntry, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		threshold, _ := m["conf_threshold"].(float64)
		size, _ := m["size_pct"].(float64)
		entries = append(entries, decision.RiskMapEntry{ConfThreshold: threshold, SizePct: size})
	}
	if len(entries) == 0 {
		return []decision.RiskMapEntry{{ConfThreshold: 0, SizePct: 0.02}}
	}
	return entries
}

func floatPtr(doc map[string]interface{}, section, key string) *float64 {
	s, ok := doc[section].(map[string]interface{})
	if !ok {
		return nil
	}
	v, ok := s[key].(float64)
	if !ok {
		return nil
	}
	return &v
}

func floatToIntPtr(doc map[string]interface{}, section, key string) *int {
	v := floatPtr(doc, section, key)
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

func writeBacktestResult(outDir, symbol, timeframe string, result *backtest.Result) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", cerrors.Transient("failed to create output directory", err)
	}
	name := fmt.Sprintf("%s_%s_%d.json", symbol, timeframe, time.Now().UnixMilli())
	path := filepath.Join(outDir, name)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", cerrors.FatalData("failed to marshal backtest result", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", cerrors.Transient("failed to write backtest result file", err)
	}
	return path, nil
}
