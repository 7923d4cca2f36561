package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/genesis-core/genesis-core/internal/backtest"
	"github.com/genesis-core/genesis-core/internal/config"
	cerrors "github.com/genesis-core/genesis-core/internal/errors"
	"github.com/genesis-core/genesis-core/internal/metrics"
	"github.com/genesis-core/genesis-core/internal/optimizer"
	"github.com/genesis-core/genesis-core/internal/store"
)

// newOptimizeCmd builds the optimizer subcommand: it accepts a
// search-space YAML path and writes its run directory under
// results/hparam_search/<run_id>/.
func newOptimizeCmd() *cobra.Command {
	var (
		searchFile, defaultCfgFile, candleFile, modelFile, studyDBPath, resultsDir string
		symbol, timeframe                                                         string
		warmup, maxTrials                                                         int
		allowResumeMismatch                                                       bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Run the coordinate-descent hyperparameter search",
		RunE: func(cmd *cobra.Command, args []string) error {
			searchCfg, err := optimizer.LoadSearchConfig(searchFile)
			if err != nil {
				return err
			}
			defaultDoc, err := loadRuntimeConfigDoc(defaultCfgFile)
			if err != nil {
				return err
			}
			bars, err := loadCandles(candleFile, 0, 0)
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			runDir := filepath.Join(resultsDir, "hparam_search", runID)
			if err := os.MkdirAll(runDir, 0o755); err != nil {
				return cerrors.Transient("failed to create run directory", err)
			}

			studyDB, err := store.Open(cmd.Context(), store.BackendSQLite, studyDBPath, 10*time.Second)
			if err != nil {
				return err
			}
			defer studyDB.Close()

			resumeSig := optimizer.ComputeResumeSignature(config.Doc(defaultDoc), searchCfg.Parameters, version)
			storedSig := readStoredResumeSignature(runDir)
			allow := allowResumeMismatch || allowStudyResumeMismatchFromEnv()
			if err := optimizer.CheckResumeSignature(storedSig, resumeSig, allow); err != nil {
				return err
			}
			_ = writeStoredResumeSignature(runDir, resumeSig)

			registry := metrics.NewRegistry()
			runBacktest := func(ctx context.Context, effective config.Doc) (*backtest.Result, error) {
				cfg, err := buildEngineConfig(effective, symbol, timeframe, modelFile, warmup, 0, 0, 0, registry)
				if err != nil {
					return nil, err
				}
				eng, err := backtest.NewEngine(cfg)
				if err != nil {
					return nil, err
				}
				return eng.Run(bars)
			}

			study := optimizer.NewStudy(runID, *searchCfg, config.Doc(defaultDoc), store.NewInProcessScoreMemory(), studyDB, runBacktest)
			study.RuntimeVersion = version
			study.Registry = registry

			cd := optimizer.NewCoordinateDescent(optimizer.CDConfig{Seed: 42}, searchCfg.Parameters)
			params := cd.InitialGuess()

			var trials []optimizer.TrialResult
			var best optimizer.TrialResult
			for i := 0; i < maxTrials; i++ {
				tr, err := study.RunTrial(cmd.Context(), i, params)
				if err != nil {
					return err
				}
				trials = append(trials, tr)
				if i == 0 || tr.Score > best.Score {
					best = tr
				} else {
					cd.Backtrack(cd.CoordAt(i))
				}
				if err := writeTrialFiles(runDir, tr); err != nil {
					return err
				}
				params = cd.Suggest(params, i+1)
			}

			promoted, err := study.MaybePromote(cmd.Context(), symbol, timeframe, best, optimizer.TransformParameters(best.Params))
			if err == nil && promoted {
				fmt.Printf("[PROMOTED] champion for %s/%s score=%.4f\n", symbol, timeframe, best.Score)
			}

			if err := writeRunMeta(runDir, runID, resumeSig, best, trials, promoted); err != nil {
				return err
			}

			fmt.Printf("[SAVED] Results: %s\n", runDir)
			printTrialOutcomeSummary(registry)
			return nil
		},
	}

	cmd.Flags().StringVar(&searchFile, "search-file", "", "Search-space YAML path (required)")
	cmd.Flags().StringVar(&defaultCfgFile, "default-config", "", "Cached default runtime config JSON (required)")
	cmd.Flags().StringVar(&candleFile, "candle-file", "", "Path to a JSON candle array (required)")
	cmd.Flags().StringVar(&modelFile, "model-file", "", "Path to a model registry JSON file")
	cmd.Flags().StringVar(&symbol, "symbol", "", "Trading symbol (required)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "1h", "Candle timeframe")
	cmd.Flags().IntVar(&warmup, "warmup", 50, "Warmup bars before the first decision")
	cmd.Flags().IntVar(&maxTrials, "max-trials", 20, "Number of trials to run")
	cmd.Flags().StringVar(&studyDBPath, "study-db", "study.sqlite", "Study database path (sqlite file)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "results", "Root directory for run output")
	cmd.Flags().BoolVar(&allowResumeMismatch, "allow-resume-mismatch", false, "Override a resume-signature mismatch")

	_ = cmd.MarkFlagRequired("search-file")
	_ = cmd.MarkFlagRequired("default-config")
	_ = cmd.MarkFlagRequired("candle-file")
	_ = cmd.MarkFlagRequired("symbol")

	return cmd
}

// runMeta is the run_meta.json payload: the best trial, dedup/prune/
// zero-trade diagnostics across the run, and the resume signature
// computed for this run.
type runMeta struct {
	RunID           string                `json:"run_id"`
	ResumeSignature string                `json:"resume_signature"`
	TrialCount      int                   `json:"trial_count"`
	Promoted        bool                  `json:"promoted"`
	Best            optimizer.TrialResult `json:"best"`
	DuplicateRatio  float64               `json:"duplicate_ratio"`
	PrunedRatio     float64               `json:"pruned_ratio"`
	ZeroTradeRatio  float64               `json:"zero_trade_ratio"`
}

func writeRunMeta(runDir, runID, resumeSig string, best optimizer.TrialResult, trials []optimizer.TrialResult, promoted bool) error {
	total := len(trials)
	var duplicates, pruned, zeroTrade int
	for _, tr := range trials {
		if tr.CachedHit {
			duplicates++
		}
		if tr.Verdict.HardFailed {
			pruned++
		}
		if tr.Aborted {
			zeroTrade++
		}
	}
	ratio := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total)
	}

	meta := runMeta{
		RunID:           runID,
		ResumeSignature: resumeSig,
		TrialCount:      total,
		Promoted:        promoted,
		Best:            best,
		DuplicateRatio:  ratio(duplicates),
		PrunedRatio:     ratio(pruned),
		ZeroTradeRatio:  ratio(zeroTrade),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return cerrors.FatalData("failed to marshal run metadata", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "run_meta.json"), data, 0o644); err != nil {
		return cerrors.Transient("failed to write run metadata file", err)
	}
	return nil
}

func writeTrialFiles(runDir string, tr optimizer.TrialResult) error {
	configData, err := json.MarshalIndent(optimizer.TransformParameters(tr.Params), "", "  ")
	if err != nil {
		return cerrors.FatalData("failed to marshal trial config", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, fmt.Sprintf("trial_%03d_config.json", tr.TrialNum)), configData, 0o644); err != nil {
		return cerrors.Transient("failed to write trial config file", err)
	}

	resultData, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return cerrors.FatalData("failed to marshal trial result", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, fmt.Sprintf("trial_%03d.json", tr.TrialNum)), resultData, 0o644); err != nil {
		return cerrors.Transient("failed to write trial result file", err)
	}
	return nil
}

// printTrialOutcomeSummary prints the per-outcome trial counts collected
// during a study, pulled from the Prometheus registry via Gather.
func printTrialOutcomeSummary(registry *metrics.Registry) {
	families, err := registry.Gather()
	if err != nil {
		return
	}
	for _, fam := range families {
		if fam.GetName() != "genesis_core_optimizer_trials_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			outcome := "unknown"
			for _, lbl := range m.GetLabel() {
				if lbl.GetName() == "outcome" {
					outcome = lbl.GetValue()
				}
			}
			fmt.Printf("[TRIALS] %s: %.0f\n", outcome, m.GetCounter().GetValue())
		}
	}
}

func readStoredResumeSignature(runDir string) string {
	data, err := os.ReadFile(filepath.Join(runDir, "resume_signature.txt"))
	if err != nil {
		return ""
	}
	return string(data)
}

func writeStoredResumeSignature(runDir, sig string) error {
	return os.WriteFile(filepath.Join(runDir, "resume_signature.txt"), []byte(sig), 0o644)
}
