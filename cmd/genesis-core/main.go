// Command genesis-core runs a deterministic backtest or a
// hyperparameter search, each a thin cobra subcommand over the
// internal/backtest and internal/optimizer packages.
package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/genesis-core/genesis-core/internal/logging"
)

const (
	appName = "genesis-core"
	version = "v0.1.0"
)

var log zerolog.Logger

func main() {
	// .env is optional; GENESIS_RANDOM_SEED and the mode-flag overrides
	// are usually exported by the shell, but local runs can keep them
	// in a file instead. A missing file is not an error.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log = logging.Setup(appName)

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Deterministic backtest and hyperparameter-optimization core",
		Version: version,
		Long: `genesis-core runs a deterministic, no-lookahead backtest engine and
its coordinate-descent hyperparameter optimizer against historical
candle data. Use the backtest subcommand for a single run, or
optimize to search a parameter space.`,
	}

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newOptimizeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}
