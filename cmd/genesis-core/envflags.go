package main

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/genesis-core/genesis-core/internal/backtest"
)

// genesisEnv binds the canonical GENESIS_* environment flags through a
// viper instance rather than scattered os.Getenv calls, so every flag
// shares one case/boolean-parsing rule (viper treats "1", "true", "t",
// "TRUE" alike) and one place declares the full set of names.
func genesisEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("GENESIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func modeFlagsFromEnv() backtest.ModeFlags {
	v := genesisEnv()
	return backtest.ModeFlags{
		FastWindow:         v.GetBool("fast_window"),
		PrecomputeFeatures: v.GetBool("precompute_features"),
		ModeExplicit:       v.GetBool("mode_explicit"),
		HTFExits:           v.GetBool("htf_exits"),
	}
}

// allowStudyResumeMismatchFromEnv reads GENESIS_ALLOW_STUDY_RESUME_MISMATCH.
func allowStudyResumeMismatchFromEnv() bool {
	return genesisEnv().GetBool("allow_study_resume_mismatch")
}
