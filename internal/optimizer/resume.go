package optimizer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/genesis-core/genesis-core/internal/config"
	cerrors "github.com/genesis-core/genesis-core/internal/errors"
)

// resumeSignatureInput is the fixed set of inputs a study's identity
// depends on. stop_policy is excluded deliberately: operators may
// tighten or loosen a running study's stop/promotion policy without
// invalidating its accumulated trials.
type resumeSignatureInput struct {
	DefaultConfig config.Doc `json:"default_config"`
	SearchSpace   ParamSpace `json:"search_space"`
	CodeDigest    string     `json:"code_digest"`
}

// ComputeResumeSignature fingerprints the inputs that must stay stable
// across a resumed study: cached default config (minus stop_policy),
// the declared search space, and a caller-supplied code digest
// (typically a build version or binary hash).
func ComputeResumeSignature(defaultCfg config.Doc, space ParamSpace, codeDigest string) string {
	withoutStopPolicy := config.Doc{}
	for k, v := range defaultCfg {
		if k == "stop_policy" {
			continue
		}
		withoutStopPolicy[k] = v
	}
	data, _ := json.Marshal(resumeSignatureInput{DefaultConfig: withoutStopPolicy, SearchSpace: space, CodeDigest: codeDigest})
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:16]
}

// CheckResumeSignature enforces the resume guard: a study resumed
// against a changed default config, search space, or code digest
// aborts fatally unless GENESIS_ALLOW_STUDY_RESUME_MISMATCH=1 overrides
// it.
func CheckResumeSignature(stored, computed string, allowOverride bool) error {
	if stored == "" || stored == computed {
		return nil
	}
	if allowOverride {
		return nil
	}
	return cerrors.FatalConfig(fmt.Sprintf("study resume signature mismatch: stored=%s computed=%s", stored, computed), nil)
}
