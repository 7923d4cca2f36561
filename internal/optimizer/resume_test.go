package optimizer

import (
	"testing"

	"github.com/genesis-core/genesis-core/internal/config"
)

func TestCheckResumeSignatureAllowsMatch(t *testing.T) {
	sig := ComputeResumeSignature(testDefaultCfg(), sampleSpace(), "v1")
	if err := CheckResumeSignature(sig, sig, false); err != nil {
		t.Fatalf("expected matching signatures to pass, got %v", err)
	}
}

func TestCheckResumeSignatureBlocksMismatch(t *testing.T) {
	before := ComputeResumeSignature(testDefaultCfg(), sampleSpace(), "v1")
	changed := config.Doc{"backtest": config.Doc{"commission": 0.01}}
	after := ComputeResumeSignature(changed, sampleSpace(), "v1")
	if err := CheckResumeSignature(before, after, false); err == nil {
		t.Fatal("expected mismatch to be rejected without override")
	}
}

func TestCheckResumeSignatureOverrideAllowsMismatch(t *testing.T) {
	before := ComputeResumeSignature(testDefaultCfg(), sampleSpace(), "v1")
	changed := config.Doc{"backtest": config.Doc{"commission": 0.01}}
	after := ComputeResumeSignature(changed, sampleSpace(), "v1")
	if err := CheckResumeSignature(before, after, true); err != nil {
		t.Fatalf("expected override to allow mismatch, got %v", err)
	}
}

func TestCheckResumeSignatureEmptyStoredAlwaysPasses(t *testing.T) {
	if err := CheckResumeSignature("", "anything", false); err != nil {
		t.Fatalf("expected empty stored signature (fresh study) to pass, got %v", err)
	}
}
