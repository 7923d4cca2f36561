package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/genesis-core/genesis-core/internal/optimizer"
)

func TestWriteRunMetaDiagnostics(t *testing.T) {
	dir := t.TempDir()
	trials := []optimizer.TrialResult{
		{TrialNum: 0, Score: 1.0},
		{TrialNum: 1, Score: 2.0, CachedHit: true},
		{TrialNum: 2, Score: -100, Verdict: optimizer.ConstraintVerdict{HardFailed: true}},
		{TrialNum: 3, Score: -500, Aborted: true},
	}
	best := trials[1]

	if err := writeRunMeta(dir, "run-1", "sig-abc", best, trials, true); err != nil {
		t.Fatalf("writeRunMeta: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run_meta.json"))
	if err != nil {
		t.Fatalf("reading run_meta.json: %v", err)
	}
	var got runMeta
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.TrialCount != 4 {
		t.Fatalf("trial count = %d, want 4", got.TrialCount)
	}
	if got.DuplicateRatio != 0.25 {
		t.Fatalf("duplicate ratio = %v, want 0.25", got.DuplicateRatio)
	}
	if got.PrunedRatio != 0.25 {
		t.Fatalf("pruned ratio = %v, want 0.25", got.PrunedRatio)
	}
	if got.ZeroTradeRatio != 0.25 {
		t.Fatalf("zero-trade ratio = %v, want 0.25", got.ZeroTradeRatio)
	}
	if !got.Promoted || got.ResumeSignature != "sig-abc" {
		t.Fatalf("unexpected meta: %+v", got)
	}
}

func TestWriteRunMetaEmptyRun(t *testing.T) {
	dir := t.TempDir()
	if err := writeRunMeta(dir, "run-2", "sig-xyz", optimizer.TrialResult{}, nil, false); err != nil {
		t.Fatalf("writeRunMeta: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "run_meta.json"))
	if err != nil {
		t.Fatalf("reading run_meta.json: %v", err)
	}
	var got runMeta
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.DuplicateRatio != 0 || got.PrunedRatio != 0 || got.ZeroTradeRatio != 0 {
		t.Fatalf("expected zero ratios on an empty run, got %+v", got)
	}
}

func TestWriteTrialFilesNaming(t *testing.T) {
	dir := t.TempDir()
	tr := optimizer.TrialResult{TrialNum: 7, Params: map[string]interface{}{"decision.r_default": 1.9}, Score: 3.2}
	if err := writeTrialFiles(dir, tr); err != nil {
		t.Fatalf("writeTrialFiles: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trial_007_config.json")); err != nil {
		t.Fatalf("expected trial config file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trial_007.json")); err != nil {
		t.Fatalf("expected trial result file: %v", err)
	}
}

func TestResumeSignatureRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if got := readStoredResumeSignature(dir); got != "" {
		t.Fatalf("expected empty signature before any write, got %q", got)
	}
	if err := writeStoredResumeSignature(dir, "sig-123"); err != nil {
		t.Fatalf("writeStoredResumeSignature: %v", err)
	}
	if got := readStoredResumeSignature(dir); got != "sig-123" {
		t.Fatalf("got %q, want sig-123", got)
	}
}
