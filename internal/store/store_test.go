package store

import (
	"context"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *StudyDB {
	t.Helper()
	s, err := Open(context.Background(), BackendSQLite, ":memory:", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to open in-memory study db: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetTrialByFingerprint(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	rec := TrialRecord{
		RunID:               "run-1",
		TrialNum:            0,
		ParamFingerprint:    "fp-abc",
		Score:               1.25,
		MetricsJSON:         `{"sharpe":1.1}`,
		ConstraintVerdict:   "pass",
		EffectiveConfigHash: "cfg-fp",
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.SaveTrial(ctx, rec); err != nil {
		t.Fatalf("unexpected error saving trial: %v", err)
	}

	got, ok, err := s.GetByFingerprint(ctx, "fp-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected trial to be found by fingerprint")
	}
	if got.Score != 1.25 {
		t.Fatalf("expected score 1.25, got %v", got.Score)
	}
}

func TestGetByFingerprintMissReturnsNotFound(t *testing.T) {
	s := openTestDB(t)
	_, ok, err := s.GetByFingerprint(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected miss for unseen fingerprint")
	}
}

func TestListTrialsOrderedByTrialNum(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	for i := 2; i >= 0; i-- {
		_ = s.SaveTrial(ctx, TrialRecord{RunID: "run-2", TrialNum: i, ParamFingerprint: "fp", Score: float64(i), CreatedAt: time.Now().UTC()})
	}
	trials, err := s.ListTrials(ctx, "run-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trials) != 3 {
		t.Fatalf("expected 3 trials, got %d", len(trials))
	}
	for i, tr := range trials {
		if tr.TrialNum != i {
			t.Fatalf("expected trial %d at position %d, got %d", i, i, tr.TrialNum)
		}
	}
}

func TestPromoteChampionUpsertsSinglePerSymbolTimeframe(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	c1 := Champion{Symbol: "BTC-USD", Timeframe: "1h", MergedConfig: "{}", Score: 1.0, RuntimeVersion: "v1", Fingerprint: "fp1", PromotedAt: time.Now().UTC()}
	if err := s.PromoteChampion(ctx, c1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c2 := c1
	c2.Score = 2.0
	c2.Fingerprint = "fp2"
	if err := s.PromoteChampion(ctx, c2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := s.GetChampion(ctx, "BTC-USD", "1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected champion to exist")
	}
	if got.Score != 2.0 {
		t.Fatalf("expected latest promotion to win, got score %v", got.Score)
	}
}
