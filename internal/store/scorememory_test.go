package store

import (
	"context"
	"testing"
)

func TestInProcessScoreMemoryMissThenHit(t *testing.T) {
	m := NewInProcessScoreMemory()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := m.Set(ctx, "fp-1", 0.42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	score, ok, err := m.Get(ctx, "fp-1")
	if err != nil || !ok {
		t.Fatalf("expected hit after set, ok=%v err=%v", ok, err)
	}
	if score != 0.42 {
		t.Fatalf("expected score 0.42, got %v", score)
	}
}

func TestInProcessScoreMemoryHitRatio(t *testing.T) {
	m := NewInProcessScoreMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "fp-1", 1.0)

	_, _, _ = m.Get(ctx, "fp-1") // hit
	_, _, _ = m.Get(ctx, "fp-2") // miss

	if ratio := m.HitRatio(); ratio != 0.5 {
		t.Fatalf("expected hit ratio 0.5, got %v", ratio)
	}
}
