package exits

import (
	"testing"

	"github.com/genesis-core/genesis-core/internal/candle"
	"github.com/genesis-core/genesis-core/internal/fib"
)

// syntheticHTF builds an HTF series with a single pronounced swing so
// fib.Resolve deterministically yields an Available context.
func syntheticHTF(high, low float64) []candle.Candle {
	bars := make([]candle.Candle, 11)
	for i := range bars {
		bars[i] = candle.Candle{TimestampMS: int64(i+1) * 86400000, High: low + 5, Low: low, Close: low + 2}
	}
	bars[5] = candle.Candle{TimestampMS: bars[5].TimestampMS, High: high, Low: low, Close: (high + low) / 2}
	return bars
}

func availableContext(high, low float64) fib.Context {
	bars := syntheticHTF(high, low)
	return fib.Resolve(bars, bars[len(bars)-1].TimestampMS, 3)
}

// S7: price reaching 0.618 triggers a partial close; reaching 0.786
// next triggers a second partial close. Each partial carries Fraction
// 0.5, so the 0.786 target does not close the position in full.
func TestPartialExitSequenceAt618Then786(t *testing.T) {
	f := availableContext(200, 50)
	if !f.IsAvailable() {
		t.Fatalf("expected available fib context, got reason %v", f.Reason())
	}
	ctx := &Context{Fib: f, PartialsTaken: map[Reason]bool{}, PeakFavorable: 100}
	cfg := Config{FibThresholdATR: 0.5, TrailATRMultiplier: 1.8}

	action := Evaluate(ctx, cfg, true, f.Levels.R618, 1)
	if action.Kind != Partial || action.Reason != ReasonTargetLevel618 {
		t.Fatalf("expected partial at 0.618, got %+v", action)
	}

	action = Evaluate(ctx, cfg, true, f.Levels.R786, 1)
	if action.Kind != Partial || action.Reason != ReasonTargetLevel786 {
		t.Fatalf("expected partial at 0.786, got %+v", action)
	}
}

func TestStructureBreakTakesPrecedence(t *testing.T) {
	f := availableContext(200, 150)
	if !f.IsAvailable() {
		t.Fatalf("expected available fib context, got reason %v", f.Reason())
	}
	ctx := &Context{Fib: f, PartialsTaken: map[Reason]bool{}, PeakFavorable: 160}
	cfg := Config{FibThresholdATR: 0.1, TrailATRMultiplier: 1.8}

	action := Evaluate(ctx, cfg, true, f.SwingLow-1, 1)
	if action.Kind != FullExit || action.Reason != ReasonStructureBreak {
		t.Fatalf("expected structure-break full exit, got %+v", action)
	}
}

func TestShouldRefreshPolicies(t *testing.T) {
	ctx := &Context{LastATRAtRefresh: 10}
	if ShouldRefresh(ctx, Config{Policy: Fixed}, 50) {
		t.Fatal("Fixed policy must never refresh")
	}
	if !ShouldRefresh(ctx, Config{Policy: Dynamic}, 50) {
		t.Fatal("Dynamic policy must always refresh")
	}
	if ShouldRefresh(ctx, Config{Policy: Hybrid, HybridATRDeltaTrigger: 100}, 11) {
		t.Fatal("Hybrid policy must not refresh on small ATR moves")
	}
	if !ShouldRefresh(ctx, Config{Policy: Hybrid, HybridATRDeltaTrigger: 1}, 50) {
		t.Fatal("Hybrid policy must refresh once ATR moves beyond threshold")
	}
}
