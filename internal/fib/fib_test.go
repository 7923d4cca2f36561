package fib

import (
	"testing"

	"github.com/genesis-core/genesis-core/internal/candle"
)

func htfSeries() []candle.Candle {
	bars := make([]candle.Candle, 21)
	for i := range bars {
		bars[i] = candle.Candle{TimestampMS: int64(i+1) * 86400000, High: 110, Low: 90, Close: 100}
	}
	bars[10] = candle.Candle{TimestampMS: bars[10].TimestampMS, High: 150, Low: 90, Close: 140}
	return bars
}

func TestResolveRejectsZeroReferenceTS(t *testing.T) {
	ctx := Resolve(htfSeries(), 0, 3)
	if ctx.IsAvailable() {
		t.Fatal("expected unavailable context")
	}
	if ctx.Reason() != ReasonMissingReferenceTS {
		t.Fatalf("expected ReasonMissingReferenceTS, got %v", ctx.Reason())
	}
}

func TestResolveNoLookahead(t *testing.T) {
	bars := htfSeries()
	// reference timestamp before the swing high at index 10 is confirmable
	refTS := bars[12].TimestampMS
	ctx := Resolve(bars, refTS, 3)
	if !ctx.IsAvailable() {
		t.Fatalf("expected available context, got reason %v", ctx.Reason())
	}
	if ctx.LastUpdate > refTS {
		t.Fatalf("context last_update %d must not exceed reference ts %d", ctx.LastUpdate, refTS)
	}
}

func TestNormalizeTimeframeAliases(t *testing.T) {
	tf, ok := NormalizeTimeframe("60m")
	if !ok || tf != TF1h {
		t.Fatalf("expected 60m to normalize to 1h, got %v ok=%v", tf, ok)
	}
	tf, ok = NormalizeTimeframe("1d")
	if !ok || tf != TF1D {
		t.Fatalf("expected 1d to normalize to 1D, got %v ok=%v", tf, ok)
	}
}
