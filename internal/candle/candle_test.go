package candle

import "testing"

func TestNewSeriesRejectsDuplicateTimestamp(t *testing.T) {
	_, err := NewSeries([]Candle{
		{TimestampMS: 1000, Close: 1},
		{TimestampMS: 1000, Close: 2},
	})
	if err == nil {
		t.Fatal("expected error for duplicate timestamp")
	}
}

func TestNewSeriesRejectsOutOfOrder(t *testing.T) {
	_, err := NewSeries([]Candle{
		{TimestampMS: 2000, Close: 1},
		{TimestampMS: 1000, Close: 2},
	})
	if err == nil {
		t.Fatal("expected error for out-of-order timestamp")
	}
}

func TestWindowNeverReadsBeyondIndex(t *testing.T) {
	s, err := NewSeries([]Candle{
		{TimestampMS: 1000, Close: 1},
		{TimestampMS: 2000, Close: 2},
		{TimestampMS: 3000, Close: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	w := s.Window(1)
	if len(w) != 2 {
		t.Fatalf("expected window of length 2, got %d", len(w))
	}
	if w[len(w)-1].Close != 2 {
		t.Fatalf("expected last close 2, got %v", w[len(w)-1].Close)
	}
}

func TestAppendEnforcesOrder(t *testing.T) {
	s, _ := NewSeries([]Candle{{TimestampMS: 1000, Close: 1}})
	if err := s.Append(Candle{TimestampMS: 500, Close: 2}); err == nil {
		t.Fatal("expected error appending earlier timestamp")
	}
	if err := s.Append(Candle{TimestampMS: 2000, Close: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected length 2, got %d", s.Len())
	}
}
