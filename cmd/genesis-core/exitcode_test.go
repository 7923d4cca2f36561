package main

import (
	"errors"
	"testing"

	cerrors "github.com/genesis-core/genesis-core/internal/errors"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"fatal config", cerrors.FatalConfig("bad config", nil), 2},
		{"fatal data", cerrors.FatalData("bad candles", nil), 3},
		{"transient", cerrors.Transient("disk full", nil), 4},
		{"plain error", errors.New("boom"), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCodeFor(tc.err); got != tc.want {
				t.Fatalf("exitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
