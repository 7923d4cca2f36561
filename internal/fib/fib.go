// Package fib computes multi-timeframe Fibonacci retracement context
// under strict as-of (no-lookahead) semantics.
package fib

import (
	"fmt"

	"github.com/genesis-core/genesis-core/internal/candle"
	"github.com/genesis-core/genesis-core/internal/indicators"
)

// Reason is the closed set of reasons a Context can be unavailable.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonMissingReferenceTS
	ReasonTimeframeMissing
	ReasonNotApplicable
	ReasonLevelsIncomplete
	ReasonInvalidSwingBounds
	ReasonLevelsOutOfBounds
)

func (r Reason) String() string {
	switch r {
	case ReasonMissingReferenceTS:
		return "MISSING_REFERENCE_TS"
	case ReasonTimeframeMissing:
		return "TIMEFRAME_MISSING"
	case ReasonNotApplicable:
		return "NOT_APPLICABLE"
	case ReasonLevelsIncomplete:
		return "LEVELS_INCOMPLETE"
	case ReasonInvalidSwingBounds:
		return "INVALID_SWING_BOUNDS"
	case ReasonLevelsOutOfBounds:
		return "LEVELS_OUT_OF_BOUNDS"
	default:
		return "NONE"
	}
}

// Levels holds the four canonical retracement prices.
type Levels struct {
	R382, R500, R618, R786 float64
}

// Context is a tagged variant: either Available with a fully-populated
// level set, or Unavailable with a closed reason code. There is no
// "available bool + optional fields" ambiguity — callers must branch on
// IsAvailable before reading SwingHigh/SwingLow/Levels.
type Context struct {
	available  bool
	reason     Reason
	SwingHigh  float64
	SwingLow   float64
	Levels     Levels
	LastUpdate int64
}

// IsAvailable reports whether this context carries usable levels.
func (c Context) IsAvailable() bool { return c.available }

// Reason returns the unavailability reason; zero value (ReasonNone) if
// the context is available.
func (c Context) Reason() Reason { return c.reason }

func unavailable(reason Reason) Context {
	return Context{available: false, reason: reason}
}

// Timeframe is a canonical timeframe identifier after alias normalization.
type Timeframe string

const (
	TF1h Timeframe = "1h"
	TF1D Timeframe = "1D"
)

var aliases = map[string]Timeframe{
	"60m": TF1h,
	"1h":  TF1h,
	"1d":  TF1D,
	"1D":  TF1D,
	"24h": TF1D,
}

// NormalizeTimeframe maps a raw timeframe string to its canonical form.
// An unrecognised alias returns ok=false.
func NormalizeTimeframe(raw string) (Timeframe, bool) {
	tf, ok := aliases[raw]
	return tf, ok
}

// Resolve computes the Fibonacci context from a higher-timeframe series,
// using only bars with timestamp <= refTS. refTS of zero is rejected:
// the caller must supply an explicit reference timestamp.
func Resolve(htf []candle.Candle, refTS int64, swingLookback int) Context {
	if refTS == 0 {
		return unavailable(ReasonMissingReferenceTS)
	}
	if len(htf) == 0 {
		return unavailable(ReasonTimeframeMissing)
	}

	cutoff := -1
	for i, c := range htf {
		if c.TimestampMS <= refTS {
			cutoff = i
		} else {
			break
		}
	}
	if cutoff < 0 {
		return unavailable(ReasonTimeframeMissing)
	}

	window := htf[:cutoff+1]
	bars := make([]indicators.Bar, len(window))
	for i, c := range window {
		bars[i] = indicators.Bar{High: c.High, Low: c.Low, Close: c.Close}
	}

	high, low, ok := indicators.LatestSwingHighLow(bars, swingLookback)
	if !ok {
		return unavailable(ReasonNotApplicable)
	}
	if !(low.Price < high.Price) {
		return unavailable(ReasonInvalidSwingBounds)
	}

	levels := computeLevels(high.Price, low.Price)
	if !levelsComplete(levels) {
		return unavailable(ReasonLevelsIncomplete)
	}
	if !levelsInBounds(levels, low.Price, high.Price) {
		return unavailable(ReasonLevelsOutOfBounds)
	}

	refIdx := high.Index
	if low.Index > refIdx {
		refIdx = low.Index
	}
	return Context{
		available:  true,
		SwingHigh:  high.Price,
		SwingLow:   low.Price,
		Levels:     levels,
		LastUpdate: window[refIdx].TimestampMS,
	}
}

func computeLevels(high, low float64) Levels {
	span := high - low
	return Levels{
		R382: high - 0.382*span,
		R500: high - 0.5*span,
		R618: high - 0.618*span,
		R786: high - 0.786*span,
	}
}

func levelsComplete(l Levels) bool {
	return isFinite(l.R382) && isFinite(l.R500) && isFinite(l.R618) && isFinite(l.R786)
}

func levelsInBounds(l Levels, low, high float64) bool {
	for _, v := range []float64{l.R382, l.R500, l.R618, l.R786} {
		if v < low || v > high {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return f == f && f > -1e300 && f < 1e300
}

// String renders a Context for logging/diagnostics.
func (c Context) String() string {
	if !c.available {
		return fmt.Sprintf("Unavailable(%s)", c.reason)
	}
	return fmt.Sprintf("Available(high=%.4f low=%.4f last_update=%d)", c.SwingHigh, c.SwingLow, c.LastUpdate)
}
