// Package exits implements the HTF-driven exit engine: a frozen
// Fibonacci exit context evaluated each bar for partial closes, trailing
// stop updates, and full exits, in strict precedence order.
package exits

import (
	"github.com/genesis-core/genesis-core/internal/fib"
)

// Kind is the closed set of exit-action kinds an evaluation may produce.
type Kind int

const (
	NoAction Kind = iota
	Partial
	TrailUpdate
	FullExit
)

// Reason is the closed set of reasons a HTF exit action fires.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTargetLevel618
	ReasonTargetLevel786
	ReasonStructureBreak
	ReasonTrailAdvance
)

func (r Reason) String() string {
	switch r {
	case ReasonTargetLevel618:
		return "target_0.618"
	case ReasonTargetLevel786:
		return "target_0.786"
	case ReasonStructureBreak:
		return "structure_break"
	case ReasonTrailAdvance:
		return "trail_advance"
	default:
		return "none"
	}
}

// Action is the outcome of evaluating the exit context against the
// current bar.
type Action struct {
	Kind     Kind
	Reason   Reason
	Fraction float64 // meaningful only for Partial
	NewStop  float64 // meaningful only for TrailUpdate
}

// SwingUpdatePolicy controls how often the frozen exit context is
// refreshed.
type SwingUpdatePolicy int

const (
	Fixed SwingUpdatePolicy = iota
	Dynamic
	Hybrid
)

// Config bundles exit-engine tunables.
type Config struct {
	FibThresholdATR     float64
	TrailATRMultiplier  float64
	Policy              SwingUpdatePolicy
	HybridATRDeltaTrigger float64
}

// Context is the frozen exit state carried on an open position. It is
// set once at position open and rewritten only on an explicit refresh.
type Context struct {
	Fib             fib.Context
	PartialsTaken   map[Reason]bool
	PeakFavorable   float64
	LastATRAtRefresh float64
}

// NewContext freezes a Context from a resolved Fibonacci context at
// position open.
func NewContext(f fib.Context, entryPrice float64, atr float64) *Context {
	return &Context{Fib: f, PartialsTaken: map[Reason]bool{}, PeakFavorable: entryPrice, LastATRAtRefresh: atr}
}

// Evaluate returns the highest-precedence exit action for the current
// bar, or NoAction if none apply. Precedence order: PARTIAL before
// TRAIL_UPDATE before FULL_EXIT is NOT assumed — instead a structure-
// break FULL_EXIT pre-empts partials and trailing in the same bar,
// since a broken structure invalidates target levels; otherwise partial
// targets are taken before trailing-stop advances are applied.
func Evaluate(ctx *Context, cfg Config, isLong bool, currentPrice float64, atr float64) Action {
	if !ctx.Fib.IsAvailable() {
		return Action{Kind: NoAction}
	}

	if breaksStructure(ctx, isLong, currentPrice) {
		return Action{Kind: FullExit, Reason: ReasonStructureBreak}
	}

	threshold := cfg.FibThresholdATR * atr

	if !ctx.PartialsTaken[ReasonTargetLevel786] && withinTolerance(currentPrice, ctx.Fib.Levels.R786, threshold) {
		ctx.PartialsTaken[ReasonTargetLevel786] = true
		return Action{Kind: Partial, Reason: ReasonTargetLevel786, Fraction: 0.5}
	}
	if !ctx.PartialsTaken[ReasonTargetLevel618] && withinTolerance(currentPrice, ctx.Fib.Levels.R618, threshold) {
		ctx.PartialsTaken[ReasonTargetLevel618] = true
		return Action{Kind: Partial, Reason: ReasonTargetLevel618, Fraction: 0.5}
	}

	if isLong && currentPrice > ctx.PeakFavorable {
		ctx.PeakFavorable = currentPrice
	}
	if !isLong && (ctx.PeakFavorable == 0 || currentPrice < ctx.PeakFavorable) {
		ctx.PeakFavorable = currentPrice
	}

	if newStop, ok := trailAdvance(ctx, cfg, isLong, atr); ok {
		return Action{Kind: TrailUpdate, Reason: ReasonTrailAdvance, NewStop: newStop}
	}

	return Action{Kind: NoAction}
}

func withinTolerance(price, target, threshold float64) bool {
	diff := price - target
	if diff < 0 {
		diff = -diff
	}
	return diff <= threshold
}

func breaksStructure(ctx *Context, isLong bool, price float64) bool {
	if isLong {
		return price < ctx.Fib.SwingLow
	}
	return price > ctx.Fib.SwingHigh
}

func trailAdvance(ctx *Context, cfg Config, isLong bool, atr float64) (float64, bool) {
	if cfg.TrailATRMultiplier <= 0 {
		return 0, false
	}
	if isLong {
		stop := ctx.PeakFavorable - cfg.TrailATRMultiplier*atr
		return stop, true
	}
	stop := ctx.PeakFavorable + cfg.TrailATRMultiplier*atr
	return stop, true
}

// ShouldRefresh reports whether the frozen context should be recomputed
// this bar, per the configured SwingUpdatePolicy.
func ShouldRefresh(ctx *Context, cfg Config, currentATR float64) bool {
	switch cfg.Policy {
	case Fixed:
		return false
	case Dynamic:
		return true
	case Hybrid:
		delta := currentATR - ctx.LastATRAtRefresh
		if delta < 0 {
			delta = -delta
		}
		return delta >= cfg.HybridATRDeltaTrigger
	default:
		return false
	}
}

// Refresh rewrites the frozen context with a freshly resolved Fibonacci
// context, so subsequent bars target fresh levels.
func Refresh(ctx *Context, f fib.Context, currentATR float64) {
	ctx.Fib = f
	ctx.PartialsTaken = map[Reason]bool{}
	ctx.LastATRAtRefresh = currentATR
}
