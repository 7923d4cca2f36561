// Package decision implements the 12-gate sequential decision engine:
// a deterministic pipeline of gates in which the first blocking gate
// fixes the result and records a closed reason code.
package decision

import (
	"math"

	"github.com/genesis-core/genesis-core/internal/confidence"
	"github.com/genesis-core/genesis-core/internal/model"
)

// Action is the closed set of decisions the engine may output.
type Action int

const (
	None Action = iota
	Long
	Short
)

func (a Action) String() string {
	switch a {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NONE"
	}
}

// Reason is the closed enum of gate-block reason codes. Gate blocks are
// never errors; they are a Reason value on an otherwise-successful call.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFailSafeNull
	ReasonEVNeg
	ReasonEventBlock
	ReasonRiskCap
	ReasonRegimeDirBlock
	ReasonProbaThreshold
	ReasonHTFFibLongBlock
	ReasonHTFFibShortBlock
	ReasonLTFFibBlock
	ReasonConfTooLow
	ReasonEdgeTooSmall
	ReasonHystWait
	ReasonCooldownActive
)

func (r Reason) String() string {
	switch r {
	case ReasonFailSafeNull:
		return "FAIL_SAFE_NULL"
	case ReasonEVNeg:
		return "EV_NEG"
	case ReasonEventBlock:
		return "R_EVENT_BLOCK"
	case ReasonRiskCap:
		return "RISK_CAP"
	case ReasonRegimeDirBlock:
		return "REGIME_DIR_BLOCK"
	case ReasonProbaThreshold:
		return "PROBA_THRESHOLD"
	case ReasonHTFFibLongBlock:
		return "HTF_FIB_LONG_BLOCK"
	case ReasonHTFFibShortBlock:
		return "HTF_FIB_SHORT_BLOCK"
	case ReasonLTFFibBlock:
		return "LTF_FIB_BLOCK"
	case ReasonConfTooLow:
		return "CONF_TOO_LOW"
	case ReasonEdgeTooSmall:
		return "EDGE_TOO_SMALL"
	case ReasonHystWait:
		return "HYST_WAIT"
	case ReasonCooldownActive:
		return "COOLDOWN_ACTIVE"
	default:
		return "NONE"
	}
}

// RiskMapEntry is one piecewise (confidence threshold, size fraction) pair.
type RiskMapEntry struct {
	ConfThreshold float64
	SizePct       float64
}

// Config bundles the gate thresholds. Numeric fields are plain values;
// a JSON null or absent config entry is mapped to its default by the
// caller (config.SafeFloat / config.SafeInt) before Config is built.
type Config struct {
	RDefault              float64
	MinEdge               float64
	ZoneThreshold         func(regime confidence.Regime, zone confidence.VolatilityZone) float64
	ConfThreshold         func(regime confidence.Regime) float64
	RegimeAllowsDirection func(regime confidence.Regime, action Action) bool
	HTFGateEnabled        bool
	LTFGateEnabled        bool
	HTFWithinTolerance    func(action Action) bool
	LTFWithinTolerance    func(action Action) bool
	AllowLTFOverride      bool
	LTFOverrideThreshold  float64
	LTFConfidence         float64
	HysteresisSteps       int
	RiskMap               []RiskMapEntry
	MaxPositionSize       float64
	EventBlock            bool
	RiskCapExceeded       bool
}

// SafeFloat maps a nil pointer (JSON null) to def; never raises.
func SafeFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// State is the mutable hysteresis/cooldown state threaded bar-to-bar.
// It is owned exclusively by the caller of Evaluate between calls.
type State struct {
	LastAction      Action
	PendingAction   Action
	ConfirmCount    int
	CooldownBars    int
	CooldownLeft    int
}

// Input bundles per-bar decision inputs.
type Input struct {
	Probas     model.Probas
	Confidence confidence.Confidence
	Regime     confidence.Regime
	Zone       confidence.VolatilityZone
}

// Meta carries the outcome of one Evaluate call.
type Meta struct {
	Reason Reason
	// Size is a fraction of equity (e.g. 0.02 == 2% of current equity),
	// not a unit quantity. Callers must multiply by equity and divide by
	// entry price to get a position size.
	Size float64
}

// Evaluate runs the 12 gates in order; the first gate to block fixes
// the action at None and records its reason. State is mutated in place
// for hysteresis/cooldown bookkeeping.
func Evaluate(in Input, state *State, cfg Config) (Action, Meta) {
	// Cooldown decrements once per bar regardless of outcome; it is
	// applied on exit so gate 12 observes this bar's remaining count
	// before it ticks down. A bar that freshly opens a trade (and so
	// (re)seeds the counter) is exempt from its own decrement.
	justOpened := false
	defer func() {
		if !justOpened && state.CooldownLeft > 0 {
			state.CooldownLeft--
		}
	}()

	// Gate 1: fail-safe
	if invalidProbas(in.Probas) {
		return None, Meta{Reason: ReasonFailSafeNull}
	}

	evLong := in.Probas.Buy*cfg.RDefault - in.Probas.Sell
	evShort := in.Probas.Sell*cfg.RDefault - in.Probas.Buy

	// Gate 2: EV
	if math.Max(evLong, evShort) <= 0 {
		return None, Meta{Reason: ReasonEVNeg}
	}
	candidate := Long
	if evShort > evLong {
		candidate = Short
	}

	// Gate 3: event block
	if cfg.EventBlock {
		return None, Meta{Reason: ReasonEventBlock}
	}

	// Gate 4: risk cap
	if cfg.RiskCapExceeded {
		return None, Meta{Reason: ReasonRiskCap}
	}

	// Gate 5: regime direction
	if cfg.RegimeAllowsDirection != nil && !cfg.RegimeAllowsDirection(in.Regime, candidate) {
		return None, Meta{Reason: ReasonRegimeDirBlock}
	}

	// Gate 6: proba threshold
	maxProba := math.Max(in.Probas.Buy, in.Probas.Sell)
	threshold := 0.5
	if cfg.ZoneThreshold != nil {
		threshold = cfg.ZoneThreshold(in.Regime, in.Zone)
	}
	if maxProba < threshold {
		return None, Meta{Reason: ReasonProbaThreshold}
	}

	// Gate 7: HTF fib
	if cfg.HTFGateEnabled && cfg.HTFWithinTolerance != nil && !cfg.HTFWithinTolerance(candidate) {
		ltfOverride := cfg.AllowLTFOverride && cfg.LTFConfidence > cfg.LTFOverrideThreshold
		if !ltfOverride {
			if candidate == Long {
				return None, Meta{Reason: ReasonHTFFibLongBlock}
			}
			return None, Meta{Reason: ReasonHTFFibShortBlock}
		}
	}

	// Gate 8: LTF fib
	if cfg.LTFGateEnabled && cfg.LTFWithinTolerance != nil && !cfg.LTFWithinTolerance(candidate) {
		return None, Meta{Reason: ReasonLTFFibBlock}
	}

	// Gate 9: confidence
	confThreshold := 0.5
	if cfg.ConfThreshold != nil {
		confThreshold = cfg.ConfThreshold(in.Regime)
	}
	if in.Confidence.Overall < confThreshold {
		return None, Meta{Reason: ReasonConfTooLow}
	}

	// Gate 10: edge
	minEdge := cfg.MinEdge
	if math.Abs(in.Probas.Buy-in.Probas.Sell) < minEdge {
		return None, Meta{Reason: ReasonEdgeTooSmall}
	}

	// Gate 11: hysteresis
	if candidate != state.LastAction {
		if candidate == state.PendingAction {
			state.ConfirmCount++
		} else {
			state.PendingAction = candidate
			state.ConfirmCount = 1
		}
		if state.ConfirmCount < cfg.HysteresisSteps {
			return None, Meta{Reason: ReasonHystWait}
		}
	}

	// Gate 12: cooldown
	if state.CooldownLeft > 0 {
		return None, Meta{Reason: ReasonCooldownActive}
	}

	// Pass: commit hysteresis state, select size.
	state.LastAction = candidate
	state.ConfirmCount = 0
	state.CooldownLeft = state.CooldownBars
	justOpened = true

	size := sizeFromRiskMap(cfg.RiskMap, in.Confidence.Overall, cfg.MaxPositionSize)
	return candidate, Meta{Reason: ReasonNone, Size: size}
}

func invalidProbas(p model.Probas) bool {
	if p.Buy != p.Buy || p.Sell != p.Sell {
		return true
	}
	if p.Buy < 0 || p.Sell < 0 || p.Buy+p.Sell > 1.0000001 {
		return true
	}
	return false
}

// sizeFromRiskMap selects the largest threshold <= confidence, yielding
// its size fraction capped by maxPositionSize.
func sizeFromRiskMap(riskMap []RiskMapEntry, conf float64, maxPositionSize float64) float64 {
	best := 0.0
	bestThreshold := -1.0
	for _, e := range riskMap {
		if e.ConfThreshold <= conf && e.ConfThreshold > bestThreshold {
			bestThreshold = e.ConfThreshold
			best = e.SizePct
		}
	}
	if maxPositionSize > 0 && best > maxPositionSize {
		best = maxPositionSize
	}
	return best
}
