package optimizer

import (
	"math"
	"math/rand"
	"sort"
)

// CDConfig configures the coordinate-descent suggester, grounded on the
// teacher's tune/opt/cd.go OptimizerConfig: a fixed step size that
// backtracks on repeated non-improvement, a deterministic seeded RNG
// for direction choice, and a floor below which a coordinate is
// considered converged.
type CDConfig struct {
	InitialStepSize   float64
	BacktrackingRatio float64
	MinStepSize       float64
	Seed              int64
}

// CoordinateDescent suggests one parameter at a time, nudging it by a
// step proportional to its declared range and backtracking the step
// size whenever a trial fails to improve on the running best.
type CoordinateDescent struct {
	cfg        CDConfig
	rng        *rand.Rand
	space      ParamSpace
	paramNames []string
	stepSizes  map[string]float64
}

// NewCoordinateDescent builds a suggester over the float/int coordinates
// of space. Fixed and grid leaves are held at their declared value and
// never perturbed by coordinate descent.
func NewCoordinateDescent(cfg CDConfig, space ParamSpace) *CoordinateDescent {
	if cfg.InitialStepSize == 0 {
		cfg.InitialStepSize = 0.1
	}
	if cfg.BacktrackingRatio == 0 {
		cfg.BacktrackingRatio = 0.5
	}
	if cfg.MinStepSize == 0 {
		cfg.MinStepSize = 0.01
	}
	var names []string
	for k, leaf := range space {
		if leaf.Kind == FloatRange || leaf.Kind == IntRange {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	stepSizes := make(map[string]float64, len(names))
	for _, n := range names {
		stepSizes[n] = cfg.InitialStepSize
	}
	return &CoordinateDescent{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		space:      space,
		paramNames: names,
		stepSizes:  stepSizes,
	}
}

// InitialGuess returns the search space's midpoint/first-grid-value
// starting parameters for the first trial.
func (cd *CoordinateDescent) InitialGuess() map[string]interface{} {
	params := map[string]interface{}{}
	for k, leaf := range cd.space {
		switch leaf.Kind {
		case Fixed:
			params[k] = leaf.Value
		case Grid:
			if len(leaf.Values) > 0 {
				params[k] = leaf.Values[0]
			}
		case FloatRange:
			params[k] = (leaf.Min + leaf.Max) / 2
		case IntRange:
			params[k] = math.Round((leaf.Min + leaf.Max) / 2)
		case LogUniform:
			if leaf.Min > 0 && leaf.Max > 0 {
				params[k] = math.Sqrt(leaf.Min * leaf.Max)
			}
		}
	}
	return params
}

// Suggest proposes the next trial's parameters by nudging a single
// coordinate, cycling deterministically through paramNames by trial
// index so every coordinate is visited at a known cadence.
func (cd *CoordinateDescent) Suggest(current map[string]interface{}, trialIdx int) map[string]interface{} {
	next := cloneParams(current)
	if len(cd.paramNames) == 0 {
		return next
	}
	coord := cd.paramNames[trialIdx%len(cd.paramNames)]
	leaf := cd.space[coord]
	step := cd.stepSizes[coord] * (leaf.Max - leaf.Min)

	direction := 1.0
	if cd.rng.Float64() < 0.5 {
		direction = -1.0
	}

	v, _ := next[coord].(float64)
	v += direction * step
	if v < leaf.Min {
		v = leaf.Min
	}
	if v > leaf.Max {
		v = leaf.Max
	}
	if leaf.Kind == IntRange {
		v = math.Round(v)
	}
	next[coord] = v
	return next
}

// CoordAt returns the coordinate that Suggest would perturb for the
// given trial index, so callers can report it back to Backtrack after
// judging whether that trial improved on the running best.
func (cd *CoordinateDescent) CoordAt(trialIdx int) string {
	if len(cd.paramNames) == 0 {
		return ""
	}
	return cd.paramNames[trialIdx%len(cd.paramNames)]
}

// Backtrack shrinks the step size for coord after a non-improving
// trial, down to MinStepSize.
func (cd *CoordinateDescent) Backtrack(coord string) {
	s := cd.stepSizes[coord] * cd.cfg.BacktrackingRatio
	if s < cd.cfg.MinStepSize {
		s = cd.cfg.MinStepSize
	}
	cd.stepSizes[coord] = s
}
