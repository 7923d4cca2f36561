package optimizer

import "testing"

func sampleSpace() ParamSpace {
	return ParamSpace{
		"decision.min_edge": Leaf{Kind: FloatRange, Min: 0, Max: 1},
		"decision.cooldown_bars": Leaf{Kind: IntRange, Min: 0, Max: 10},
		"decision.r_default": Leaf{Kind: Fixed, Value: 1.8},
	}
}

func TestInitialGuessCoversEveryLeafKind(t *testing.T) {
	cd := NewCoordinateDescent(CDConfig{Seed: 42}, sampleSpace())
	guess := cd.InitialGuess()
	if guess["decision.r_default"] != 1.8 {
		t.Fatalf("expected fixed leaf to hold its declared value, got %v", guess["decision.r_default"])
	}
	if guess["decision.min_edge"] != 0.5 {
		t.Fatalf("expected float leaf midpoint 0.5, got %v", guess["decision.min_edge"])
	}
}

func TestSuggestStaysWithinBounds(t *testing.T) {
	cd := NewCoordinateDescent(CDConfig{Seed: 7, InitialStepSize: 0.5}, sampleSpace())
	current := cd.InitialGuess()
	for i := 0; i < 20; i++ {
		current = cd.Suggest(current, i)
		v, ok := current["decision.min_edge"].(float64)
		if ok && (v < 0 || v > 1) {
			t.Fatalf("suggested value %v out of bounds [0,1]", v)
		}
	}
}

func TestSuggestIsDeterministicForFixedSeed(t *testing.T) {
	cd1 := NewCoordinateDescent(CDConfig{Seed: 99}, sampleSpace())
	cd2 := NewCoordinateDescent(CDConfig{Seed: 99}, sampleSpace())
	base := cd1.InitialGuess()
	next1 := cd1.Suggest(base, 0)
	next2 := cd2.Suggest(base, 0)
	if next1["decision.min_edge"] != next2["decision.min_edge"] {
		t.Fatalf("expected identical seeds to suggest identical values, got %v vs %v", next1["decision.min_edge"], next2["decision.min_edge"])
	}
}

func TestBacktrackShrinksStepSizeToFloor(t *testing.T) {
	cd := NewCoordinateDescent(CDConfig{Seed: 1, InitialStepSize: 0.5, BacktrackingRatio: 0.5, MinStepSize: 0.05}, sampleSpace())
	for i := 0; i < 10; i++ {
		cd.Backtrack("decision.min_edge")
	}
	if cd.stepSizes["decision.min_edge"] != 0.05 {
		t.Fatalf("expected step size floored at 0.05, got %v", cd.stepSizes["decision.min_edge"])
	}
}
