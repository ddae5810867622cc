package spacedrep

import (
	"fmt"
	"math"

	"golang.org/x/mod/semver"
)

// SupportedMajor is the parameter-table major version this engine implements.
const SupportedMajor = "v6"

// WeightCount is the number of weights in a v6 parameter table.
const WeightCount = 21

// Weights are the trained constants of the memory model. The comment on each
// field gives its index in the conventional 21-element weight vector.
type Weights struct {
	InitialStabilityAgain float64 `json:"initial_stability_again"` // w0
	InitialStabilityHard  float64 `json:"initial_stability_hard"`  // w1
	InitialStabilityGood  float64 `json:"initial_stability_good"`  // w2
	InitialStabilityEasy  float64 `json:"initial_stability_easy"`  // w3

	InitialDifficulty      float64 `json:"initial_difficulty"`       // w4
	InitialDifficultySlope float64 `json:"initial_difficulty_slope"` // w5
	DifficultyDelta        float64 `json:"difficulty_delta"`         // w6
	MeanReversion          float64 `json:"mean_reversion"`           // w7

	RecallGrowth         float64 `json:"recall_growth"`          // w8
	RecallStabilityDecay float64 `json:"recall_stability_decay"` // w9
	RecallRetrievability float64 `json:"recall_retrievability"`  // w10

	ForgetScale          float64 `json:"forget_scale"`          // w11
	ForgetDifficulty     float64 `json:"forget_difficulty"`     // w12
	ForgetStability      float64 `json:"forget_stability"`      // w13
	ForgetRetrievability float64 `json:"forget_retrievability"` // w14

	HardPenalty float64 `json:"hard_penalty"` // w15
	EasyBonus   float64 `json:"easy_bonus"`   // w16

	ShortTermRating    float64 `json:"short_term_rating"`    // w17
	ShortTermOffset    float64 `json:"short_term_offset"`    // w18
	ShortTermStability float64 `json:"short_term_stability"` // w19

	Decay float64 `json:"decay"` // w20
}

// Parameters is a versioned, immutable weight table.
type Parameters struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultParameters returns the published FSRS-6 default weights.
func DefaultParameters() Parameters {
	return Parameters{
		Version: "v6.0.0",
		Weights: WeightsFromVector([WeightCount]float64{
			0.212, 1.2931, 2.3065, 8.2956,
			6.4133, 0.8334, 3.0194, 0.001,
			1.8722, 0.1666, 0.796,
			1.4835, 0.0614, 0.2629, 1.6483,
			0.6014, 1.8729,
			0.5425, 0.0912, 0.0658,
			0.1542,
		}),
	}
}

var weightLowerBounds = [WeightCount]float64{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001,
	0.001, 0.001, 0.001, 0.0,
	0.0, 1.0,
	0.0, 0.0, 0.0,
	0.1,
}

var weightUpperBounds = [WeightCount]float64{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5,
	5.0, 0.25, 0.9, 4.0,
	1.0, 6.0,
	2.0, 2.0, 0.8,
	0.8,
}

// Vector returns the weights in conventional index order.
func (w Weights) Vector() [WeightCount]float64 {
	return [WeightCount]float64{
		w.InitialStabilityAgain, w.InitialStabilityHard, w.InitialStabilityGood, w.InitialStabilityEasy,
		w.InitialDifficulty, w.InitialDifficultySlope, w.DifficultyDelta, w.MeanReversion,
		w.RecallGrowth, w.RecallStabilityDecay, w.RecallRetrievability,
		w.ForgetScale, w.ForgetDifficulty, w.ForgetStability, w.ForgetRetrievability,
		w.HardPenalty, w.EasyBonus,
		w.ShortTermRating, w.ShortTermOffset, w.ShortTermStability,
		w.Decay,
	}
}

// WeightsFromVector builds named weights from a conventional weight vector.
func WeightsFromVector(v [WeightCount]float64) Weights {
	return Weights{
		InitialStabilityAgain:  v[0],
		InitialStabilityHard:   v[1],
		InitialStabilityGood:   v[2],
		InitialStabilityEasy:   v[3],
		InitialDifficulty:      v[4],
		InitialDifficultySlope: v[5],
		DifficultyDelta:        v[6],
		MeanReversion:          v[7],
		RecallGrowth:           v[8],
		RecallStabilityDecay:   v[9],
		RecallRetrievability:   v[10],
		ForgetScale:            v[11],
		ForgetDifficulty:       v[12],
		ForgetStability:        v[13],
		ForgetRetrievability:   v[14],
		HardPenalty:            v[15],
		EasyBonus:              v[16],
		ShortTermRating:        v[17],
		ShortTermOffset:        v[18],
		ShortTermStability:     v[19],
		Decay:                  v[20],
	}
}

// Validate checks the version and that every weight is inside its bounds.
func (p Parameters) Validate() error {
	if !semver.IsValid(p.Version) {
		return fmt.Errorf("%w: parameter version %q is not a semantic version", ErrConfig, p.Version)
	}
	if major := semver.Major(p.Version); major != SupportedMajor {
		return fmt.Errorf("%w: parameter version %s not supported (want %s.x.y)", ErrConfig, p.Version, SupportedMajor)
	}
	for i, v := range p.Weights.Vector() {
		if math.IsNaN(v) || v < weightLowerBounds[i] || v > weightUpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %v outside [%v, %v]",
				ErrConfig, i, v, weightLowerBounds[i], weightUpperBounds[i])
		}
	}
	return nil
}
