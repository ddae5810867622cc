package spacedrep

import (
	"fmt"
	"math"
)

// RetentionModel holds the pure memory-model functions for one weight table.
// decay and factor are derived once from the weights.
type RetentionModel struct {
	w      Weights
	decay  float64 // -w20
	factor float64 // 0.9^(1/decay) - 1, so that R(S, S) = 0.9
}

// NewRetentionModel precomputes the decay curve for w.
func NewRetentionModel(w Weights) RetentionModel {
	decay := -w.Decay
	return RetentionModel{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1/decay) - 1,
	}
}

// Retrievability returns the probability of recall after elapsedDays for an
// item with the given stability: R = (1 + factor*t/S)^decay.
func (m RetentionModel) Retrievability(elapsedDays, stability float64) (float64, error) {
	if math.IsNaN(elapsedDays) || elapsedDays < 0 {
		return 0, fmt.Errorf("%w: elapsed days %v", ErrInvalidState, elapsedDays)
	}
	if !(stability > 0) {
		return 0, fmt.Errorf("%w: stability %v", ErrInvalidState, stability)
	}
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay), nil
}

// IntervalDays inverts the decay curve: the number of days until
// retrievability drops to retention. The result is not rounded or bounded.
func (m RetentionModel) IntervalDays(stability, retention float64) float64 {
	return stability / m.factor * (math.Pow(retention, 1/m.decay) - 1)
}

// InitialStability is the stability assigned by the first review.
func (m RetentionModel) InitialStability(r Rating) float64 {
	switch r {
	case Again:
		return clampStability(m.w.InitialStabilityAgain)
	case Hard:
		return clampStability(m.w.InitialStabilityHard)
	case Good:
		return clampStability(m.w.InitialStabilityGood)
	default:
		return clampStability(m.w.InitialStabilityEasy)
	}
}

// InitialDifficulty is the difficulty assigned by the first review, clamped.
func (m RetentionModel) InitialDifficulty(r Rating) float64 {
	return clampDifficulty(m.rawInitialDifficulty(r))
}

// rawInitialDifficulty is D0(G) = w4 - e^(w5*(G-1)) + 1 without clamping.
func (m RetentionModel) rawInitialDifficulty(r Rating) float64 {
	return m.w.InitialDifficulty - math.Exp(m.w.InitialDifficultySlope*(r.grade()-1)) + 1
}

// NextStability returns the stability after a review of st with the given
// rating, given the retrievability at review time. Again uses the lapse
// (forget) formula, the other ratings use the recall formula.
func (m RetentionModel) NextStability(st MemoryState, rating Rating, retrievability float64) (float64, error) {
	if !rating.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if !(st.Stability > 0) {
		return 0, fmt.Errorf("%w: stability %v", ErrInvalidState, st.Stability)
	}
	if math.IsNaN(retrievability) || retrievability < 0 || retrievability > 1 {
		return 0, fmt.Errorf("%w: retrievability %v", ErrInvalidState, retrievability)
	}
	if rating == Again {
		return clampStability(m.forgetStability(st.Difficulty, st.Stability, retrievability)), nil
	}
	return clampStability(m.recallStability(st.Difficulty, st.Stability, retrievability, rating)), nil
}

// S' = S * (1 + e^w8 * (11-D) * S^-w9 * (e^((1-R)*w10) - 1) * hardPenalty * easyBonus)
func (m RetentionModel) recallStability(d, s, r float64, rating Rating) float64 {
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = m.w.HardPenalty
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = m.w.EasyBonus
	}
	return s * (1 + math.Exp(m.w.RecallGrowth)*
		(11-d)*
		math.Pow(s, -m.w.RecallStabilityDecay)*
		(math.Exp((1-r)*m.w.RecallRetrievability)-1)*
		hardPenalty*easyBonus)
}

// The post-lapse stability is the smaller of the long-term estimate and the
// short-term bound S / e^(w17*w18), so a lapse never raises stability.
func (m RetentionModel) forgetStability(d, s, r float64) float64 {
	long := m.w.ForgetScale *
		math.Pow(d, -m.w.ForgetDifficulty) *
		(math.Pow(s+1, m.w.ForgetStability) - 1) *
		math.Exp((1-r)*m.w.ForgetRetrievability)
	short := s / math.Exp(m.w.ShortTermRating*m.w.ShortTermOffset)
	return math.Min(long, short)
}

// ShortTermStability is used for reviews on the same day as the previous one.
// Good and Easy never decrease stability.
func (m RetentionModel) ShortTermStability(stability float64, rating Rating) float64 {
	inc := math.Exp(m.w.ShortTermRating*(rating.grade()-3+m.w.ShortTermOffset)) *
		math.Pow(stability, -m.w.ShortTermStability)
	if rating == Good || rating == Easy {
		inc = math.Max(inc, 1)
	}
	return clampStability(stability * inc)
}

// NextDifficulty moves difficulty by -w6*(G-3), damped linearly as it
// approaches 10, then reverts it toward D0(Easy) by w7. The result is clamped.
func (m RetentionModel) NextDifficulty(st MemoryState, rating Rating) (float64, error) {
	if !rating.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if math.IsNaN(st.Difficulty) {
		return 0, fmt.Errorf("%w: difficulty is NaN", ErrInvalidState)
	}
	delta := -m.w.DifficultyDelta * (rating.grade() - 3)
	damped := st.Difficulty + (10-st.Difficulty)*delta/9
	reverted := m.w.MeanReversion*m.rawInitialDifficulty(Easy) + (1-m.w.MeanReversion)*damped
	return clampDifficulty(reverted), nil
}
