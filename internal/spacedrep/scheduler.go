package spacedrep

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

// SeedFunc returns the fuzz seed for a review of itemID at reviewedAt.
type SeedFunc func(itemID uuid.UUID, reviewedAt time.Time) uint64

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithFuzzSeed replaces the default seed derivation (FuzzSeed). Tests use it
// to pin the jitter.
func WithFuzzSeed(fn SeedFunc) Option {
	return func(s *Scheduler) {
		s.seed = fn
	}
}

// Scheduler computes the next MemoryState for a review. It holds only
// immutable configuration and is safe for concurrent use.
type Scheduler struct {
	cfg    Config
	model  RetentionModel
	policy IntervalPolicy
	seed   SeedFunc
}

// NewScheduler validates cfg and builds a Scheduler from a private copy of it.
func NewScheduler(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := NewIntervalPolicy(cfg.MinInterval, cfg.MaxInterval)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:    cfg.clone(),
		model:  NewRetentionModel(cfg.Parameters.Weights),
		policy: policy,
		seed:   FuzzSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns a copy of the scheduler configuration.
func (s *Scheduler) Config() Config {
	return s.cfg.clone()
}

// Model returns the retention model built from the configured weights.
func (s *Scheduler) Model() RetentionModel {
	return s.model
}

// NewState returns the initial state of an item created at now. Stability and
// difficulty start at the model's values for a Good first review.
func (s *Scheduler) NewState(id uuid.UUID, now time.Time) MemoryState {
	return MemoryState{
		ItemID:     id,
		Due:        now,
		Stability:  s.model.InitialStability(Good),
		Difficulty: s.model.InitialDifficulty(Good),
		State:      StateNew,
	}
}

// Review applies rating to st at now and returns the new state together with
// the log of the review. st is not modified. On error both results are zero.
func (s *Scheduler) Review(st MemoryState, rating Rating, now time.Time) (MemoryState, ReviewLog, error) {
	if !rating.IsValid() {
		return MemoryState{}, ReviewLog{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if err := st.Validate(); err != nil {
		return MemoryState{}, ReviewLog{}, err
	}
	if st.LastReview != nil && now.Before(*st.LastReview) {
		return MemoryState{}, ReviewLog{}, fmt.Errorf("%w: review at %s precedes last review %s",
			ErrInvalidState, now.Format(time.RFC3339), st.LastReview.Format(time.RFC3339))
	}

	next, err := s.next(st, rating, now)
	if err != nil {
		return MemoryState{}, ReviewLog{}, err
	}
	log := ReviewLog{
		ItemID:      st.ItemID,
		Rating:      rating,
		StateBefore: st.clone(),
		StateAfter:  next.clone(),
		ReviewedAt:  now,
		ElapsedDays: next.ElapsedDays,
	}
	return next, log, nil
}

// PreviewAllOutcomes returns the state Review would produce for each rating.
func (s *Scheduler) PreviewAllOutcomes(st MemoryState, now time.Time) (map[Rating]MemoryState, error) {
	out := make(map[Rating]MemoryState, len(Ratings))
	for _, r := range Ratings {
		next, _, err := s.Review(st, r, now)
		if err != nil {
			return nil, err
		}
		out[r] = next
	}
	return out, nil
}

// Retrievability returns the modeled probability of recalling the item at
// now. Items that were never reviewed report 1.
func (s *Scheduler) Retrievability(st MemoryState, now time.Time) (float64, error) {
	if err := st.Validate(); err != nil {
		return 0, err
	}
	if st.LastReview == nil {
		return 1, nil
	}
	elapsed := now.Sub(*st.LastReview).Hours() / 24.0
	return s.model.Retrievability(elapsed, st.Stability)
}

// Reschedule replays logs in review-time order starting from initial. It is
// used to rebuild states after the parameter table changes.
func (s *Scheduler) Reschedule(initial MemoryState, logs []ReviewLog) (MemoryState, error) {
	ordered := slices.Clone(logs)
	slices.SortStableFunc(ordered, func(a, b ReviewLog) int {
		return a.ReviewedAt.Compare(b.ReviewedAt)
	})

	st := initial.clone()
	for _, l := range ordered {
		if l.ItemID != st.ItemID {
			return MemoryState{}, fmt.Errorf("%w: item %s, log for %s", ErrItemMismatch, st.ItemID, l.ItemID)
		}
		next, _, err := s.Review(st, l.Rating, l.ReviewedAt)
		if err != nil {
			return MemoryState{}, fmt.Errorf("replay review at %s: %w", l.ReviewedAt.Format(time.RFC3339), err)
		}
		st = next
	}
	return st, nil
}

func (s *Scheduler) next(st MemoryState, rating Rating, now time.Time) (MemoryState, error) {
	out := st.clone()

	elapsed := 0
	if st.LastReview != nil {
		elapsed = daysBetween(*st.LastReview, now)
	}

	if err := s.updateMemory(&out, st, rating, elapsed); err != nil {
		return MemoryState{}, err
	}

	to, err := s.transition(st.State, rating, out.Stability)
	if err != nil {
		return MemoryState{}, err
	}
	days := s.interval(st, to, rating, out.Stability, now)

	reviewedAt := now
	out.State = to
	out.ElapsedDays = elapsed
	out.ScheduledDays = days
	out.Reps = st.Reps + 1
	if rating == Again && (st.State == StateReview || st.State == StateRelearning) {
		out.Lapses = st.Lapses + 1
	}
	out.LastReview = &reviewedAt
	out.Due = now.Add(time.Duration(days) * 24 * time.Hour)

	if err := out.Validate(); err != nil {
		return MemoryState{}, fmt.Errorf("computed state: %w", err)
	}
	return out, nil
}

// updateMemory sets the stability and difficulty of out.
func (s *Scheduler) updateMemory(out *MemoryState, st MemoryState, rating Rating, elapsed int) error {
	if st.State == StateNew {
		out.Stability = s.model.InitialStability(rating)
		out.Difficulty = s.model.InitialDifficulty(rating)
		return nil
	}

	if elapsed == 0 {
		out.Stability = s.model.ShortTermStability(st.Stability, rating)
	} else {
		r, err := s.model.Retrievability(float64(elapsed), st.Stability)
		if err != nil {
			return err
		}
		if out.Stability, err = s.model.NextStability(st, rating, r); err != nil {
			return err
		}
	}

	d, err := s.model.NextDifficulty(st, rating)
	if err != nil {
		return err
	}
	out.Difficulty = d
	if math.IsNaN(out.Stability) {
		return fmt.Errorf("%w: stability update produced NaN", ErrInvalidState)
	}
	return nil
}

// transition is the lifecycle table. Every (state, rating) pair is listed;
// anything else is rejected.
func (s *Scheduler) transition(from State, rating Rating, stability float64) (State, error) {
	graduates := s.cfg.ShortTermDisabled || stability >= s.cfg.GraduationStability

	switch from {
	case StateNew:
		switch rating {
		case Again:
			return StateLearning, nil
		case Hard, Good, Easy:
			if s.cfg.ShortTermDisabled {
				return StateReview, nil
			}
			return StateLearning, nil
		}
	case StateLearning:
		switch rating {
		case Again:
			return StateLearning, nil
		case Hard, Good, Easy:
			if graduates {
				return StateReview, nil
			}
			return StateLearning, nil
		}
	case StateReview:
		switch rating {
		case Again:
			return StateRelearning, nil
		case Hard, Good, Easy:
			return StateReview, nil
		}
	case StateRelearning:
		switch rating {
		case Again:
			return StateRelearning, nil
		case Hard, Good, Easy:
			if graduates {
				return StateReview, nil
			}
			return StateRelearning, nil
		}
	}
	return "", fmt.Errorf("%w: no transition from %q on %s", ErrInvalidState, from, rating)
}

// interval returns the number of days until the next review after moving
// from prev.State to to.
func (s *Scheduler) interval(prev MemoryState, to State, rating Rating, stability float64, now time.Time) int {
	var steps []int
	switch to {
	case StateLearning:
		steps = s.cfg.LearningSteps
	case StateRelearning:
		steps = s.cfg.RelearningSteps
	default:
		days := s.policy.Bounded(s.model.IntervalDays(stability, s.cfg.TargetRetention))
		if !s.cfg.DisableFuzz {
			days = s.policy.Fuzzed(days, s.seed(prev.ItemID, now))
		}
		return days
	}

	// Entering a phase starts from its first step.
	prevDays := prev.ScheduledDays
	if prev.State != to {
		prevDays = 0
	}
	switch rating {
	case Again:
		return steps[0]
	case Hard:
		return currentStep(steps, prevDays)
	default:
		return nextStep(steps, prevDays)
	}
}
