package spacedrep

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Difficulty range of the memory model.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// minStability is the floor applied to every stability the model produces.
const minStability = 0.001

// MemoryState is the scheduling state of one learning item for one learner.
// Values are never modified in place: the Scheduler returns a fresh value for
// every review.
type MemoryState struct {
	ItemID        uuid.UUID  `json:"item_id"`
	Due           time.Time  `json:"due"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	ElapsedDays   int        `json:"elapsed_days"`
	ScheduledDays int        `json:"scheduled_days"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	State         State      `json:"state"`
	LastReview    *time.Time `json:"last_review,omitempty"` // nil only while State is New.
}

// Validate checks the structural invariants of the state.
func (m MemoryState) Validate() error {
	if !m.State.IsValid() {
		return fmt.Errorf("%w: unknown lifecycle state %q", ErrInvalidState, m.State)
	}
	if !(m.Stability > 0) || math.IsInf(m.Stability, 0) {
		return fmt.Errorf("%w: stability %v must be positive and finite", ErrInvalidState, m.Stability)
	}
	if math.IsNaN(m.Difficulty) || m.Difficulty < MinDifficulty || m.Difficulty > MaxDifficulty {
		return fmt.Errorf("%w: difficulty %v outside [%v, %v]", ErrInvalidState, m.Difficulty, MinDifficulty, MaxDifficulty)
	}
	if m.ElapsedDays < 0 || m.ScheduledDays < 0 || m.Reps < 0 || m.Lapses < 0 {
		return fmt.Errorf("%w: negative counter", ErrInvalidState)
	}
	if m.State == StateNew {
		if m.Reps != 0 || m.LastReview != nil {
			return fmt.Errorf("%w: new item with reps=%d or a last review", ErrInvalidState, m.Reps)
		}
		return nil
	}
	if m.LastReview == nil {
		return fmt.Errorf("%w: %s item without a last review", ErrInvalidState, m.State)
	}
	if m.Due.Before(*m.LastReview) {
		return fmt.Errorf("%w: due %s before last review %s", ErrInvalidState,
			m.Due.Format(time.RFC3339), m.LastReview.Format(time.RFC3339))
	}
	return nil
}

// IsDue reports whether the item should be surfaced at now.
func (m MemoryState) IsDue(now time.Time) bool {
	return !m.Due.After(now)
}

// OverdueDays returns how many days past due the item is, or 0 if not yet due.
func (m MemoryState) OverdueDays(now time.Time) float64 {
	if now.Before(m.Due) {
		return 0
	}
	return now.Sub(m.Due).Hours() / 24.0
}

// clone returns a copy that shares no pointers with m.
func (m MemoryState) clone() MemoryState {
	out := m
	if m.LastReview != nil {
		t := *m.LastReview
		out.LastReview = &t
	}
	return out
}

// daysBetween returns the number of whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}

func clampStability(s float64) float64 {
	return math.Max(s, minStability)
}
