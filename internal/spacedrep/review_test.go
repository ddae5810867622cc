package spacedrep

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func reviewedState(state State, stability, difficulty float64, last time.Time, scheduled int) MemoryState {
	lr := last
	return MemoryState{
		ItemID:        uuid.New(),
		Due:           last.Add(time.Duration(scheduled) * 24 * time.Hour),
		Stability:     stability,
		Difficulty:    difficulty,
		ScheduledDays: scheduled,
		Reps:          3,
		State:         state,
		LastReview:    &lr,
	}
}

func TestIsDue_BeforeDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := MemoryState{Due: now.Add(24 * time.Hour)}
	if st.IsDue(now) {
		t.Error("expected not due before due date")
	}
}

func TestIsDue_OnDate(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := MemoryState{Due: now}
	if !st.IsDue(now) {
		t.Error("expected due on due date")
	}
}

func TestOverdueDays(t *testing.T) {
	due := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	st := MemoryState{Due: due}

	if got := st.OverdueDays(due.Add(-time.Hour)); got != 0 {
		t.Errorf("OverdueDays() before due = %f, want 0", got)
	}
	got := st.OverdueDays(due.Add(3 * 24 * time.Hour))
	if got < 2.99 || got > 3.01 {
		t.Errorf("OverdueDays() = %f, want ~3.0", got)
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	valid := reviewedState(StateReview, 10, 5, now, 10)

	tests := []struct {
		name   string
		mutate func(*MemoryState)
		ok     bool
	}{
		{"valid review", func(*MemoryState) {}, true},
		{"zero stability", func(m *MemoryState) { m.Stability = 0 }, false},
		{"negative stability", func(m *MemoryState) { m.Stability = -1 }, false},
		{"NaN stability", func(m *MemoryState) { m.Stability = math.NaN() }, false},
		{"infinite stability", func(m *MemoryState) { m.Stability = math.Inf(1) }, false},
		{"difficulty too high", func(m *MemoryState) { m.Difficulty = 10.5 }, false},
		{"difficulty too low", func(m *MemoryState) { m.Difficulty = 0.5 }, false},
		{"negative lapses", func(m *MemoryState) { m.Lapses = -1 }, false},
		{"unknown state", func(m *MemoryState) { m.State = "archived" }, false},
		{"review without last review", func(m *MemoryState) { m.LastReview = nil }, false},
		{"due before last review", func(m *MemoryState) { m.Due = now.Add(-time.Hour) }, false},
		{"new with reps", func(m *MemoryState) { m.State = StateNew; m.LastReview = nil }, false},
		{"new with last review", func(m *MemoryState) { m.State = StateNew; m.Reps = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := valid.clone()
			tt.mutate(&st)
			err := st.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidState) {
				t.Fatalf("Validate() = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestReviewLog_IsLapse(t *testing.T) {
	tests := []struct {
		from   State
		rating Rating
		want   bool
	}{
		{StateReview, Again, true},
		{StateRelearning, Again, true},
		{StateLearning, Again, false},
		{StateNew, Again, false},
		{StateReview, Hard, false},
	}
	for _, tt := range tests {
		l := ReviewLog{Rating: tt.rating, StateBefore: MemoryState{State: tt.from}}
		if got := l.IsLapse(); got != tt.want {
			t.Errorf("IsLapse(%s, %s) = %v, want %v", tt.from, tt.rating, got, tt.want)
		}
	}
}

func TestClone_DoesNotShareLastReview(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	st := reviewedState(StateReview, 10, 5, now, 10)
	c := st.clone()
	*c.LastReview = now.Add(time.Hour)
	if !st.LastReview.Equal(now) {
		t.Error("clone shares LastReview with the original")
	}
}
