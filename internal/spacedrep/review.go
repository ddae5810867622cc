package spacedrep

import (
	"time"

	"github.com/google/uuid"
)

// ReviewLog records one review. It is produced exactly once per successful
// Scheduler.Review call and is never modified afterwards.
type ReviewLog struct {
	ItemID      uuid.UUID   `json:"item_id"`
	Rating      Rating      `json:"rating"`
	StateBefore MemoryState `json:"state_before"`
	StateAfter  MemoryState `json:"state_after"`
	ReviewedAt  time.Time   `json:"reviewed_at"`
	ElapsedDays int         `json:"elapsed_days"`
}

// IsLapse reports whether the review forgot a graduated item.
func (l ReviewLog) IsLapse() bool {
	return l.Rating == Again &&
		(l.StateBefore.State == StateReview || l.StateBefore.State == StateRelearning)
}
