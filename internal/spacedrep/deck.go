package spacedrep

import (
	"slices"
	"time"
)

// DueItems returns the items with Due <= now, oldest due first. Items that
// share a due time keep their input order. A positive limit truncates the
// result. items is not modified.
func DueItems(items []MemoryState, now time.Time, limit int) []MemoryState {
	due := make([]MemoryState, 0, len(items))
	for _, it := range items {
		if it.IsDue(now) {
			due = append(due, it.clone())
		}
	}

	slices.SortStableFunc(due, func(a, b MemoryState) int {
		return a.Due.Compare(b.Due)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// DeckStats aggregates a collection of items at one instant.
type DeckStats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Learning   int `json:"learning"`
	Review     int `json:"review"`
	Relearning int `json:"relearning"`
	Due        int `json:"due"`

	// Overdue counts Review items strictly past due. Late New, Learning and
	// Relearning items count as due but never as overdue.
	Overdue int `json:"overdue"`
}

// Stats counts items by lifecycle state and due status.
func Stats(items []MemoryState, now time.Time) DeckStats {
	var st DeckStats
	for _, it := range items {
		st.Total++
		switch it.State {
		case StateNew:
			st.New++
		case StateLearning:
			st.Learning++
		case StateReview:
			st.Review++
		case StateRelearning:
			st.Relearning++
		}
		if it.IsDue(now) {
			st.Due++
		}
		if it.State == StateReview && it.Due.Before(now) {
			st.Overdue++
		}
	}
	return st
}
