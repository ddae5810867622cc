package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/memora/internal/spacedrep"
)

var (
	// ErrNotFound is returned when an item does not exist.
	ErrNotFound = errors.New("store: item not found")

	// ErrConflict is returned when an item changed since it was read.
	ErrConflict = errors.New("store: item was modified concurrently")
)

// Item is a stored learning item: an opaque label plus its scheduling state.
// Version increases by one on every committed change.
type Item struct {
	ID        uuid.UUID
	Label     string
	State     spacedrep.MemoryState
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListOpts filters item listings.
type ListOpts struct {
	State     spacedrep.State // empty = any state
	DueBefore time.Time       // zero = no due filter; otherwise due <= DueBefore
	Limit     int             // max results (0 = unlimited)
}

// ItemRepo manages items and their review history.
type ItemRepo interface {
	// CreateItem stores a new item at version 1.
	CreateItem(ctx context.Context, label string, st spacedrep.MemoryState, now time.Time) (*Item, error)

	// GetItem returns the item or ErrNotFound.
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)

	// ListItems returns items ordered by due time.
	ListItems(ctx context.Context, opts ListOpts) ([]*Item, error)

	// DeleteItem removes the item and its review logs.
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// CommitReview stores the new state and appends the review log in one
	// transaction, provided the item is still at version expected.
	CommitReview(ctx context.Context, expected int, log spacedrep.ReviewLog) (*Item, error)

	// ReplaceState stores st without a review log, provided the item is
	// still at version expected.
	ReplaceState(ctx context.Context, expected int, st spacedrep.MemoryState, now time.Time) (*Item, error)

	// ReviewLogs returns the item's review logs, oldest first.
	ReviewLogs(ctx context.Context, id uuid.UUID) ([]spacedrep.ReviewLog, error)

	// AllReviewLogs returns the review logs of every item, oldest first.
	AllReviewLogs(ctx context.Context) ([]spacedrep.ReviewLog, error)

	// CountReviews returns the total number of stored reviews.
	CountReviews(ctx context.Context) (int, error)
}
