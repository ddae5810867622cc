// Package review ties the scheduling engine to the item store. It is the only
// writer of item state: every change goes through an optimistic version check
// and is retried when another writer got there first.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/memora/internal/metrics"
	"github.com/abhisek/memora/internal/spacedrep"
	"github.com/abhisek/memora/internal/store"
)

// MaxAttempts bounds how often a review is recomputed after a version conflict.
const MaxAttempts = 3

// DefaultConcurrency is the number of items RescheduleAll processes at once.
const DefaultConcurrency = 4

var (
	// ErrEmptyLabel is returned when adding an item without a label.
	ErrEmptyLabel = errors.New("review: item label is empty")

	// ErrAmbiguousID is returned when an id prefix matches several items.
	ErrAmbiguousID = errors.New("review: id prefix matches several items")
)

// Outcome is the result of one committed review.
type Outcome struct {
	Item *store.Item
	Log  spacedrep.ReviewLog
}

// Service manages items and their reviews.
type Service struct {
	repo    store.ItemRepo
	sched   *spacedrep.Scheduler
	clock   spacedrep.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the system clock.
func WithClock(c spacedrep.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records committed reviews and conflicts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service over repo using sched for every review.
func NewService(repo store.ItemRepo, sched *spacedrep.Scheduler, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		sched:  sched,
		clock:  spacedrep.SystemClock{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time at the precision the store
// keeps.
func (s *Service) Now() time.Time {
	return storedTime(s.clock.Now())
}

// storedTime drops what the database cannot keep (postgres stores
// microseconds), so that replaying the stored review log sees the same
// instants, and the same fuzz seeds, as the original reviews.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Add creates a new item due immediately.
func (s *Service) Add(ctx context.Context, label string) (*store.Item, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	now := s.Now()
	st := s.sched.NewState(uuid.New(), now)
	it, err := s.repo.CreateItem(ctx, label, st, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item added", "item", it.ID, "label", it.Label)
	return it, nil
}

// Get returns the item with the given id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.Item, error) {
	return s.repo.GetItem(ctx, id)
}

// Find resolves ref, a full item id or a unique prefix of one.
func (s *Service) Find(ctx context.Context, ref string) (*store.Item, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if id, err := uuid.Parse(ref); err == nil {
		return s.repo.GetItem(ctx, id)
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty id", store.ErrNotFound)
	}

	items, err := s.repo.ListItems(ctx, store.ListOpts{})
	if err != nil {
		return nil, err
	}
	var match *store.Item
	for _, it := range items {
		if !strings.HasPrefix(it.ID.String(), ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, ref)
		}
		match = it
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, ref)
	}
	return match, nil
}

// List returns all items ordered by due time.
func (s *Service) List(ctx context.Context, opts store.ListOpts) ([]*store.Item, error) {
	return s.repo.ListItems(ctx, opts)
}

// Delete removes an item and its history.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logger.Info("item deleted", "item", id)
	return nil
}

// Review grades the item now and commits the new state together with the
// review log. When another writer commits first, the review is recomputed from
// the fresh state, up to MaxAttempts times.
func (s *Service) Review(ctx context.Context, id uuid.UUID, rating spacedrep.Rating) (*Outcome, error) {
	return s.ReviewAt(ctx, id, rating, s.clock.Now())
}

// ReviewAt is Review at the instant at. Committing at the instant a preview
// was computed yields exactly the previewed state. If the item was reviewed
// after at in the meantime, the review is stale and fails with
// store.ErrConflict.
func (s *Service) ReviewAt(ctx context.Context, id uuid.UUID, rating spacedrep.Rating, at time.Time) (*Outcome, error) {
	at = storedTime(at)
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		it, err := s.repo.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if last := it.State.LastReview; last != nil && at.Before(*last) {
			return nil, fmt.Errorf("review %s: %w: reviewed again at %s", id, store.ErrConflict, last.Format(time.RFC3339))
		}

		_, log, err := s.sched.Review(it.State, rating, at)
		if err != nil {
			return nil, fmt.Errorf("review %s: %w", id, err)
		}

		updated, err := s.repo.CommitReview(ctx, it.Version, log)
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("review conflict, retrying", "item", id, "attempt", attempt, "version", it.Version)
			if s.metrics != nil {
				s.metrics.RecordConflict()
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.RecordReview(log)
		}
		s.logger.Debug("review committed",
			"item", id,
			"rating", rating,
			"from", log.StateBefore.State,
			"to", log.StateAfter.State,
			"interval_days", log.StateAfter.ScheduledDays,
		)
		return &Outcome{Item: updated, Log: log}, nil
	}
	return nil, fmt.Errorf("review %s: %w after %d attempts", id, store.ErrConflict, MaxAttempts)
}

// Preview returns the state each rating would produce now, without
// committing anything.
func (s *Service) Preview(ctx context.Context, id uuid.UUID) (map[spacedrep.Rating]spacedrep.MemoryState, error) {
	return s.PreviewAt(ctx, id, s.clock.Now())
}

// PreviewAt is Preview at the instant at. ReviewAt with the same instant
// commits the previewed state.
func (s *Service) PreviewAt(ctx context.Context, id uuid.UUID, at time.Time) (map[spacedrep.Rating]spacedrep.MemoryState, error) {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.sched.PreviewAllOutcomes(it.State, storedTime(at))
}

// Due returns the items due now, oldest due first. A positive limit
// truncates the result.
func (s *Service) Due(ctx context.Context, limit int) ([]*store.Item, error) {
	items, err := s.repo.ListItems(ctx, store.ListOpts{})
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*store.Item, len(items))
	states := make([]spacedrep.MemoryState, 0, len(items))
	for _, it := range items {
		byID[it.ID] = it
		states = append(states, it.State)
	}

	due := spacedrep.DueItems(states, s.clock.Now(), limit)
	out := make([]*store.Item, 0, len(due))
	for _, st := range due {
		out = append(out, byID[st.ItemID])
	}
	return out, nil
}

// Stats aggregates the whole deck at the current time.
func (s *Service) Stats(ctx context.Context) (spacedrep.DeckStats, error) {
	items, err := s.repo.ListItems(ctx, store.ListOpts{})
	if err != nil {
		return spacedrep.DeckStats{}, err
	}
	states := make([]spacedrep.MemoryState, 0, len(items))
	for _, it := range items {
		states = append(states, it.State)
	}
	return spacedrep.Stats(states, s.clock.Now()), nil
}

// History returns the item's review logs, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]spacedrep.ReviewLog, error) {
	if _, err := s.repo.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ReviewLogs(ctx, id)
}

// ReviewCount returns the number of reviews committed across the deck.
func (s *Service) ReviewCount(ctx context.Context) (int, error) {
	return s.repo.CountReviews(ctx)
}

// AllReviews returns every committed review across the deck, oldest first.
func (s *Service) AllReviews(ctx context.Context) ([]spacedrep.ReviewLog, error) {
	return s.repo.AllReviewLogs(ctx)
}

// Retrievability returns the item's current probability of recall.
func (s *Service) Retrievability(it *store.Item) (float64, error) {
	return s.sched.Retrievability(it.State, s.clock.Now())
}

// Reschedule rebuilds the item's state by replaying its review logs through
// the current scheduler. It is used after the parameter table or the
// scheduling configuration changes.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID) (*store.Item, error) {
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		it, err := s.repo.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		logs, err := s.repo.ReviewLogs(ctx, id)
		if err != nil {
			return nil, err
		}

		st, err := s.sched.Reschedule(s.sched.NewState(id, it.CreatedAt), logs)
		if err != nil {
			return nil, fmt.Errorf("reschedule %s: %w", id, err)
		}

		updated, err := s.repo.ReplaceState(ctx, it.Version, st, s.Now())
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("reschedule conflict, retrying", "item", id, "attempt", attempt)
			if s.metrics != nil {
				s.metrics.RecordConflict()
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Debug("item rescheduled", "item", id, "reviews", len(logs), "due", st.Due)
		return updated, nil
	}
	return nil, fmt.Errorf("reschedule %s: %w after %d attempts", id, store.ErrConflict, MaxAttempts)
}

// RescheduleAll reschedules every item with at most concurrency items in
// flight. It stops at the first error and returns the number of items
// rescheduled before it.
func (s *Service) RescheduleAll(ctx context.Context, concurrency int) (int, error) {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	items, err := s.repo.ListItems(ctx, store.ListOpts{})
	if err != nil {
		return 0, err
	}

	var done atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, it := range items {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			if _, err := s.Reschedule(gCtx, it.ID); err != nil {
				return err
			}
			done.Add(1)
			return nil
		})
	}
	err = g.Wait()

	n := int(done.Load())
	s.logger.Info("deck rescheduled", "items", n, "total", len(items))
	return n, err
}
