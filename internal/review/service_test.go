package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/memora/internal/metrics"
	"github.com/abhisek/memora/internal/spacedrep"
	"github.com/abhisek/memora/internal/store"
)

var t0 = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// racingRepo lets another writer commit a Hard review just before each of
// the next `races` commits.
type racingRepo struct {
	store.ItemRepo
	sched *spacedrep.Scheduler
	races int
}

func (r *racingRepo) CommitReview(ctx context.Context, expected int, log spacedrep.ReviewLog) (*store.Item, error) {
	if r.races > 0 {
		r.races--
		it, err := r.ItemRepo.GetItem(ctx, log.ItemID)
		if err != nil {
			return nil, err
		}
		_, other, err := r.sched.Review(it.State, spacedrep.Hard, log.ReviewedAt)
		if err != nil {
			return nil, err
		}
		if _, err := r.ItemRepo.CommitReview(ctx, it.Version, other); err != nil {
			return nil, err
		}
	}
	return r.ItemRepo.CommitReview(ctx, expected, log)
}

func newScheduler(t *testing.T, mutate func(*spacedrep.Config)) *spacedrep.Scheduler {
	t.Helper()
	cfg := spacedrep.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := spacedrep.NewScheduler(cfg)
	require.NoError(t, err)
	return s
}

func openRepo(t *testing.T) store.ItemRepo {
	t.Helper()
	s, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.ItemRepo()
}

func newTestService(t *testing.T, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: t0}
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewService(openRepo(t), newScheduler(t, nil), opts...), clock
}

func TestAdd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	it, err := svc.Add(ctx, "  ephemeral  ")
	require.NoError(t, err)
	assert.Equal(t, "ephemeral", it.Label)
	assert.Equal(t, spacedrep.StateNew, it.State.State)
	assert.True(t, it.State.Due.Equal(t0))

	_, err = svc.Add(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyLabel)
}

func TestFind(t *testing.T) {
	repo := openRepo(t)
	sched := newScheduler(t, nil)
	svc := NewService(repo, sched, WithClock(spacedrep.FixedClock(t0)))
	ctx := context.Background()

	a := uuid.MustParse("aaaaaaaa-0000-4000-8000-000000000001")
	b := uuid.MustParse("aaabbbbb-0000-4000-8000-000000000002")
	for _, id := range []uuid.UUID{a, b} {
		_, err := repo.CreateItem(ctx, id.String()[:4], sched.NewState(id, t0), t0)
		require.NoError(t, err)
	}

	got, err := svc.Find(ctx, a.String())
	require.NoError(t, err)
	assert.Equal(t, a, got.ID)

	got, err = svc.Find(ctx, "AAAA")
	require.NoError(t, err)
	assert.Equal(t, a, got.ID)

	_, err = svc.Find(ctx, "aaa")
	assert.ErrorIs(t, err, ErrAmbiguousID)

	_, err = svc.Find(ctx, "ffff")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Find(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReview_Lifecycle(t *testing.T) {
	m := metrics.NewMetrics()
	svc, clock := newTestService(t, WithMetrics(m))
	ctx := context.Background()

	it, err := svc.Add(ctx, "mitochondria")
	require.NoError(t, err)

	out, err := svc.Review(ctx, it.ID, spacedrep.Good)
	require.NoError(t, err)
	assert.Equal(t, spacedrep.StateLearning, out.Item.State.State)
	assert.Equal(t, 2, out.Item.Version)
	assert.Equal(t, 1, out.Log.StateAfter.ScheduledDays)

	clock.Set(out.Item.State.Due)
	out, err = svc.Review(ctx, it.ID, spacedrep.Easy)
	require.NoError(t, err)
	assert.Equal(t, spacedrep.StateReview, out.Item.State.State)
	assert.Equal(t, 2, out.Item.State.Reps)

	history, err := svc.History(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, spacedrep.Good, history[0].Rating)
	assert.Equal(t, spacedrep.Easy, history[1].Rating)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewsTotal.WithLabelValues("good", "new", "learning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewsTotal.WithLabelValues("easy", "learning", "review")))
	assert.Zero(t, testutil.ToFloat64(m.ReviewConflicts))
}

func TestReview_InvalidRatingCommitsNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	it, err := svc.Add(ctx, "word")
	require.NoError(t, err)

	_, err = svc.Review(ctx, it.ID, spacedrep.Rating(7))
	assert.ErrorIs(t, err, spacedrep.ErrInvalidRating)

	got, err := svc.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestReview_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Review(context.Background(), uuid.New(), spacedrep.Good)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReview_RetriesOnConflict(t *testing.T) {
	repo := openRepo(t)
	sched := newScheduler(t, nil)
	racing := &racingRepo{ItemRepo: repo, sched: sched}
	m := metrics.NewMetrics()
	svc := NewService(racing, sched, WithClock(spacedrep.FixedClock(t0)), WithMetrics(m))
	ctx := context.Background()

	it, err := svc.Add(ctx, "word")
	require.NoError(t, err)

	racing.races = 1
	out, err := svc.Review(ctx, it.ID, spacedrep.Good)
	require.NoError(t, err)

	// The other writer's review and ours both landed, in that order.
	assert.Equal(t, 2, out.Item.State.Reps)
	assert.Equal(t, 3, out.Item.Version)
	assert.Equal(t, spacedrep.StateLearning, out.Log.StateBefore.State)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewConflicts))

	history, err := svc.History(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, spacedrep.Hard, history[0].Rating)
	assert.Equal(t, spacedrep.Good, history[1].Rating)
}

func TestReview_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := openRepo(t)
	sched := newScheduler(t, nil)
	racing := &racingRepo{ItemRepo: repo, sched: sched, races: 10}
	svc := NewService(racing, sched, WithClock(spacedrep.FixedClock(t0)))
	ctx := context.Background()

	id := uuid.New()
	_, err := repo.CreateItem(ctx, "word", sched.NewState(id, t0), t0)
	require.NoError(t, err)

	_, err = svc.Review(ctx, id, spacedrep.Good)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 10-MaxAttempts, racing.races)

	logs, err := repo.ReviewLogs(ctx, id)
	require.NoError(t, err)
	for _, l := range logs {
		assert.Equal(t, spacedrep.Hard, l.Rating, "only the other writer's reviews are stored")
	}
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	it, err := svc.Add(ctx, "word")
	require.NoError(t, err)

	preview, err := svc.Preview(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, preview, 4)

	out, err := svc.Review(ctx, it.ID, spacedrep.Hard)
	require.NoError(t, err)
	assert.Equal(t, preview[spacedrep.Hard], out.Log.StateAfter)
}

func TestReviewAt_CommitsPreviewedState(t *testing.T) {
	repo := openRepo(t)
	sched := newScheduler(t, nil)
	clock := &testClock{now: t0}
	svc := NewService(repo, sched, WithClock(clock))
	ctx := context.Background()

	last := t0.Add(-60 * 24 * time.Hour)
	id := uuid.New()
	st := spacedrep.MemoryState{
		ItemID:        id,
		Due:           t0,
		Stability:     60,
		Difficulty:    5,
		ScheduledDays: 60,
		Reps:          4,
		State:         spacedrep.StateReview,
		LastReview:    &last,
	}
	_, err := repo.CreateItem(ctx, "long interval", st, last)
	require.NoError(t, err)

	at := svc.Now()
	preview, err := svc.PreviewAt(ctx, id, at)
	require.NoError(t, err)

	// The learner hesitates before pressing the key.
	clock.Set(t0.Add(3*time.Second + 17*time.Millisecond))
	out, err := svc.ReviewAt(ctx, id, spacedrep.Good, at)
	require.NoError(t, err)

	want := preview[spacedrep.Good]
	assert.Equal(t, want.ScheduledDays, out.Log.StateAfter.ScheduledDays)
	assert.True(t, want.Due.Equal(out.Item.State.Due), "due %s, previewed %s", out.Item.State.Due, want.Due)
	assert.True(t, out.Log.ReviewedAt.Equal(at))

	// A second commit from the same stale preview loses.
	_, err = svc.ReviewAt(ctx, id, spacedrep.Good, at.Add(-time.Second))
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestReview_StoredPrecisionKeepsReplayStable(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	clock.Set(t0.Add(123456789 * time.Nanosecond))

	it, err := svc.Add(ctx, "precise")
	require.NoError(t, err)
	assert.Zero(t, it.State.Due.Nanosecond()%1000)

	out, err := svc.Review(ctx, it.ID, spacedrep.Good)
	require.NoError(t, err)
	assert.Zero(t, out.Log.ReviewedAt.Nanosecond()%1000)

	clock.Set(out.Item.State.Due.Add(987654321 * time.Nanosecond))
	out, err = svc.Review(ctx, it.ID, spacedrep.Easy)
	require.NoError(t, err)

	replayed, err := svc.Reschedule(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, out.Item.State.Due.Equal(replayed.State.Due), "due moved from %s to %s", out.Item.State.Due, replayed.State.Due)
	assert.Equal(t, out.Item.State.ScheduledDays, replayed.State.ScheduledDays)
}

func TestDueAndStats(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, "first")
	require.NoError(t, err)
	clock.Set(t0.Add(time.Hour))
	second, err := svc.Add(ctx, "second")
	require.NoError(t, err)
	third, err := svc.Add(ctx, "third")
	require.NoError(t, err)

	_, err = svc.Review(ctx, third.ID, spacedrep.Good)
	require.NoError(t, err)

	due, err := svc.Due(ctx, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, second.ID, due[1].ID)

	limited, err := svc.Due(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, first.ID, limited[0].ID)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, spacedrep.DeckStats{Total: 3, New: 2, Learning: 1, Due: 2}, stats)

	n, err := svc.ReviewCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	it, err := svc.Add(ctx, "word")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, it.ID))

	_, err = svc.History(ctx, it.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, it.ID), store.ErrNotFound)
}

func TestReschedule_NewConfiguration(t *testing.T) {
	repo := openRepo(t)
	clock := &testClock{now: t0}
	noFuzz := func(c *spacedrep.Config) { c.DisableFuzz = true }
	svc := NewService(repo, newScheduler(t, noFuzz), WithClock(clock))
	ctx := context.Background()

	it, err := svc.Add(ctx, "word")
	require.NoError(t, err)
	out, err := svc.Review(ctx, it.ID, spacedrep.Good)
	require.NoError(t, err)
	clock.Set(out.Item.State.Due)
	out, err = svc.Review(ctx, it.ID, spacedrep.Easy)
	require.NoError(t, err)
	require.Equal(t, spacedrep.StateReview, out.Item.State.State)

	// Same configuration: the replay reproduces the stored state.
	same, err := svc.Reschedule(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Item.State, same.State)
	assert.Equal(t, out.Item.Version+1, same.Version)

	// Lower target retention: longer intervals.
	relaxed := NewService(repo, newScheduler(t, func(c *spacedrep.Config) {
		noFuzz(c)
		c.TargetRetention = 0.8
	}), WithClock(clock))
	got, err := relaxed.Reschedule(ctx, it.ID)
	require.NoError(t, err)
	assert.Greater(t, got.State.ScheduledDays, same.State.ScheduledDays)
	assert.Equal(t, same.State.Reps, got.State.Reps)
	assert.Equal(t, same.State.Stability, got.State.Stability)
}

func TestRescheduleAll(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, label := range []string{"a", "b", "c", "d", "e"} {
		it, err := svc.Add(ctx, label)
		require.NoError(t, err)
		_, err = svc.Review(ctx, it.ID, spacedrep.Good)
		require.NoError(t, err)
	}

	n, err := svc.RescheduleAll(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	items, err := svc.List(ctx, store.ListOpts{})
	require.NoError(t, err)
	for _, it := range items {
		assert.Equal(t, 3, it.Version, "item %s", it.Label)
		assert.Equal(t, 1, it.State.Reps)
	}
}

func TestRescheduleAll_Cancelled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := svc.Add(ctx, "a")
	require.NoError(t, err)
	cancel()

	_, err = svc.RescheduleAll(ctx, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}
