package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/memora/internal/spacedrep"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newScheduler(t *testing.T) *spacedrep.Scheduler {
	t.Helper()
	s, err := spacedrep.NewScheduler(spacedrep.DefaultConfig())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func createItem(t *testing.T, repo ItemRepo, label string, now time.Time) *Item {
	t.Helper()
	st := newScheduler(t).NewState(uuid.New(), now)
	it, err := repo.CreateItem(context.Background(), label, st, now)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil db")
	}
	if s.Dialect() != "sqlite3" {
		t.Errorf("dialect = %q, want sqlite3", s.Dialect())
	}
}

func TestOpenDriver_Unsupported(t *testing.T) {
	if _, err := OpenDriver("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is checked in TestFileDatabase.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memora.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	it := createItem(t, s.ItemRepo(), "persisted", testNow)
	s.Close()

	// Reopening runs the migration again on existing tables.
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.ItemRepo().GetItem(context.Background(), it.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Label != "persisted" {
		t.Errorf("label = %q, want persisted", got.Label)
	}
}

func TestBuildTables(t *testing.T) {
	tables, err := buildTables()
	if err != nil {
		t.Fatalf("build tables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(tables))
	}
	items, logs := tables[0], tables[1]

	for _, name := range itemColumns {
		if !items.HasColumn(name) {
			t.Errorf("items table missing column %q", name)
		}
	}
	if items.PrimaryKey[0].Name != colItemID {
		t.Errorf("items primary key = %s, want %s", items.PrimaryKey[0].Name, colItemID)
	}
	if c, _ := items.Column(colLastReview); !c.Nullable {
		t.Error("last_review should be nullable")
	}
	if c, _ := items.Column(colState); len(c.Enums) != len(spacedrep.States) {
		t.Errorf("state enums = %v", c.Enums)
	}
	if len(items.Indexes) != 1 || items.Indexes[0].Name != "item_due" {
		t.Errorf("items indexes = %v", items.Indexes)
	}

	if logs.PrimaryKey[0].Name != colID || !logs.PrimaryKey[0].Increment {
		t.Errorf("review_logs primary key = %+v", logs.PrimaryKey[0])
	}
	if len(logs.ForeignKeys) != 1 || logs.ForeignKeys[0].RefTable != items {
		t.Fatalf("review_logs foreign keys = %v", logs.ForeignKeys)
	}
	if len(logs.Indexes) != 1 || logs.Indexes[0].Name != "reviewlog_item_id_reviewed_at" || len(logs.Indexes[0].Columns) != 2 {
		t.Errorf("review_logs indexes = %v", logs.Indexes)
	}
}

func TestCreateAndGetItem(t *testing.T) {
	repo := openTestStore(t).ItemRepo()

	it := createItem(t, repo, "capital of France", testNow)
	if it.Version != 1 {
		t.Errorf("version = %d, want 1", it.Version)
	}
	if it.State.State != spacedrep.StateNew {
		t.Errorf("state = %s, want new", it.State.State)
	}
	if !it.State.Due.Equal(testNow) {
		t.Errorf("due = %v, want %v", it.State.Due, testNow)
	}
	if it.State.LastReview != nil {
		t.Errorf("last review = %v, want nil", it.State.LastReview)
	}
	if it.State.ItemID != it.ID {
		t.Errorf("state item id = %s, want %s", it.State.ItemID, it.ID)
	}
	if !it.CreatedAt.Equal(testNow) {
		t.Errorf("created_at = %v, want %v", it.CreatedAt, testNow)
	}
}

func TestCreateItem_InvalidState(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	_, err := repo.CreateItem(context.Background(), "bad", spacedrep.MemoryState{ItemID: uuid.New()}, testNow)
	if !errors.Is(err, spacedrep.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	_, err := repo.GetItem(context.Background(), uuid.New())
	if !IsNotFound(err) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCommitReview(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	ctx := context.Background()
	sched := newScheduler(t)

	it := createItem(t, repo, "word", testNow)
	next, log, err := sched.Review(it.State, spacedrep.Good, testNow)
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	got, err := repo.CommitReview(ctx, it.Version, log)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
	if got.State.State != next.State || got.State.Reps != 1 {
		t.Errorf("stored state = %+v, want %+v", got.State, next)
	}
	if got.State.Stability != next.Stability || got.State.Difficulty != next.Difficulty {
		t.Errorf("stored S/D = %v/%v, want %v/%v", got.State.Stability, got.State.Difficulty, next.Stability, next.Difficulty)
	}
	if got.State.LastReview == nil || !got.State.LastReview.Equal(testNow) {
		t.Errorf("last review = %v, want %v", got.State.LastReview, testNow)
	}
	if !got.State.Due.Equal(next.Due) {
		t.Errorf("due = %v, want %v", got.State.Due, next.Due)
	}

	logs, err := repo.ReviewLogs(ctx, it.ID)
	if err != nil {
		t.Fatalf("review logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if logs[0].Rating != spacedrep.Good {
		t.Errorf("rating = %s, want good", logs[0].Rating)
	}
	if logs[0].StateBefore.State != spacedrep.StateNew || logs[0].StateAfter.State != next.State {
		t.Errorf("log states = %s -> %s", logs[0].StateBefore.State, logs[0].StateAfter.State)
	}
	if !logs[0].ReviewedAt.Equal(testNow) {
		t.Errorf("reviewed_at = %v, want %v", logs[0].ReviewedAt, testNow)
	}
}

func TestCommitReview_Conflict(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	ctx := context.Background()
	sched := newScheduler(t)

	it := createItem(t, repo, "word", testNow)
	_, first, _ := sched.Review(it.State, spacedrep.Good, testNow)
	_, second, _ := sched.Review(it.State, spacedrep.Again, testNow)

	if _, err := repo.CommitReview(ctx, it.Version, first); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	_, err := repo.CommitReview(ctx, it.Version, second)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("second commit err = %v, want ErrConflict", err)
	}

	// The losing commit must not leave a log behind.
	n, err := repo.CountReviews(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("reviews = %d, want 1", n)
	}
}

func TestCommitReview_Missing(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	sched := newScheduler(t)

	st := sched.NewState(uuid.New(), testNow)
	_, log, _ := sched.Review(st, spacedrep.Good, testNow)
	_, err := repo.CommitReview(context.Background(), 1, log)
	if !IsNotFound(err) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReplaceState(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	ctx := context.Background()
	sched := newScheduler(t)

	it := createItem(t, repo, "word", testNow)
	next, _, _ := sched.Review(it.State, spacedrep.Easy, testNow)

	got, err := repo.ReplaceState(ctx, it.Version, next, testNow)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got.Version != 2 || got.State.Reps != 1 {
		t.Errorf("got version %d reps %d, want 2 and 1", got.Version, got.State.Reps)
	}
	if _, err := repo.ReplaceState(ctx, it.Version, next, testNow); !errors.Is(err, ErrConflict) {
		t.Errorf("stale replace err = %v, want ErrConflict", err)
	}
	n, _ := repo.CountReviews(ctx)
	if n != 0 {
		t.Errorf("reviews = %d, want 0", n)
	}
}

func TestListItems(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	ctx := context.Background()
	sched := newScheduler(t)

	late := createItem(t, repo, "late", testNow.Add(36*time.Hour))
	early := createItem(t, repo, "early", testNow)
	mid := createItem(t, repo, "mid", testNow.Add(24*time.Hour))

	next, log, _ := sched.Review(mid.State, spacedrep.Good, testNow.Add(24*time.Hour))
	if _, err := repo.CommitReview(ctx, mid.Version, log); err != nil {
		t.Fatalf("commit: %v", err)
	}

	all, err := repo.ListItems(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("items = %d, want 3", len(all))
	}
	if all[0].ID != early.ID || all[1].ID != late.ID {
		t.Errorf("order = %s, %s, %s; want early, late, mid", all[0].Label, all[1].Label, all[2].Label)
	}

	newOnly, err := repo.ListItems(ctx, ListOpts{State: spacedrep.StateNew})
	if err != nil {
		t.Fatalf("list new: %v", err)
	}
	if len(newOnly) != 2 {
		t.Errorf("new items = %d, want 2", len(newOnly))
	}

	due, err := repo.ListItems(ctx, ListOpts{DueBefore: testNow.Add(time.Hour)})
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != early.ID {
		t.Errorf("due items = %d, want only early", len(due))
	}

	limited, err := repo.ListItems(ctx, ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}
	if !next.Due.After(testNow.Add(36 * time.Hour)) {
		t.Errorf("mid due %v should sort after late", next.Due)
	}
}

func TestDeleteItem(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	ctx := context.Background()
	sched := newScheduler(t)

	it := createItem(t, repo, "word", testNow)
	_, log, _ := sched.Review(it.State, spacedrep.Good, testNow)
	if _, err := repo.CommitReview(ctx, it.Version, log); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := repo.DeleteItem(ctx, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetItem(ctx, it.ID); !IsNotFound(err) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	n, _ := repo.CountReviews(ctx)
	if n != 0 {
		t.Errorf("reviews after delete = %d, want 0", n)
	}
	if err := repo.DeleteItem(ctx, it.ID); !IsNotFound(err) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestReviewLogs_Order(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	ctx := context.Background()
	sched := newScheduler(t)

	it := createItem(t, repo, "word", testNow)
	now := testNow
	for _, r := range []spacedrep.Rating{spacedrep.Good, spacedrep.Hard, spacedrep.Easy} {
		_, log, err := sched.Review(it.State, r, now)
		if err != nil {
			t.Fatalf("review: %v", err)
		}
		if it, err = repo.CommitReview(ctx, it.Version, log); err != nil {
			t.Fatalf("commit: %v", err)
		}
		now = it.State.Due
	}

	logs, err := repo.ReviewLogs(ctx, it.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	want := []spacedrep.Rating{spacedrep.Good, spacedrep.Hard, spacedrep.Easy}
	if len(logs) != len(want) {
		t.Fatalf("logs = %d, want %d", len(logs), len(want))
	}
	for i, l := range logs {
		if l.Rating != want[i] {
			t.Errorf("log[%d] rating = %s, want %s", i, l.Rating, want[i])
		}
		if l.ItemID != it.ID {
			t.Errorf("log[%d] item = %s, want %s", i, l.ItemID, it.ID)
		}
	}

	// Replaying the stored logs rebuilds the stored state.
	initial := sched.NewState(it.ID, testNow)
	replayed, err := sched.Reschedule(initial, logs)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if replayed.Reps != it.State.Reps || replayed.ScheduledDays != it.State.ScheduledDays {
		t.Errorf("replayed = %+v, stored = %+v", replayed, it.State)
	}
}

func TestAllReviewLogs(t *testing.T) {
	repo := openTestStore(t).ItemRepo()
	ctx := context.Background()
	sched := newScheduler(t)

	a := createItem(t, repo, "a", testNow)
	b := createItem(t, repo, "b", testNow)
	for i, it := range []*Item{b, a} {
		_, log, err := sched.Review(it.State, spacedrep.Good, testNow.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("review: %v", err)
		}
		if _, err := repo.CommitReview(ctx, it.Version, log); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	logs, err := repo.AllReviewLogs(ctx)
	if err != nil {
		t.Fatalf("all logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[0].ItemID != b.ID || logs[1].ItemID != a.ID {
		t.Errorf("log items = [%s %s], want [%s %s]", logs[0].ItemID, logs[1].ItemID, b.ID, a.ID)
	}
	if logs[0].StateAfter.State != spacedrep.StateLearning {
		t.Errorf("state after = %s, want learning", logs[0].StateAfter.State)
	}
}

func TestDefaultDBPath_Env(t *testing.T) {
	want := filepath.Join(t.TempDir(), "sub", "x.db")
	t.Setenv("MEMORA_DB", want)
	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDefaultDBPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEMORA_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)
	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default path: %v", err)
	}
	if want := filepath.Join(dir, "memora", "memora.db"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
