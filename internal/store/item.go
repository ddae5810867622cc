package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/memora/internal/spacedrep"
)

// itemColumns is the select list decoded by scanItem.
var itemColumns = []string{
	colItemID, colLabel, colState, colDue, colStability, colDifficulty,
	colElapsedDays, colScheduledDays, colReps, colLapses, colLastReview,
	colVersion, colCreatedAt, colUpdatedAt,
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// itemRepo implements ItemRepo with ent's SQL builders over database/sql.
type itemRepo struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

func (r *itemRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.dialect)
}

func (r *itemRepo) CreateItem(ctx context.Context, label string, st spacedrep.MemoryState, now time.Time) (*Item, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	now = now.UTC()
	q, args := r.builder().Insert(itemsTable).
		Columns(itemColumns...).
		Values(
			st.ItemID, label, string(st.State), st.Due.UTC(), st.Stability, st.Difficulty,
			st.ElapsedDays, st.ScheduledDays, st.Reps, st.Lapses, nullTime(st.LastReview),
			1, now, now,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return r.GetItem(ctx, st.ItemID)
}

func (r *itemRepo) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	return r.getItem(ctx, r.db, id)
}

func (r *itemRepo) getItem(ctx context.Context, qr querier, id uuid.UUID) (*Item, error) {
	q, args := r.builder().Select(itemColumns...).
		From(entsql.Table(itemsTable)).
		Where(entsql.EQ(colItemID, id)).
		Query()
	items, err := r.queryItems(ctx, qr, q, args)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return items[0], nil
}

func (r *itemRepo) ListItems(ctx context.Context, opts ListOpts) ([]*Item, error) {
	sel := r.builder().Select(itemColumns...).From(entsql.Table(itemsTable))
	if opts.State != "" {
		sel.Where(entsql.EQ(colState, string(opts.State)))
	}
	if !opts.DueBefore.IsZero() {
		sel.Where(entsql.LTE(colDue, opts.DueBefore.UTC()))
	}
	sel.OrderBy(colDue, colCreatedAt)
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	q, args := sel.Query()
	items, err := r.queryItems(ctx, r.db, q, args)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (r *itemRepo) DeleteItem(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q, args := r.builder().Delete(reviewLogsTable).Where(entsql.EQ(colItemID, id)).Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("delete review logs: %w", err)
	}

	q, args = r.builder().Delete(itemsTable).Where(entsql.EQ(colItemID, id)).Query()
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete item: %w", err)
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func (r *itemRepo) CommitReview(ctx context.Context, expected int, log spacedrep.ReviewLog) (*Item, error) {
	if log.ItemID != log.StateAfter.ItemID {
		return nil, fmt.Errorf("%w: log for %s carries state of %s", spacedrep.ErrItemMismatch, log.ItemID, log.StateAfter.ItemID)
	}
	if err := log.StateAfter.Validate(); err != nil {
		return nil, err
	}
	before, err := json.Marshal(log.StateBefore)
	if err != nil {
		return nil, fmt.Errorf("marshal state before: %w", err)
	}
	after, err := json.Marshal(log.StateAfter)
	if err != nil {
		return nil, fmt.Errorf("marshal state after: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := r.updateState(ctx, tx, expected, log.StateAfter, log.ReviewedAt); err != nil {
		return nil, err
	}

	q, args := r.builder().Insert(reviewLogsTable).
		Columns(colItemID, colRating, colReviewedAt, colElapsedDays, colStateBefore, colStateAfter).
		Values(log.ItemID, log.Rating.String(), log.ReviewedAt.UTC(), log.ElapsedDays, string(before), string(after)).
		Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("insert review log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}
	return r.GetItem(ctx, log.ItemID)
}

func (r *itemRepo) ReplaceState(ctx context.Context, expected int, st spacedrep.MemoryState, now time.Time) (*Item, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if err := r.updateState(ctx, r.db, expected, st, now); err != nil {
		return nil, err
	}
	return r.GetItem(ctx, st.ItemID)
}

// updateState writes st if the stored version equals expected and bumps the
// version. It distinguishes a missing item from a stale version.
func (r *itemRepo) updateState(ctx context.Context, qr querier, expected int, st spacedrep.MemoryState, now time.Time) error {
	q, args := r.builder().Update(itemsTable).
		Set(colState, string(st.State)).
		Set(colDue, st.Due.UTC()).
		Set(colStability, st.Stability).
		Set(colDifficulty, st.Difficulty).
		Set(colElapsedDays, st.ElapsedDays).
		Set(colScheduledDays, st.ScheduledDays).
		Set(colReps, st.Reps).
		Set(colLapses, st.Lapses).
		Set(colLastReview, nullTime(st.LastReview)).
		Set(colVersion, expected+1).
		Set(colUpdatedAt, now.UTC()).
		Where(entsql.And(
			entsql.EQ(colItemID, st.ItemID),
			entsql.EQ(colVersion, expected),
		)).
		Query()
	res, err := qr.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update item %s: %w", st.ItemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item %s: %w", st.ItemID, err)
	}
	if n > 0 {
		return nil
	}

	current, err := r.getItem(ctx, qr, st.ItemID)
	if err != nil {
		return err
	}
	r.logger.Debug("version conflict", "item", st.ItemID, "expected", expected, "stored", current.Version)
	return fmt.Errorf("%w: item %s at version %d, expected %d", ErrConflict, st.ItemID, current.Version, expected)
}

func (r *itemRepo) ReviewLogs(ctx context.Context, id uuid.UUID) ([]spacedrep.ReviewLog, error) {
	return r.queryLogs(ctx, entsql.EQ(colItemID, id))
}

func (r *itemRepo) AllReviewLogs(ctx context.Context) ([]spacedrep.ReviewLog, error) {
	return r.queryLogs(ctx, nil)
}

// queryLogs returns the review logs matching where, or all of them when where
// is nil, in review order.
func (r *itemRepo) queryLogs(ctx context.Context, where *entsql.Predicate) ([]spacedrep.ReviewLog, error) {
	sel := r.builder().Select(colItemID, colRating, colReviewedAt, colElapsedDays, colStateBefore, colStateAfter).
		From(entsql.Table(reviewLogsTable))
	if where != nil {
		sel = sel.Where(where)
	}
	q, args := sel.OrderBy(colReviewedAt, colID).Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query review logs: %w", err)
	}
	defer rows.Close()

	var logs []spacedrep.ReviewLog
	for rows.Next() {
		var (
			rating        string
			before, after []byte
			l             spacedrep.ReviewLog
		)
		if err := rows.Scan(&l.ItemID, &rating, &l.ReviewedAt, &l.ElapsedDays, &before, &after); err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}
		if l.Rating, err = spacedrep.ParseRating(rating); err != nil {
			return nil, fmt.Errorf("%w: stored rating %q", spacedrep.ErrInvalidState, rating)
		}
		if err := json.Unmarshal(before, &l.StateBefore); err != nil {
			return nil, fmt.Errorf("%w: decode state before: %v", spacedrep.ErrInvalidState, err)
		}
		if err := json.Unmarshal(after, &l.StateAfter); err != nil {
			return nil, fmt.Errorf("%w: decode state after: %v", spacedrep.ErrInvalidState, err)
		}
		l.ReviewedAt = l.ReviewedAt.UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *itemRepo) CountReviews(ctx context.Context) (int, error) {
	q, args := r.builder().Select(entsql.Count("*")).From(entsql.Table(reviewLogsTable)).Query()
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("count reviews: %w", err)
		}
	}
	return n, rows.Err()
}

func (r *itemRepo) queryItems(ctx context.Context, qr querier, q string, args []any) ([]*Item, error) {
	rows, err := qr.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanItem(rows *sql.Rows) (*Item, error) {
	var (
		it         Item
		state      string
		lastReview sql.NullTime
	)
	st := &it.State
	err := rows.Scan(
		&it.ID, &it.Label, &state, &st.Due, &st.Stability, &st.Difficulty,
		&st.ElapsedDays, &st.ScheduledDays, &st.Reps, &st.Lapses, &lastReview,
		&it.Version, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}

	st.ItemID = it.ID
	st.Due = st.Due.UTC()
	if st.State, err = spacedrep.ParseState(state); err != nil {
		return nil, err
	}
	if lastReview.Valid {
		t := lastReview.Time.UTC()
		st.LastReview = &t
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()

	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("item %s: %w", it.ID, err)
	}
	return &it, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
