package store

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	entschema "github.com/abhisek/memora/ent/schema"
)

// Table and column names.
const (
	itemsTable      = "items"
	reviewLogsTable = "review_logs"

	colItemID        = "item_id"
	colLabel         = "label"
	colState         = "state"
	colDue           = "due"
	colStability     = "stability"
	colDifficulty    = "difficulty"
	colElapsedDays   = "elapsed_days"
	colScheduledDays = "scheduled_days"
	colReps          = "reps"
	colLapses        = "lapses"
	colLastReview    = "last_review"
	colVersion       = "version"
	colCreatedAt     = "created_at"
	colUpdatedAt     = "updated_at"

	colID          = "id"
	colRating      = "rating"
	colReviewedAt  = "reviewed_at"
	colStateBefore = "state_before"
	colStateAfter  = "state_after"
)

// buildTables derives the migration tables from the ent schemas in
// ent/schema. Review logs get an auto-increment id and cascade with their item.
func buildTables() ([]*schema.Table, error) {
	items, err := tableOf(itemsTable, "item", entschema.Item{}, nil)
	if err != nil {
		return nil, err
	}
	logs, err := tableOf(reviewLogsTable, "reviewlog", entschema.ReviewLog{},
		&schema.Column{Name: colID, Type: field.TypeInt, Increment: true})
	if err != nil {
		return nil, err
	}

	itemID, _ := items.Column(colItemID)
	logItemID, _ := logs.Column(colItemID)
	logs.AddForeignKey(&schema.ForeignKey{
		Symbol:     "review_logs_items_reviews",
		Columns:    []*schema.Column{logItemID},
		RefTable:   items,
		RefColumns: []*schema.Column{itemID},
		OnDelete:   schema.Cascade,
	})
	return []*schema.Table{items, logs}, nil
}

// tableOf builds the table of one ent schema. The primary key is pk, or the
// first field when pk is nil. Index names follow ent's generated naming.
func tableOf(name, typeName string, s ent.Interface, pk *schema.Column) (*schema.Table, error) {
	t := schema.NewTable(name)
	fields := s.Fields()
	if pk != nil {
		t.AddPrimary(pk)
	}
	for i, f := range fields {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("schema %s field %s: %w", typeName, d.Name, d.Err)
		}
		c := columnOf(d)
		if pk == nil && i == 0 {
			t.AddPrimary(c)
			continue
		}
		t.AddColumn(c)
	}
	for _, idx := range s.Indexes() {
		d := idx.Descriptor()
		for _, col := range d.Fields {
			if !t.HasColumn(col) {
				return nil, fmt.Errorf("schema %s index on unknown field %s", typeName, col)
			}
		}
		t.AddIndex(typeName+"_"+strings.Join(d.Fields, "_"), d.Unique, d.Fields)
	}
	return t, nil
}

func columnOf(d *field.Descriptor) *schema.Column {
	c := &schema.Column{
		Name:     d.Name,
		Type:     d.Info.Type,
		Size:     int64(d.Size),
		Unique:   d.Unique,
		Nullable: d.Optional,
		Default:  d.Default,
	}
	for _, e := range d.Enums {
		c.Enums = append(c.Enums, e.V)
	}
	return c
}

// migrate creates or upgrades the tables.
func (s *Store) migrate(ctx context.Context) error {
	tables, err := buildTables()
	if err != nil {
		return err
	}
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
