package schema

import (
	"encoding/json"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/abhisek/memora/internal/spacedrep"
)

// ReviewLog records one committed review. Logs are append-only and are
// replayed to rebuild item states after the scheduler changes.
type ReviewLog struct {
	ent.Schema
}

func (ReviewLog) Fields() []ent.Field {
	return []ent.Field{
		field.Enum("rating").
			Values(ratingValues()...).
			Immutable(),
		field.Time("reviewed_at").
			Immutable(),
		field.Int("elapsed_days").
			Immutable(),
		field.JSON("state_before", json.RawMessage{}).
			Immutable().
			Comment("Memory state before the review"),
		field.JSON("state_after", json.RawMessage{}).
			Immutable().
			Comment("Memory state after the review"),
		field.UUID("item_id", uuid.UUID{}).
			Immutable(),
	}
}

func (ReviewLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("item_id", "reviewed_at"),
	}
}

func ratingValues() []string {
	out := make([]string, len(spacedrep.Ratings))
	for i, r := range spacedrep.Ratings {
		out[i] = r.String()
	}
	return out
}
