package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/abhisek/memora/internal/spacedrep"
)

// Item holds one learning item and its current memory state. The label is
// opaque to the scheduler.
type Item struct {
	ent.Schema
}

func (Item) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("item_id", uuid.UUID{}).
			Immutable().
			Comment("Stable item identity, also part of the fuzz seed"),
		field.String("label").
			MaxLen(2048),
		field.Enum("state").
			Values(stateValues()...),
		field.Time("due"),
		field.Float("stability").
			Comment("Days until recall probability decays to the target retention"),
		field.Float("difficulty").
			Comment("Intrinsic difficulty in [1, 10]"),
		field.Int("elapsed_days").
			Default(0),
		field.Int("scheduled_days").
			Default(0),
		field.Int("reps").
			Default(0),
		field.Int("lapses").
			Default(0),
		field.Time("last_review").
			Optional().
			Nillable(),
		field.Int("version").
			Default(1).
			Comment("Bumped on every state change; writers compare and swap on it"),
		field.Time("created_at").
			Immutable(),
		field.Time("updated_at"),
	}
}

func (Item) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("due"),
	}
}

func stateValues() []string {
	out := make([]string, len(spacedrep.States))
	for i, s := range spacedrep.States {
		out[i] = string(s)
	}
	return out
}
