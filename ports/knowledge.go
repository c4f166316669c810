package ports

import (
	"context"

	"goresearch/domain/research"
)

// EntityUpdate is one knowledge-store upsert: an admitted entity with the
// provenance of the document it was observed in.
type EntityUpdate struct {
	Entity     string            `json:"entity" db:"entity"`
	Relation   research.Relation `json:"relation" db:"relation"`
	Target     string            `json:"target,omitempty" db:"target"`
	Score      float64           `json:"score" db:"score"`
	Provenance map[string]string `json:"provenance" db:"-"`
}

// KnowledgeStorePort receives admitted entities. Implementations keep the
// highest score seen per (entity, relation).
type KnowledgeStorePort interface {
	UpsertEntity(ctx context.Context, update EntityUpdate) error
}

// ModelRetrainPort is notified of every validated result
type ModelRetrainPort interface {
	TriggerRetrain(ctx context.Context, result research.ValidationResult) error
}
