package ports

import (
	"context"

	"goresearch/domain/research"
)

// NoopKnowledgeStore discards updates
type NoopKnowledgeStore struct{}

func (NoopKnowledgeStore) UpsertEntity(context.Context, EntityUpdate) error { return nil }

// NoopRetrainer ignores retrain requests
type NoopRetrainer struct{}

func (NoopRetrainer) TriggerRetrain(context.Context, research.ValidationResult) error { return nil }

// NoopArtifactSink discards artifacts
type NoopArtifactSink struct{}

func (NoopArtifactSink) Persist(context.Context, string, []byte) error { return nil }
