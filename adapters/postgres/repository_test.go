package postgres

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
	"goresearch/internal/migration"
	"goresearch/ports"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive across queries
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, migration.NewRunner().Run(context.Background(), db))
}

func TestUpsertKeepsMaximum(t *testing.T) {
	repo := NewKnowledgeRepository(openTestDB(t))
	ctx := context.Background()

	updates := []ports.EntityUpdate{
		{Entity: "copper catalyst", Relation: research.RelationImproves, Target: "yield", Score: 0.7, Provenance: map[string]string{"provenance": "seed:paper"}},
		{Entity: "copper catalyst", Relation: research.RelationImproves, Target: "selectivity", Score: 0.9, Provenance: map[string]string{"provenance": "seed:patent"}},
		{Entity: "copper catalyst", Relation: research.RelationImproves, Target: "cost", Score: 0.8, Provenance: map[string]string{"provenance": "seed:forum"}},
	}
	for _, u := range updates {
		require.NoError(t, repo.UpsertEntity(ctx, u))
	}

	got, err := repo.GetEntity(ctx, "copper catalyst", research.RelationImproves)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Score)
	assert.Equal(t, "selectivity", got.Target)
	assert.Equal(t, "seed:patent", got.Provenance["provenance"])
	assert.Equal(t, 3, got.Observations)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestListTopOrdersByScore(t *testing.T) {
	repo := NewKnowledgeRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertEntity(ctx, ports.EntityUpdate{Entity: "a", Relation: research.RelationIsA, Score: 0.65}))
	require.NoError(t, repo.UpsertEntity(ctx, ports.EntityUpdate{Entity: "b", Relation: research.RelationIsA, Score: 0.95}))
	require.NoError(t, repo.UpsertEntity(ctx, ports.EntityUpdate{Entity: "a", Relation: research.RelationEnables, Score: 0.8}))

	got, err := repo.ListTop(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Entity)
	assert.Equal(t, research.RelationEnables, got[1].Relation)
	assert.NotNil(t, got[0].Provenance)
}

func TestGetEntityNotFound(t *testing.T) {
	repo := NewKnowledgeRepository(openTestDB(t))
	_, err := repo.GetEntity(context.Background(), "missing", research.RelationIsA)
	assert.True(t, core.IsNotFoundError(err))
}

func TestUpsertRejectsEmptyEntity(t *testing.T) {
	repo := NewKnowledgeRepository(openTestDB(t))
	assert.Error(t, repo.UpsertEntity(context.Background(), ports.EntityUpdate{Entity: "  "}))
}

func TestRetrainQueue(t *testing.T) {
	repo := NewRetrainRepository(openTestDB(t))
	ctx := stage.WithRunID(context.Background(), "run-7")

	require.NoError(t, repo.TriggerRetrain(ctx, research.ValidationResult{
		Data:          map[string]float64{"p_value": 0.01},
		MeetsCriteria: true,
	}))

	pending, err := repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "run-7", pending[0].RunID)
	assert.True(t, pending[0].MeetsCriteria)
	assert.Equal(t, 0.01, pending[0].Metrics["p_value"])

	require.NoError(t, repo.MarkCompleted(ctx, pending[0].ID))
	pending, err = repo.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.True(t, core.IsNotFoundError(repo.MarkCompleted(ctx, "nope")))
}
