package migration

import (
	"context"

	"github.com/jmoiron/sqlx"

	"goresearch/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the knowledge schema. Statements are idempotent and
// stick to SQL understood by both PostgreSQL and SQLite.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createKnowledgeEntitiesTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create knowledge_entities table")
	}

	if err := r.createRetrainRequestsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create retrain_requests table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createKnowledgeEntitiesTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS knowledge_entities (
			entity       TEXT NOT NULL,
			relation     TEXT NOT NULL,
			target       TEXT NOT NULL DEFAULT '',
			score        DOUBLE PRECISION NOT NULL,
			provenance   TEXT NOT NULL DEFAULT '{}',
			observations INTEGER NOT NULL DEFAULT 1,
			updated_at   TIMESTAMP NOT NULL,
			PRIMARY KEY (entity, relation)
		)`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createRetrainRequestsTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS retrain_requests (
			id             TEXT PRIMARY KEY,
			run_id         TEXT NOT NULL DEFAULT '',
			meets_criteria BOOLEAN NOT NULL,
			metrics        TEXT NOT NULL DEFAULT '{}',
			status         TEXT NOT NULL DEFAULT 'pending',
			requested_at   TIMESTAMP NOT NULL
		)`
	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_knowledge_entities_score ON knowledge_entities (score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_retrain_requests_status ON retrain_requests (status, requested_at)`,
	}
	for _, q := range indexes {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
