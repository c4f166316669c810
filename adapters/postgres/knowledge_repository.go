package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/ports"
)

// KnowledgeRecord is one stored (entity, relation) row
type KnowledgeRecord struct {
	Entity       string            `json:"entity" db:"entity"`
	Relation     research.Relation `json:"relation" db:"relation"`
	Target       string            `json:"target" db:"target"`
	Score        float64           `json:"score" db:"score"`
	Provenance   map[string]string `json:"provenance" db:"-"`
	Observations int               `json:"observations" db:"observations"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

type knowledgeRow struct {
	KnowledgeRecord
	ProvenanceJSON string `db:"provenance"`
}

// KnowledgeRepository is the knowledge-store hook backed by SQL. The row of
// an (entity, relation) pair keeps the best score ever observed together
// with that observation's target and provenance.
type KnowledgeRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ ports.KnowledgeStorePort = (*KnowledgeRepository)(nil)

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *sqlx.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertEntity inserts update or raises the stored score to update.Score
func (r *KnowledgeRepository) UpsertEntity(ctx context.Context, update ports.EntityUpdate) error {
	if strings.TrimSpace(update.Entity) == "" {
		return core.NewValidationError("entity", "cannot be empty")
	}

	provenance, err := json.Marshal(nonNilMap(update.Provenance))
	if err != nil {
		return fmt.Errorf("failed to marshal provenance: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO knowledge_entities (entity, relation, target, score, provenance, observations, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (entity, relation) DO UPDATE SET
			target = CASE WHEN excluded.score > knowledge_entities.score
				THEN excluded.target ELSE knowledge_entities.target END,
			provenance = CASE WHEN excluded.score > knowledge_entities.score
				THEN excluded.provenance ELSE knowledge_entities.provenance END,
			score = CASE WHEN excluded.score > knowledge_entities.score
				THEN excluded.score ELSE knowledge_entities.score END,
			observations = knowledge_entities.observations + 1,
			updated_at = excluded.updated_at`)

	_, err = r.db.ExecContext(ctx, query,
		update.Entity,
		string(update.Relation),
		update.Target,
		update.Score,
		string(provenance),
		r.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge entity: %w", err)
	}
	return nil
}

// GetEntity returns the stored row for (entity, relation)
func (r *KnowledgeRepository) GetEntity(ctx context.Context, entity string, relation research.Relation) (*KnowledgeRecord, error) {
	query := r.db.Rebind(`
		SELECT entity, relation, target, score, provenance, observations, updated_at
		FROM knowledge_entities
		WHERE entity = ? AND relation = ?`)

	var row knowledgeRow
	if err := r.db.GetContext(ctx, &row, query, entity, string(relation)); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("knowledge entity", entity+"/"+string(relation))
		}
		return nil, fmt.Errorf("failed to get knowledge entity: %w", err)
	}
	return row.record()
}

// ListTop returns up to limit rows, best score first
func (r *KnowledgeRepository) ListTop(ctx context.Context, limit int) ([]*KnowledgeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Rebind(`
		SELECT entity, relation, target, score, provenance, observations, updated_at
		FROM knowledge_entities
		ORDER BY score DESC, entity ASC, relation ASC
		LIMIT ?`)

	var rows []knowledgeRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list knowledge entities: %w", err)
	}

	records := make([]*KnowledgeRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (row *knowledgeRow) record() (*KnowledgeRecord, error) {
	rec := row.KnowledgeRecord
	if err := json.Unmarshal([]byte(row.ProvenanceJSON), &rec.Provenance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provenance: %w", err)
	}
	return &rec, nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
