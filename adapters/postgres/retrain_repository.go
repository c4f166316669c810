package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"goresearch/domain/core"
	"goresearch/domain/research"
	"goresearch/domain/stage"
	"goresearch/ports"
)

// Retrain request states
const (
	RetrainPending   = "pending"
	RetrainCompleted = "completed"
)

// RetrainRequest is a queued model-retrain trigger
type RetrainRequest struct {
	ID            string             `json:"id" db:"id"`
	RunID         string             `json:"run_id" db:"run_id"`
	MeetsCriteria bool               `json:"meets_criteria" db:"meets_criteria"`
	Metrics       map[string]float64 `json:"metrics" db:"-"`
	MetricsJSON   string             `json:"-" db:"metrics"`
	Status        string             `json:"status" db:"status"`
	RequestedAt   time.Time          `json:"requested_at" db:"requested_at"`
}

// RetrainRepository queues retrain triggers for an external trainer to drain
type RetrainRepository struct {
	db *sqlx.DB
}

var _ ports.ModelRetrainPort = (*RetrainRepository)(nil)

// NewRetrainRepository creates a new retrain repository
func NewRetrainRepository(db *sqlx.DB) *RetrainRepository {
	return &RetrainRepository{db: db}
}

// TriggerRetrain enqueues result. The run id is taken from ctx when present.
func (r *RetrainRepository) TriggerRetrain(ctx context.Context, result research.ValidationResult) error {
	metrics, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	runID, _ := stage.RunIDFrom(ctx)

	query := r.db.Rebind(`
		INSERT INTO retrain_requests (id, run_id, meets_criteria, metrics, status, requested_at)
		VALUES (?, ?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		core.NewID().String(),
		runID.String(),
		result.MeetsCriteria,
		string(metrics),
		RetrainPending,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue retrain request: %w", err)
	}
	return nil
}

// Pending lists queued requests, oldest first
func (r *RetrainRepository) Pending(ctx context.Context, limit int) ([]*RetrainRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.Rebind(`
		SELECT id, run_id, meets_criteria, metrics, status, requested_at
		FROM retrain_requests
		WHERE status = ?
		ORDER BY requested_at ASC, id ASC
		LIMIT ?`)

	var requests []*RetrainRequest
	if err := r.db.SelectContext(ctx, &requests, query, RetrainPending, limit); err != nil {
		return nil, fmt.Errorf("failed to list retrain requests: %w", err)
	}
	for _, req := range requests {
		if err := json.Unmarshal([]byte(req.MetricsJSON), &req.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	return requests, nil
}

// MarkCompleted flags a request as drained
func (r *RetrainRepository) MarkCompleted(ctx context.Context, id string) error {
	query := r.db.Rebind(`UPDATE retrain_requests SET status = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, RetrainCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to update retrain request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("retrain request", id)
	}
	return nil
}
