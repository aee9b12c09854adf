package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunStatus is the lifecycle of a persisted agent run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ErrRunNotFound indicates no run with that id is visible to the caller.
var ErrRunNotFound = errors.New("agent run not found")

// Run is one persisted agent execution.
type Run struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	OrgID       uuid.UUID `json:"org_id"`
	Query       string    `json:"query"`
	Status      RunStatus `json:"status"`
	Progress    float64   `json:"progress"`
	CurrentStep string    `json:"current_step"`
	Results     *Results  `json:"results,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists agent runs.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const runColumns = `id, user_id, org_id, query, status, progress, current_step, results, error, created_at, updated_at`

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var results []byte
	err := row.Scan(&r.ID, &r.UserID, &r.OrgID, &r.Query, &r.Status, &r.Progress,
		&r.CurrentStep, &results, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("scan agent run: %w", err)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &r.Results); err != nil {
			return nil, fmt.Errorf("decode run results: %w", err)
		}
	}
	return &r, nil
}

// CreateRun inserts a new run in running state.
func (st *Store) CreateRun(ctx context.Context, orgID, userID uuid.UUID, query string) (*Run, error) {
	row := st.pool.QueryRow(ctx, `
		INSERT INTO agent_runs (user_id, org_id, query, status, current_step)
		VALUES ($1, $2, $3, 'running', 'starting')
		RETURNING `+runColumns,
		userID, orgID, query)
	return scanRun(row)
}

// GetRun fetches a run scoped to its organization.
func (st *Store) GetRun(ctx context.Context, orgID, id uuid.UUID) (*Run, error) {
	row := st.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM agent_runs WHERE id = $1 AND org_id = $2`,
		id, orgID)
	return scanRun(row)
}

// UpdateProgress records the current node and percent complete.
func (st *Store) UpdateProgress(ctx context.Context, id uuid.UUID, step string, percent float64) error {
	_, err := st.pool.Exec(ctx, `
		UPDATE agent_runs
		SET current_step = $2, progress = $3, updated_at = now()
		WHERE id = $1`,
		id, step, percent)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// CompleteRun stores the final results and marks the run completed.
func (st *Store) CompleteRun(ctx context.Context, id uuid.UUID, results *Results) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode run results: %w", err)
	}
	_, err = st.pool.Exec(ctx, `
		UPDATE agent_runs
		SET status = 'completed', progress = 100, current_step = 'done',
		    results = $2, updated_at = now()
		WHERE id = $1`,
		id, payload)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// FailRun records the error and marks the run failed.
func (st *Store) FailRun(ctx context.Context, id uuid.UUID, runErr error) error {
	_, err := st.pool.Exec(ctx, `
		UPDATE agent_runs
		SET status = 'failed', error = $2, updated_at = now()
		WHERE id = $1`,
		id, runErr.Error())
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}
