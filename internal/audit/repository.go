package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

// ErrRunNotFound is returned when an archived run does not exist
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one archived run
type RunRecord struct {
	RunID      string          `json:"run_id"`
	Date       string          `json:"date"`
	Status     string          `json:"status"`
	Confidence int             `json:"confidence"`
	CanPublish bool            `json:"can_publish"`
	Manifest   json.RawMessage `json:"manifest"`
	QA         json.RawMessage `json:"qa_report,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewRunRecord builds the row for a finished run; qa may be nil (gate did not run)
func NewRunRecord(m *contracts.RunManifest, qa *Report) (*RunRecord, error) {
	manifest, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	rec := &RunRecord{
		RunID:    m.RunID,
		Date:     m.Date,
		Status:   "NONE",
		Manifest: manifest,
	}
	if qa != nil {
		raw, err := json.Marshal(qa)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal qa report: %w", err)
		}
		rec.QA = raw
		rec.Status = qa.Status
		rec.Confidence = qa.Confidence
		rec.CanPublish = qa.CanPublish
	}
	return rec, nil
}

// Archive stores and lists finished runs
type Archive interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Repository handles run archive persistence
// ⭐ SSOT: agrimacro.runs 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new run repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS agrimacro;
	CREATE TABLE IF NOT EXISTS agrimacro.runs (
		run_id      TEXT PRIMARY KEY,
		date        DATE NOT NULL,
		status      TEXT NOT NULL,
		confidence  INTEGER NOT NULL DEFAULT 0,
		can_publish BOOLEAN NOT NULL DEFAULT FALSE,
		manifest    JSONB NOT NULL,
		qa_report   JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS runs_date_idx ON agrimacro.runs (date DESC);
`

// EnsureSchema creates the archive table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create run archive schema: %w", err)
	}
	return nil
}

// SaveRun upserts a run
func (r *Repository) SaveRun(ctx context.Context, rec *RunRecord) error {
	query := `
		INSERT INTO agrimacro.runs (
			run_id, date, status, confidence, can_publish, manifest, qa_report
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			can_publish = EXCLUDED.can_publish,
			manifest = EXCLUDED.manifest,
			qa_report = EXCLUDED.qa_report
	`

	var qa []byte
	if len(rec.QA) > 0 {
		qa = rec.QA
	}

	_, err := r.pool.Exec(ctx, query,
		rec.RunID, rec.Date, rec.Status, rec.Confidence, rec.CanPublish, []byte(rec.Manifest), qa,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// GetRun retrieves one run by id
func (r *Repository) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `
		SELECT run_id, date::text, status, confidence, can_publish, manifest, qa_report, created_at
		FROM agrimacro.runs
		WHERE run_id = $1
	`

	rec, err := scanRun(r.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	query := `
		SELECT run_id, date::text, status, confidence, can_publish, manifest, qa_report, created_at
		FROM agrimacro.runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var rec RunRecord
	var manifest, qa []byte
	if err := row.Scan(&rec.RunID, &rec.Date, &rec.Status, &rec.Confidence, &rec.CanPublish,
		&manifest, &qa, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Manifest = manifest
	if len(qa) > 0 {
		rec.QA = qa
	}
	return &rec, nil
}
