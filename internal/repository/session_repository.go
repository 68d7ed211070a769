package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prepview/prepview-backend/internal/model"
)

// ErrNoRows is returned when a lookup matches nothing.
var ErrNoRows = errors.New("no rows found")

// SessionRepository persists completed sessions. Live sessions never touch
// the database; a row appears only when the report worker drains the
// completion queue.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Upsert writes one completed session row. Re-running the same payload is
// harmless: the report was compiled once and does not change.
func (r *SessionRepository) Upsert(ctx context.Context, id uuid.UUID, overallScore float64, report []byte, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, phase, overall_score, report, completed_at)
		 VALUES ($1, 'completed', $2, $3::jsonb, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET phase = 'completed',
		     overall_score = EXCLUDED.overall_score,
		     report = EXCLUDED.report,
		     completed_at = EXCLUDED.completed_at`,
		id, overallScore, report, completedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// BulkUpsert writes a batch of completed sessions in one statement using
// UNNEST. reports carries raw JSON, one entry per id.
func (r *SessionRepository) BulkUpsert(ctx context.Context, ids []uuid.UUID, scores []float64, reports []string, completedAts []time.Time) error {
	query := `
		INSERT INTO sessions (id, phase, overall_score, report, completed_at)
		SELECT u.id, 'completed', u.score, u.report::jsonb, u.completed_at
		FROM UNNEST(
			$1::uuid[],
			$2::float8[],
			$3::text[],
			$4::timestamptz[]
		) AS u (id, score, report, completed_at)
		ON CONFLICT (id) DO UPDATE
		SET phase = 'completed',
		    overall_score = EXCLUDED.overall_score,
		    report = EXCLUDED.report,
		    completed_at = EXCLUDED.completed_at
	`
	_, err := r.pool.Exec(ctx, query, ids, scores, reports, completedAts)
	return err
}

// GetReport loads a persisted report. Used as the fallback after the live
// session was evicted from memory.
func (r *SessionRepository) GetReport(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT report FROM sessions WHERE id = $1 AND report IS NOT NULL`,
		id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query report: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode stored report: %w", err)
	}
	return &report, nil
}
