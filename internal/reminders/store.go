package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists scheduled_jobs.
type Store struct {
	db DB
}

// NewStore creates a new job store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Schedule inserts a pending job. The unique (kind, booking_id) index makes
// repeated calls for the same booking a no-op; created reports whether a row
// was written.
func (s *Store) Schedule(ctx context.Context, kind string, bookingID uuid.UUID, dueAt time.Time) (bool, error) {
	ct, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_jobs (id, kind, booking_id, due_at, status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (kind, booking_id) DO NOTHING`,
		uuid.New(), kind, bookingID, dueAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("reminders: schedule job: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ClaimDue leases up to limit jobs that are due, plus running jobs whose
// lease expired, and bumps their attempt counter. Concurrent workers skip
// rows another worker has locked.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error) {
	rows, err := s.db.Query(ctx, `
		WITH due AS (
			SELECT id FROM scheduled_jobs
			WHERE (status = 'pending' AND due_at <= $1)
			   OR (status = 'running' AND locked_until < $1)
			ORDER BY due_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE scheduled_jobs j
		SET status = 'running', attempts = j.attempts + 1, locked_until = $2, updated_at = $1
		FROM due
		WHERE j.id = due.id
		RETURNING j.id, j.kind, j.booking_id, j.due_at, j.status, j.attempts, j.locked_until, j.created_at, j.updated_at`,
		now.UTC(), now.Add(lease).UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("reminders: claim due: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// Finish records a terminal status for a claimed job.
func (s *Store) Finish(ctx context.Context, id uuid.UUID, status JobStatus, lastError string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scheduled_jobs
		SET status = $2, last_error = NULLIF($3, ''), locked_until = NULL, updated_at = now()
		WHERE id = $1`,
		id, string(status), lastError,
	)
	if err != nil {
		return fmt.Errorf("reminders: finish job: %w", err)
	}
	return nil
}

// Retry puts a claimed job back to pending with a new due time.
func (s *Store) Retry(ctx context.Context, id uuid.UUID, dueAt time.Time, lastError string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scheduled_jobs
		SET status = 'pending', due_at = $2, last_error = $3, locked_until = NULL, updated_at = now()
		WHERE id = $1`,
		id, dueAt.UTC(), lastError,
	)
	if err != nil {
		return fmt.Errorf("reminders: retry job: %w", err)
	}
	return nil
}

func scanJobs(rows pgx.Rows) ([]Job, error) {
	var result []Job
	for rows.Next() {
		var j Job
		var status string
		if err := rows.Scan(&j.ID, &j.Kind, &j.BookingID, &j.DueAt, &status, &j.Attempts, &j.LockedUntil, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("reminders: scan job: %w", err)
		}
		j.Status = JobStatus(status)
		result = append(result, j)
	}
	return result, rows.Err()
}
