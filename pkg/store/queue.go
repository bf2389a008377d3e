package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lineagekit/discovery/pkg/models"
)

// ErrNoSessionsAvailable indicates no pending queue entries are available to claim.
var ErrNoSessionsAvailable = errors.New("no queue entries available")

// EnqueueJob inserts one pending queue entry for job_id.
func (s *Store) EnqueueJob(ctx context.Context, jobID string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_queue (id, job_id, status, attempts, created_at, updated_at)
		VALUES ($1, $2, 'pending', 0, now(), now())`,
		id, jobID)
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// ClaimNextQueueEntry atomically claims the oldest pending queue entry,
// transitioning it to processing. It is the single-flight primitive: the
// conditional UPDATE is scoped by a SELECT ... FOR UPDATE SKIP LOCKED
// subquery so concurrent workers never claim the same row twice.
func (s *Store) ClaimNextQueueEntry(ctx context.Context) (*models.QueueEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE job_queue
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id = (
			SELECT id FROM job_queue
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_id, status, attempts, last_error, created_at, updated_at`)

	var e models.QueueEntry
	var lastErr sql.NullString
	var statusStr string
	err := row.Scan(&e.ID, &e.JobID, &statusStr, &e.Attempts, &lastErr, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSessionsAvailable
		}
		return nil, fmt.Errorf("claim next queue entry: %w", err)
	}
	e.Status = models.QueueStatus(statusStr)
	if lastErr.Valid {
		e.LastError = &lastErr.String
	}
	return &e, nil
}

// CompleteQueueEntry marks a queue entry as completed (terminal).
func (s *Store) CompleteQueueEntry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_queue SET status = 'completed', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("complete queue entry: %w", err)
	}
	return nil
}

// FailQueueEntry marks a queue entry as failed (terminal) with a reason.
func (s *Store) FailQueueEntry(ctx context.Context, id, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_queue SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1`,
		id, reason)
	if err != nil {
		return fmt.Errorf("fail queue entry: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending queue entries.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM job_queue WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// ActiveJobCount returns the number of jobs whose queue entry is processing.
func (s *Store) ActiveJobCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM job_queue WHERE status = 'processing'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("active job count: %w", err)
	}
	return n, nil
}

// OrphanedQueueEntries returns queue entries stuck in "processing" whose
// owning job hasn't been touched since before threshold. The scan keys off
// job_run.updated_at because the queue schema carries no heartbeat column
// of its own; workers keep it fresh via TouchJob.
func (s *Store) OrphanedQueueEntries(ctx context.Context, threshold time.Duration) ([]*models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.job_id, q.status, q.attempts, q.last_error, q.created_at, q.updated_at
		FROM job_queue q
		JOIN job_run j ON j.id = q.job_id
		WHERE q.status = 'processing' AND j.updated_at < $1`,
		time.Now().Add(-threshold))
	if err != nil {
		return nil, fmt.Errorf("orphaned queue entries: %w", err)
	}
	defer rows.Close()

	var out []*models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		var lastErr sql.NullString
		var statusStr string
		if err := rows.Scan(&e.ID, &e.JobID, &statusStr, &e.Attempts, &lastErr, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan orphaned queue entry: %w", err)
		}
		e.Status = models.QueueStatus(statusStr)
		if lastErr.Valid {
			e.LastError = &lastErr.String
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
