package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harvestlab/repoharvester/internal/domain/entity"
	"github.com/harvestlab/repoharvester/internal/domain/valueobject"
)

// SearchJobStore is the Postgres-backed queue for the search stage.
type SearchJobStore struct {
	db *sql.DB
}

func NewSearchJobStore(db *sql.DB) *SearchJobStore {
	return &SearchJobStore{db: db}
}

// Enqueue inserts one job for (bucket, window), unless one already exists
// for that natural key, in which case it is a no-op. inserted reports
// whether a new row was created, letting generators count inserted vs
// skipped per P4 (generator idempotence).
func (s *SearchJobStore) Enqueue(ctx context.Context, bucket, queryTemplate string, window entity.DateWindow, maxAttempts int) (inserted bool, err error) {
	var id int64
	scanErr := s.db.QueryRowContext(ctx, `
		INSERT INTO search_jobs (bucket, query_template, window_from, window_to, max_attempts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bucket, window_from, window_to) DO NOTHING
		RETURNING id
	`, bucket, queryTemplate, window.From, window.To, maxAttempts).Scan(&id)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return false, nil
	}
	if scanErr != nil {
		return false, fmt.Errorf("jobstore: enqueue search job: %w", scanErr)
	}
	return true, nil
}

// AcquireNext atomically claims the oldest eligible job: pending jobs with
// retry budget left, or throttled jobs (which never spent an attempt).
// Returns ok=false with no error when the queue is empty.
func (s *SearchJobStore) AcquireNext(ctx context.Context) (job *entity.SearchJob, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE search_jobs
		SET status = 'running',
		    started_at = now(),
		    updated_at = now(),
		    attempts = CASE WHEN status = 'pending' THEN attempts + 1 ELSE attempts END
		WHERE id = (
			SELECT id FROM search_jobs
			WHERE (status = 'pending' AND attempts < max_attempts) OR status = 'throttled'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, status, attempts, max_attempts, created_at, updated_at, started_at, completed_at, error_message,
		          bucket, query_template, window_from, window_to, repos_count
	`)

	j, scanErr := scanSearchJob(row)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, false, nil
	}
	if scanErr != nil {
		return nil, false, fmt.Errorf("jobstore: acquire search job: %w", scanErr)
	}
	return j, true, nil
}

// MarkDone marks a job complete and records how many repos it produced.
func (s *SearchJobStore) MarkDone(ctx context.Context, id int64, reposCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE search_jobs
		SET status = 'done', completed_at = now(), updated_at = now(), repos_count = $2, error_message = NULL
		WHERE id = $1
	`, id, reposCount)
	if err != nil {
		return fmt.Errorf("jobstore: mark search job done: %w", err)
	}
	return nil
}

// MarkThrottled reverts a job to the throttled status without spending an
// attempt, per the rate-limit resolution.
func (s *SearchJobStore) MarkThrottled(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE search_jobs
		SET status = 'throttled', started_at = NULL, updated_at = now(), error_message = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("jobstore: mark search job throttled: %w", err)
	}
	return nil
}

// MarkFailed reverts the job to pending for another attempt, or to failed if
// its retry budget is exhausted. force skips the retry budget entirely and
// fails the job immediately, for KindFatal errors.
func (s *SearchJobStore) MarkFailed(ctx context.Context, id int64, reason string, force bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE search_jobs
		SET status = CASE WHEN $3 OR attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
		    started_at = NULL,
		    updated_at = now(),
		    completed_at = CASE WHEN $3 OR attempts >= max_attempts THEN now() ELSE NULL END,
		    error_message = $2
		WHERE id = $1
	`, id, reason, force)
	if err != nil {
		return fmt.Errorf("jobstore: mark search job failed: %w", err)
	}
	return nil
}

// Release reverts a job this worker still holds as running back to pending,
// without spending an attempt. It is a no-op if the job already moved to a
// terminal state, so a worker's Cleanup can call it unconditionally.
func (s *SearchJobStore) Release(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE search_jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("jobstore: release search job: %w", err)
	}
	return nil
}

// CountActive reports how many search jobs remain pending, running, or
// throttled, for RunWorker's auto_exit check.
func (s *SearchJobStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM search_jobs WHERE status IN ('pending', 'running', 'throttled')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jobstore: count active search jobs: %w", err)
	}
	return n, nil
}

// RecoverStale resets jobs stuck in running (crashed worker) back to
// pending without spending an attempt.
func (s *SearchJobStore) RecoverStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE search_jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE status = 'running' AND started_at < $1
	`, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("jobstore: recover stale search jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanSearchJob(row *sql.Row) (*entity.SearchJob, error) {
	var j entity.SearchJob
	var status string
	err := row.Scan(
		&j.ID, &status, &j.Attempts, &j.MaxAttempts, &j.CreatedAt, &j.UpdatedAt,
		&j.StartedAt, &j.CompletedAt, &j.ErrorMessage,
		&j.Bucket, &j.QueryTemplate, &j.Window.From, &j.Window.To, &j.ReposCount,
	)
	if err != nil {
		return nil, err
	}
	j.Status = valueobject.JobStatus(status)
	return &j, nil
}
