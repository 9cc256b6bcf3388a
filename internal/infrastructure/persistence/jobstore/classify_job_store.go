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

// ClassifyJobStore is the Postgres-backed queue for the classify stage.
type ClassifyJobStore struct {
	db *sql.DB
}

func NewClassifyJobStore(db *sql.DB) *ClassifyJobStore {
	return &ClassifyJobStore{db: db}
}

// Enqueue inserts one classify job per repo, unless a job already exists
// for that repo_id. inserted reports whether a new row was created.
func (s *ClassifyJobStore) Enqueue(ctx context.Context, repoID int64, fullName string, maxAttempts int) (inserted bool, err error) {
	var id int64
	scanErr := s.db.QueryRowContext(ctx, `
		INSERT INTO classify_jobs (repo_id, full_name, max_attempts)
		VALUES ($1, $2, $3)
		ON CONFLICT (repo_id) DO NOTHING
		RETURNING id
	`, repoID, fullName, maxAttempts).Scan(&id)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return false, nil
	}
	if scanErr != nil {
		return false, fmt.Errorf("jobstore: enqueue classify job: %w", scanErr)
	}
	return true, nil
}

// AcquireNext claims the oldest eligible classify job. Unlike the readme
// stage, classify jobs are not partitioned across workers: any worker may
// take any job, since classification has no per-repo rate limit to spread.
func (s *ClassifyJobStore) AcquireNext(ctx context.Context) (job *entity.ClassifyJob, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE classify_jobs
		SET status = 'running',
		    started_at = now(),
		    updated_at = now(),
		    attempts = CASE WHEN status = 'pending' THEN attempts + 1 ELSE attempts END
		WHERE id = (
			SELECT id FROM classify_jobs
			WHERE (status = 'pending' AND attempts < max_attempts) OR status = 'throttled'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, status, attempts, max_attempts, created_at, updated_at, started_at, completed_at, error_message,
		          repo_id, full_name
	`)

	j, scanErr := scanClassifyJob(row)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, false, nil
	}
	if scanErr != nil {
		return nil, false, fmt.Errorf("jobstore: acquire classify job: %w", scanErr)
	}
	return j, true, nil
}

func (s *ClassifyJobStore) MarkDone(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE classify_jobs SET status = 'done', completed_at = now(), updated_at = now(), error_message = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("jobstore: mark classify job done: %w", err)
	}
	return nil
}

func (s *ClassifyJobStore) MarkThrottled(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE classify_jobs
		SET status = 'throttled', started_at = NULL, updated_at = now(), error_message = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("jobstore: mark classify job throttled: %w", err)
	}
	return nil
}

// MarkFailed reverts the job to pending for another attempt, or to failed if
// its retry budget is exhausted. force skips the retry budget entirely and
// fails the job immediately, for KindFatal errors.
func (s *ClassifyJobStore) MarkFailed(ctx context.Context, id int64, reason string, force bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE classify_jobs
		SET status = CASE WHEN $3 OR attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
		    started_at = NULL,
		    updated_at = now(),
		    completed_at = CASE WHEN $3 OR attempts >= max_attempts THEN now() ELSE NULL END,
		    error_message = $2
		WHERE id = $1
	`, id, reason, force)
	if err != nil {
		return fmt.Errorf("jobstore: mark classify job failed: %w", err)
	}
	return nil
}

// Release reverts a job this worker still holds as running back to pending,
// without spending an attempt. It is a no-op if the job already moved to a
// terminal state, so a worker's Cleanup can call it unconditionally.
func (s *ClassifyJobStore) Release(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE classify_jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("jobstore: release classify job: %w", err)
	}
	return nil
}

// CountActive reports how many classify jobs remain pending, running, or
// throttled, for RunWorker's auto_exit check.
func (s *ClassifyJobStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM classify_jobs WHERE status IN ('pending', 'running', 'throttled')
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jobstore: count active classify jobs: %w", err)
	}
	return n, nil
}

func (s *ClassifyJobStore) RecoverStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE classify_jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE status = 'running' AND started_at < $1
	`, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("jobstore: recover stale classify jobs: %w", err)
	}
	return res.RowsAffected()
}


func scanClassifyJob(row *sql.Row) (*entity.ClassifyJob, error) {
	var j entity.ClassifyJob
	var status string
	err := row.Scan(
		&j.ID, &status, &j.Attempts, &j.MaxAttempts, &j.CreatedAt, &j.UpdatedAt,
		&j.StartedAt, &j.CompletedAt, &j.ErrorMessage,
		&j.RepoID, &j.FullName,
	)
	if err != nil {
		return nil, err
	}
	j.Status = valueobject.JobStatus(status)
	return &j, nil
}
