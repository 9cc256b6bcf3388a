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

// ReadmeJobStore is the Postgres-backed queue for the readme stage.
type ReadmeJobStore struct {
	db *sql.DB
}

func NewReadmeJobStore(db *sql.DB) *ReadmeJobStore {
	return &ReadmeJobStore{db: db}
}

// Enqueue inserts one readme job per repo, unless a job already exists for
// that repo_id (the unique constraint backstops ListNeedingReadme's dedup
// query so the generator is safe to call repeatedly). inserted reports
// whether a new row was created.
func (s *ReadmeJobStore) Enqueue(ctx context.Context, repoID int64, fullName string, maxAttempts int) (inserted bool, err error) {
	var id int64
	scanErr := s.db.QueryRowContext(ctx, `
		INSERT INTO readme_jobs (repo_id, full_name, max_attempts)
		VALUES ($1, $2, $3)
		ON CONFLICT (repo_id) DO NOTHING
		RETURNING id
	`, repoID, fullName, maxAttempts).Scan(&id)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return false, nil
	}
	if scanErr != nil {
		return false, fmt.Errorf("jobstore: enqueue readme job: %w", scanErr)
	}
	return true, nil
}

// AcquireNext claims the oldest eligible job assigned to this worker's
// partition: repo_id % totalWorkers == workerID-1, per the README stage's
// partitioning rule.
func (s *ReadmeJobStore) AcquireNext(ctx context.Context, workerID, totalWorkers int) (job *entity.ReadmeJob, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE readme_jobs
		SET status = 'running',
		    started_at = now(),
		    updated_at = now(),
		    attempts = CASE WHEN status = 'pending' THEN attempts + 1 ELSE attempts END
		WHERE id = (
			SELECT id FROM readme_jobs
			WHERE ((status = 'pending' AND attempts < max_attempts) OR status = 'throttled')
			  AND repo_id % $1 = $2
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, status, attempts, max_attempts, created_at, updated_at, started_at, completed_at, error_message,
		          repo_id, full_name
	`, totalWorkers, workerID-1)

	j, scanErr := scanReadmeJob(row)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return nil, false, nil
	}
	if scanErr != nil {
		return nil, false, fmt.Errorf("jobstore: acquire readme job: %w", scanErr)
	}
	return j, true, nil
}

func (s *ReadmeJobStore) MarkDone(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE readme_jobs SET status = 'done', completed_at = now(), updated_at = now(), error_message = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("jobstore: mark readme job done: %w", err)
	}
	return nil
}

// MarkNoReadme is the terminal, non-retried outcome for a repo with no
// README file. It is not a failure: the repo is simply missing the asset.
func (s *ReadmeJobStore) MarkNoReadme(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE readme_jobs SET status = 'no_readme', completed_at = now(), updated_at = now(), error_message = 'No README found'
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("jobstore: mark readme job no_readme: %w", err)
	}
	return nil
}

func (s *ReadmeJobStore) MarkThrottled(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE readme_jobs
		SET status = 'throttled', started_at = NULL, updated_at = now(), error_message = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("jobstore: mark readme job throttled: %w", err)
	}
	return nil
}

// MarkFailed reverts the job to pending for another attempt, or to failed if
// its retry budget is exhausted. force skips the retry budget entirely and
// fails the job immediately, for KindFatal errors.
func (s *ReadmeJobStore) MarkFailed(ctx context.Context, id int64, reason string, force bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE readme_jobs
		SET status = CASE WHEN $3 OR attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
		    started_at = NULL,
		    updated_at = now(),
		    completed_at = CASE WHEN $3 OR attempts >= max_attempts THEN now() ELSE NULL END,
		    error_message = $2
		WHERE id = $1
	`, id, reason, force)
	if err != nil {
		return fmt.Errorf("jobstore: mark readme job failed: %w", err)
	}
	return nil
}

// Release reverts a job this worker still holds as running back to pending,
// without spending an attempt. It is a no-op if the job already moved to a
// terminal state, so a worker's Cleanup can call it unconditionally.
func (s *ReadmeJobStore) Release(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE readme_jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("jobstore: release readme job: %w", err)
	}
	return nil
}

// CountActive reports how many readme jobs in this worker's partition
// (repo_id % totalWorkers == workerID-1) remain pending, running, or
// throttled, for RunWorker's auto_exit check.
func (s *ReadmeJobStore) CountActive(ctx context.Context, workerID, totalWorkers int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM readme_jobs
		WHERE status IN ('pending', 'running', 'throttled') AND repo_id % $1 = $2
	`, totalWorkers, workerID-1).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("jobstore: count active readme jobs: %w", err)
	}
	return n, nil
}

func (s *ReadmeJobStore) RecoverStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE readme_jobs
		SET status = 'pending', started_at = NULL, updated_at = now()
		WHERE status = 'running' AND started_at < $1
	`, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("jobstore: recover stale readme jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanReadmeJob(row *sql.Row) (*entity.ReadmeJob, error) {
	var j entity.ReadmeJob
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
