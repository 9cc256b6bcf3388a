package readme

import (
	"context"
	"fmt"

	domainerrors "github.com/harvestlab/repoharvester/internal/domain/errors"
	"github.com/harvestlab/repoharvester/internal/domain/service"
	"github.com/harvestlab/repoharvester/internal/engine"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/repostore"
)

// Worker claims and processes readme_jobs rows. It is partitioned across
// worker processes by repo_id modulo the total worker count, so README
// fetches for a given repo are always attempted by the same process.
type Worker struct {
	jobs         *jobstore.ReadmeJobStore
	repos        *repostore.RepoStore
	client       service.RepoClient
	archive      service.ArchiveStore
	logger       service.Logger
	workerID     int
	totalWorkers int
	holder       engine.JobHolder
}

func NewWorker(jobs *jobstore.ReadmeJobStore, repos *repostore.RepoStore, client service.RepoClient, archive service.ArchiveStore, logger service.Logger, workerID, totalWorkers int) *Worker {
	return &Worker{jobs: jobs, repos: repos, client: client, archive: archive, logger: logger, workerID: workerID, totalWorkers: totalWorkers}
}

func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, ok, err := w.jobs.AcquireNext(ctx, w.workerID, w.totalWorkers)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	w.holder.Hold(job.ID)

	log := w.logger.With("readmeJobID", job.ID, "repoID", job.RepoID)

	content, found, err := w.client.GetReadme(ctx, job.FullName)
	if err != nil {
		switch domainerrors.ClassifyErr(err) {
		case domainerrors.KindRateLimited:
			log.Warn("readme job throttled", "err", err)
			if markErr := w.jobs.MarkThrottled(ctx, job.ID, err.Error()); markErr != nil {
				return true, markErr
			}
			w.holder.Release()
			engine.WaitForRateLimit(ctx, err)
		case domainerrors.KindFatal:
			log.Error("readme job failed fatally", "err", err)
			if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error(), true); markErr != nil {
				return true, markErr
			}
			w.holder.Release()
		default:
			log.Error("readme job failed", "err", err)
			if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error(), false); markErr != nil {
				return true, markErr
			}
			w.holder.Release()
		}
		return true, nil
	}

	if !found {
		if err := w.repos.SetNoReadme(ctx, job.RepoID); err != nil {
			return true, err
		}
		if err := w.jobs.MarkNoReadme(ctx, job.ID); err != nil {
			return true, err
		}
		w.holder.Release()
		return true, nil
	}

	uri := fmt.Sprintf("readme/%s.md", job.FullName)
	if err := w.archive.PutContent(ctx, uri, []byte(content), "text/markdown"); err != nil {
		archErr := domainerrors.Transient(fmt.Errorf("archive readme: %w", err))
		log.Error("readme archival failed", "err", archErr)
		if markErr := w.jobs.MarkFailed(ctx, job.ID, archErr.Error(), false); markErr != nil {
			return true, markErr
		}
		w.holder.Release()
		return true, nil
	}

	if err := w.repos.SetReadme(ctx, job.RepoID, content, uri); err != nil {
		return true, err
	}
	if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
		return true, err
	}
	w.holder.Release()

	return true, nil
}

func (w *Worker) RecoverStale(ctx context.Context) (int64, error) {
	return w.jobs.RecoverStale(ctx)
}

func (w *Worker) ActiveCount(ctx context.Context) (int, error) {
	return w.jobs.CountActive(ctx, w.workerID, w.totalWorkers)
}

// Cleanup releases any job this worker still holds back to pending, so a
// crash or shutdown mid-process doesn't leave it stuck in running.
func (w *Worker) Cleanup(ctx context.Context) error {
	id, ok := w.holder.Held()
	if !ok {
		return nil
	}
	if err := w.jobs.Release(ctx, id); err != nil {
		return err
	}
	w.holder.Release()
	return nil
}
