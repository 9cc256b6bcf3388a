package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	domainerrors "github.com/harvestlab/repoharvester/internal/domain/errors"
	"github.com/harvestlab/repoharvester/internal/domain/entity"
	"github.com/harvestlab/repoharvester/internal/domain/service"
	"github.com/harvestlab/repoharvester/internal/engine"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/repostore"
)

const (
	fromDatePlaceholder = "{from_date}"
	toDatePlaceholder   = "{to_date}"
)

// Worker claims and processes search_jobs rows.
type Worker struct {
	jobs            *jobstore.SearchJobStore
	repos           *repostore.RepoStore
	client          service.RepoClient
	archive         service.ArchiveStore
	logger          service.Logger
	source          string
	pipelineVersion string
	holder          engine.JobHolder
}

func NewWorker(jobs *jobstore.SearchJobStore, repos *repostore.RepoStore, client service.RepoClient, archive service.ArchiveStore, logger service.Logger, source, pipelineVersion string) *Worker {
	return &Worker{jobs: jobs, repos: repos, client: client, archive: archive, logger: logger, source: source, pipelineVersion: pipelineVersion}
}

func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, ok, err := w.jobs.AcquireNext(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	w.holder.Hold(job.ID)

	log := w.logger.With("searchJobID", job.ID, "bucket", job.Bucket)

	if procErr := w.process(ctx, job); procErr != nil {
		switch domainerrors.ClassifyErr(procErr) {
		case domainerrors.KindRateLimited:
			log.Warn("search job throttled", "err", procErr)
			if err := w.jobs.MarkThrottled(ctx, job.ID, procErr.Error()); err != nil {
				return true, err
			}
			w.holder.Release()
			engine.WaitForRateLimit(ctx, procErr)
		case domainerrors.KindFatal:
			log.Error("search job failed fatally", "err", procErr)
			if err := w.jobs.MarkFailed(ctx, job.ID, procErr.Error(), true); err != nil {
				return true, err
			}
			w.holder.Release()
		default:
			log.Error("search job failed", "err", procErr)
			if err := w.jobs.MarkFailed(ctx, job.ID, procErr.Error(), false); err != nil {
				return true, err
			}
			w.holder.Release()
		}
		return true, nil
	}

	w.holder.Release()
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *entity.SearchJob) error {
	query := buildQuery(job.QueryTemplate, job.Window)

	total := 0
	page := 1
	for {
		result, err := w.client.Search(ctx, query, page)
		if err != nil {
			return err
		}

		for i, raw := range result.Raw {
			path := fmt.Sprintf("search/%s/job-%d/page-%d-%d.json", job.Bucket, job.ID, page, i)
			if archErr := w.archive.PutContent(ctx, path, raw, "application/json"); archErr != nil {
				return domainerrors.Transient(fmt.Errorf("archive search snapshot: %w", archErr))
			}

			repos := make([]entity.Repo, 0, len(result.Items))
			for _, item := range result.Items {
				if !isValidRepo(item) {
					continue
				}
				repos = append(repos, mapRepo(w.source, w.pipelineVersion, item, job, path))
			}

			inserted, err := w.repos.BulkInsert(ctx, repos)
			if err != nil {
				return domainerrors.Transient(fmt.Errorf("bulk insert repos: %w", err))
			}
			total += inserted
		}

		if !result.HasMore {
			break
		}
		page = result.NextPage
	}

	return w.jobs.MarkDone(ctx, job.ID, total)
}

// buildQuery substitutes the literal {from_date}/{to_date} placeholders the
// query template is documented to carry (SPEC_FULL.md §4.7 step 1) with the
// job's window bounds.
func buildQuery(template string, window entity.DateWindow) string {
	from := window.From.Format("2006-01-02")
	to := window.To.Format("2006-01-02")
	return strings.NewReplacer(fromDatePlaceholder, from, toDatePlaceholder, to).Replace(template)
}

const minSizeKB = 50

// isValidRepo applies the repo-level ingestion filter: large enough to be a
// real project, not archived, and pushed recently enough to still be live.
func isValidRepo(r service.SearchResult) bool {
	if r.FullName == "" {
		return false
	}
	if r.Archived {
		return false
	}
	if r.SizeKB < minSizeKB {
		return false
	}
	if time.Since(r.PushedAt) > 30*24*time.Hour {
		return false
	}
	return true
}

func mapRepo(source, pipelineVersion string, r service.SearchResult, job *entity.SearchJob, snapshotURI string) entity.Repo {
	now := time.Now()
	return entity.Repo{
		Source:   source,
		RepoID:   r.ID,
		FullName: r.FullName,
		Owner:    r.Owner,
		URL:      r.HTMLURL,

		Stars:     r.Stars,
		Forks:     r.Forks,
		Language:  r.Language,
		IsFork:    r.Fork,
		HasTopics: len(r.Topics) > 0,

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		PushedAt:  r.PushedAt,

		SearchSnapshotURI: snapshotURI,
		SearchSnapshot: entity.SearchSnapshot{
			SizeKB:   r.SizeKB,
			Stars:    r.Stars,
			Language: r.Language,
		},

		IngestMeta: entity.IngestMeta{
			Bucket:          job.Bucket,
			Query:           job.QueryTemplate,
			IngestedAt:      now,
			PipelineVersion: pipelineVersion,
		},
	}
}

func (w *Worker) RecoverStale(ctx context.Context) (int64, error) {
	return w.jobs.RecoverStale(ctx)
}

func (w *Worker) ActiveCount(ctx context.Context) (int, error) {
	return w.jobs.CountActive(ctx)
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
