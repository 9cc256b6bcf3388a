// Package readme implements the readme stage: fetching each ingested repo's
// README and recording it (or its absence) on the repo row.
package readme

import (
	"context"

	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/repostore"
)

const batchSize = 500

// Generator enqueues a readme_jobs row for every repo that has not yet had
// its README fetched and does not already have a pending job.
type Generator struct {
	jobs        *jobstore.ReadmeJobStore
	repos       *repostore.RepoStore
	maxAttempts int
}

func NewGenerator(jobs *jobstore.ReadmeJobStore, repos *repostore.RepoStore, maxAttempts int) *Generator {
	return &Generator{jobs: jobs, repos: repos, maxAttempts: maxAttempts}
}

func (g *Generator) Generate(ctx context.Context) (inserted, skipped int, err error) {
	// ListNeedingReadme already excludes repos with a live readme_jobs row;
	// the unique constraint on repo_id is the hard backstop in case a job
	// exists but was filtered out by a stale read.
	candidates, err := g.repos.ListNeedingReadme(ctx, batchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, r := range candidates {
		ok, enqErr := g.jobs.Enqueue(ctx, r.RepoID, r.FullName, g.maxAttempts)
		if enqErr != nil {
			return inserted, skipped, enqErr
		}
		if ok {
			inserted++
		} else {
			skipped++
		}
	}

	return inserted, skipped, nil
}
