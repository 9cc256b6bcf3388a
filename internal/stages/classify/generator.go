// Package classify implements the classify stage: running the LLM over each
// repo's README to determine whether it is a library and which category it
// belongs to.
package classify

import (
	"context"

	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/repostore"
)

const batchSize = 500

// Generator enqueues a classify_jobs row for every repo whose README has
// been fetched but that has not yet been classified.
type Generator struct {
	jobs        *jobstore.ClassifyJobStore
	repos       *repostore.RepoStore
	maxAttempts int
}

func NewGenerator(jobs *jobstore.ClassifyJobStore, repos *repostore.RepoStore, maxAttempts int) *Generator {
	return &Generator{jobs: jobs, repos: repos, maxAttempts: maxAttempts}
}

func (g *Generator) Generate(ctx context.Context) (inserted, skipped int, err error) {
	candidates, err := g.repos.ListNeedingClassification(ctx, batchSize)
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
