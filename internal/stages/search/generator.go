// Package search implements the search stage: querying the external hosting
// API for repositories pushed within a date window and ingesting the
// results.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/harvestlab/repoharvester/internal/domain/entity"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
)

// Generator bootstraps search_jobs rows: one job per window
// [from, from+WindowDays] (To clamped to EndDate), with from starting at
// StartDate and each next window starting one day after the previous To,
// for every from before EndDate. Enqueue is idempotent per (bucket, window), so
// Generate is safe to call on every orchestrator tick; a window already
// enqueued by a prior run is counted as skipped rather than re-inserted.
type Generator struct {
	store         *jobstore.SearchJobStore
	bucketPrefix  string
	queryTemplate string
	startDate     time.Time
	endDate       time.Time
	windowDays    int
	maxAttempts   int
}

func NewGenerator(store *jobstore.SearchJobStore, bucketPrefix, queryTemplate string, startDate, endDate time.Time, windowDays, maxAttempts int) *Generator {
	return &Generator{
		store:         store,
		bucketPrefix:  bucketPrefix,
		queryTemplate: queryTemplate,
		startDate:     startDate,
		endDate:       endDate,
		windowDays:    windowDays,
		maxAttempts:   maxAttempts,
	}
}

func (g *Generator) Generate(ctx context.Context) (inserted, skipped int, err error) {
	if g.windowDays <= 0 {
		return 0, 0, fmt.Errorf("search: windowDays must be positive, got %d", g.windowDays)
	}

	windowSpan := time.Duration(g.windowDays) * 24 * time.Hour
	step := windowSpan + 24*time.Hour

	for from := g.startDate; from.Before(g.endDate); from = from.Add(step) {
		to := from.Add(windowSpan)
		if to.After(g.endDate) {
			to = g.endDate
		}

		window := entity.DateWindow{From: from, To: to}
		bucket := bucketFor(g.bucketPrefix, from)

		ok, enqErr := g.store.Enqueue(ctx, bucket, g.queryTemplate, window, g.maxAttempts)
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

// bucketFor names the quarterly bucket a window's jobs and ingested repos
// are tagged with, keyed by the window's start date: {prefix}_{year}_q{n}.
func bucketFor(prefix string, from time.Time) string {
	quarter := (int(from.Month())-1)/3 + 1
	return fmt.Sprintf("%s_%d_q%d", prefix, from.Year(), quarter)
}
