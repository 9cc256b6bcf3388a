// Package engine provides the stage-agnostic job-processing loop shared by
// the search, readme, and classify stages: a Generator that seeds work, a
// Worker that claims and processes one job at a time, driven by RunWorker,
// and an Orchestrator that runs stale-job recovery and leader-lock-gated
// generation in the background alongside that loop.
package engine

import (
	"context"
	"fmt"
	"time"
)

// Generator seeds new jobs into a stage's queue. It is invoked by the
// Orchestrator, gated by the leader lock, so only one process per pipeline
// generates jobs even when many worker processes start concurrently.
type Generator interface {
	// Generate enqueues any new work that should exist right now. It must be
	// safe to call repeatedly: a generator observes current state (e.g.
	// which repos still need a README) and enqueues one row per candidate;
	// candidates that already have a job row are reported as skipped rather
	// than erroring (P4, generator idempotence).
	Generate(ctx context.Context) (inserted, skipped int, err error)
}

// Worker claims and processes one job at a time from a stage's queue.
type Worker interface {
	// ProcessOne claims the next eligible job and processes it to
	// completion. ok is false when the queue had nothing to claim.
	ProcessOne(ctx context.Context) (ok bool, err error)

	// RecoverStale resets jobs stuck in "running" back to pending.
	RecoverStale(ctx context.Context) (recovered int64, err error)

	// ActiveCount reports how many jobs remain pending or running in this
	// worker's view (the README stage scopes this to its own partition;
	// search/classify report the global count), for RunWorker's auto_exit
	// check.
	ActiveCount(ctx context.Context) (int, error)

	// Cleanup releases any job this worker currently holds back to
	// pending. It is guaranteed to run on every RunWorker exit path and
	// must be a no-op when no job is held.
	Cleanup(ctx context.Context) error
}

// cleanupTimeout bounds the fresh context RunWorker gives Cleanup on exit,
// since the loop's own ctx is already cancelled by then.
const cleanupTimeout = 10 * time.Second

// RunWorker drives w in a loop until ctx is cancelled. When a poll finds
// nothing to claim, it sleeps pollInterval before trying again, tracking
// consecutive empty polls for callers that want to log or adjust backoff.
// When autoExit is true, an empty poll additionally checks w.ActiveCount
// and returns once it hits zero, rather than polling forever. A panic
// inside ProcessOne is recovered, reported through onError, and treated
// like any other processing error: the loop sleeps pollInterval and
// continues, unless ctx is already cancelled. Cleanup runs on every exit
// path via defer, releasing any job the worker still holds.
func RunWorker(ctx context.Context, w Worker, pollInterval time.Duration, autoExit bool, onEmpty func(consecutiveEmpty int), onError func(err error)) {
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := w.Cleanup(cleanupCtx); err != nil && onError != nil {
			onError(fmt.Errorf("cleanup: %w", err))
		}
	}()

	consecutiveEmpty := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ok, err := processOneRecovered(ctx, w)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			consecutiveEmpty = 0
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		if !ok {
			consecutiveEmpty++
			if onEmpty != nil {
				onEmpty(consecutiveEmpty)
			}
			if autoExit {
				if active, cerr := w.ActiveCount(ctx); cerr == nil && active == 0 {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		consecutiveEmpty = 0
	}
}

// processOneRecovered calls w.ProcessOne, converting any panic into an
// error so the caller's loop can log and continue rather than crash the
// process.
func processOneRecovered(ctx context.Context, w Worker) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return w.ProcessOne(ctx)
}
