package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harvestlab/repoharvester/internal/domain/service"
)

// Orchestrator runs a stage's background loop: on every tick it recovers
// stale jobs and, while holding the leader lock, invokes the stage's
// Generator. Schema migrations are not its concern; each cmd/*/main.go
// applies them before starting the Orchestrator.
type Orchestrator struct {
	lock          service.LeaderLock
	generator     Generator
	worker        Worker
	logger        service.Logger
	lockName      string
	lockTTL       time.Duration
	sweepInterval time.Duration
}

// NewOrchestrator builds an Orchestrator for one stage.
func NewOrchestrator(lock service.LeaderLock, generator Generator, worker Worker, logger service.Logger, lockName string) *Orchestrator {
	return &Orchestrator{
		lock:          lock,
		generator:     generator,
		worker:        worker,
		logger:        logger,
		lockName:      lockName,
		lockTTL:       2 * time.Minute,
		sweepInterval: time.Minute,
	}
}

// RunBackground runs the generation-and-sweep loop until ctx is cancelled.
// Grounded in the ticker-driven background service idiom: a select over
// ctx.Done() and a ticker channel, with no goroutine leaks on shutdown.
func (o *Orchestrator) RunBackground(ctx context.Context) {
	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()

	o.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	tickID := uuid.New().String()
	log := o.logger.With("tickID", tickID, "lockName", o.lockName)

	recovered, err := o.worker.RecoverStale(ctx)
	if err != nil {
		log.Error("stale job recovery failed", "err", err)
	} else if recovered > 0 {
		log.Info("recovered stale jobs", "count", recovered)
	}

	acquired, err := o.lock.TryAcquire(ctx, o.lockName, o.lockTTL)
	if err != nil {
		log.Error("leader lock acquisition failed", "err", err)
		return
	}
	if !acquired {
		return
	}

	inserted, skipped, err := o.generator.Generate(ctx)
	if err != nil {
		log.Error("job generation failed", "err", err)
		return
	}
	if inserted > 0 || skipped > 0 {
		log.Info("generated jobs", "inserted", inserted, "skipped", skipped)
	}
}
