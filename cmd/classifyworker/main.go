// Command classifyworker runs the classify stage: it bootstraps one job per
// repo whose README has been fetched, claims jobs, and runs the LLM
// classification prompt against each one.
package main

import (
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/harvestlab/repoharvester/internal/domain/service"
	"github.com/harvestlab/repoharvester/internal/engine"
	"github.com/harvestlab/repoharvester/internal/infrastructure/config"
	"github.com/harvestlab/repoharvester/internal/infrastructure/external/llm"
	"github.com/harvestlab/repoharvester/internal/infrastructure/logging"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/postgres"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/repostore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/ratelimit"
	"github.com/harvestlab/repoharvester/internal/stages/classify"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("classifyworker: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	sup := engine.NewSupervisor()
	ctx := sup.Context()

	db, err := postgres.NewDBWithContext(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	leaderLock, err := buildLeaderLock(cfg)
	if err != nil {
		return fmt.Errorf("init leader lock: %w", err)
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLMAPIKey, llm.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	jobStore := jobstore.NewClassifyJobStore(db.DB)
	repoStore := repostore.NewRepoStore(db.DB)

	generator := classify.NewGenerator(jobStore, repoStore, cfg.MaxAttempts)
	worker := classify.NewWorker(jobStore, repoStore, llmClient, logger)

	orchestrator := engine.NewOrchestrator(leaderLock, generator, worker, logger, "classify-generate")
	sup.Go(func() { orchestrator.RunBackground(ctx) })

	logger.Info("classify worker started", "workerID", cfg.WorkerID, "totalWorkers", cfg.TotalWorkers)

	engine.RunWorker(ctx, worker, cfg.PollInterval, cfg.AutoExit,
		func(consecutiveEmpty int) {
			if consecutiveEmpty%10 == 0 {
				logger.Debug("classify queue empty", "consecutiveEmpty", consecutiveEmpty)
			}
		},
		func(err error) {
			logger.Error("classify worker processing error", "err", err)
		},
	)

	// RunWorker has returned (drained or cancelled); stop the orchestrator
	// loop too so the process can exit.
	sup.Shutdown()
	sup.Wait()
	return nil
}

func buildLeaderLock(cfg *config.Config) (service.LeaderLock, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewStaticLeaderLock(cfg.WorkerID), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return ratelimit.NewRedisLeaderLock(redis.NewClient(opts)), nil
}
