// Command searchworker runs the search stage: it bootstraps query/window
// jobs, claims them, queries the external hosting API, and ingests the
// resulting repositories.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/harvestlab/repoharvester/internal/domain/service"
	"github.com/harvestlab/repoharvester/internal/engine"
	"github.com/harvestlab/repoharvester/internal/infrastructure/config"
	"github.com/harvestlab/repoharvester/internal/infrastructure/external/ghsearch"
	"github.com/harvestlab/repoharvester/internal/infrastructure/logging"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/jobstore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/postgres"
	"github.com/harvestlab/repoharvester/internal/infrastructure/persistence/repostore"
	"github.com/harvestlab/repoharvester/internal/infrastructure/ratelimit"
	"github.com/harvestlab/repoharvester/internal/infrastructure/storage"
	"github.com/harvestlab/repoharvester/internal/stages/search"
)

const sourceName = "github"

func main() {
	if err := run(); err != nil {
		log.Fatalf("searchworker: %v", err)
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

	archiveStore, err := buildArchiveStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init archive store: %w", err)
	}

	leaderLock, err := buildLeaderLock(cfg)
	if err != nil {
		return fmt.Errorf("init leader lock: %w", err)
	}

	ghClient := ghsearch.NewClient(
		cfg.TokenForWorker(),
		ghsearch.WithLogger(logger),
		ghsearch.WithRateLimit(1),
	)

	jobStore := jobstore.NewSearchJobStore(db.DB)
	repoStore := repostore.NewRepoStore(db.DB)

	generator := search.NewGenerator(jobStore, cfg.BucketPrefix, cfg.QueryTemplate, cfg.StartDate, cfg.EndDate, cfg.WindowDays, cfg.MaxAttempts)
	worker := search.NewWorker(jobStore, repoStore, ghClient, archiveStore, logger, sourceName, cfg.PipelineVersion)

	orchestrator := engine.NewOrchestrator(leaderLock, generator, worker, logger, "search-generate")
	sup.Go(func() { orchestrator.RunBackground(ctx) })

	logger.Info("search worker started", "workerID", cfg.WorkerID, "totalWorkers", cfg.TotalWorkers)

	engine.RunWorker(ctx, worker, cfg.PollInterval, cfg.AutoExit,
		func(consecutiveEmpty int) {
			if consecutiveEmpty%10 == 0 {
				logger.Debug("search queue empty", "consecutiveEmpty", consecutiveEmpty)
			}
		},
		func(err error) {
			logger.Error("search worker processing error", "err", err)
		},
	)

	// RunWorker has returned (drained or cancelled); stop the orchestrator
	// loop too so the process can exit.
	sup.Shutdown()
	sup.Wait()
	return nil
}

func buildArchiveStore(ctx context.Context, cfg *config.Config) (service.ArchiveStore, error) {
	if cfg.S3Bucket == "" {
		return storage.NewLocalStorage(os.TempDir() + "/repoharvester-archive"), nil
	}
	return storage.NewS3Storage(ctx, storage.S3Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		BasePath:        cfg.BucketPrefix,
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY"),
		SecretAccessKey: os.Getenv("S3_SECRET_KEY"),
	})
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
