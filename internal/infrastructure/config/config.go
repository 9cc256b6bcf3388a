// Package config loads process configuration from the environment. Every
// stage worker and the orchestrator share this loader; unused fields for a
// given process are simply left zero.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-sourced setting a worker or orchestrator
// process needs.
type Config struct {
	DatabaseURL string
	RedisURL    string

	LLMAPIKey string

	WorkerID      int
	TotalWorkers  int

	PipelineVersion string
	BucketPrefix    string
	QueryTemplate   string

	StartDate  time.Time
	EndDate    time.Time
	WindowDays int

	// SearchTokens maps worker id (1-based) to its dedicated search API
	// token, sourced from SEARCH_TOKEN_<id>.
	SearchTokens map[int]string

	S3Bucket   string
	S3Region   string
	S3Endpoint string

	LogMode string

	PollInterval time.Duration
	MaxAttempts  int
	AutoExit     bool
}

// Load reads Config from the process environment. It returns an error on any
// required variable that is missing or malformed; callers should treat that
// as a fatal startup condition.
func Load() (*Config, error) {
	cfg := &Config{
		SearchTokens: make(map[int]string),
	}

	var err error

	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")

	if cfg.WorkerID, err = requireInt("WORKER_ID"); err != nil {
		return nil, err
	}
	if cfg.TotalWorkers, err = requireInt("TOTAL_WORKERS"); err != nil {
		return nil, err
	}
	if cfg.TotalWorkers < 1 {
		return nil, fmt.Errorf("config: TOTAL_WORKERS must be >= 1, got %d", cfg.TotalWorkers)
	}
	if cfg.WorkerID < 1 || cfg.WorkerID > cfg.TotalWorkers {
		return nil, fmt.Errorf("config: WORKER_ID %d out of range [1,%d]", cfg.WorkerID, cfg.TotalWorkers)
	}

	cfg.PipelineVersion = envOrDefault("PIPELINE_VERSION", "v1")
	cfg.BucketPrefix = envOrDefault("BUCKET_PREFIX", "default")
	cfg.QueryTemplate = os.Getenv("QUERY_TEMPLATE")

	if v := os.Getenv("START_DATE"); v != "" {
		if cfg.StartDate, err = time.Parse("2006-01-02", v); err != nil {
			return nil, fmt.Errorf("config: invalid START_DATE %q: %w", v, err)
		}
	}
	if v := os.Getenv("END_DATE"); v != "" {
		if cfg.EndDate, err = time.Parse("2006-01-02", v); err != nil {
			return nil, fmt.Errorf("config: invalid END_DATE %q: %w", v, err)
		}
	}
	cfg.WindowDays, err = intOrDefault("WINDOW_DAYS", 1)
	if err != nil {
		return nil, err
	}

	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, "SEARCH_TOKEN_") {
			continue
		}
		kv := strings.SplitN(e, "=", 2)
		if len(kv) != 2 {
			continue
		}
		idStr := strings.TrimPrefix(kv[0], "SEARCH_TOKEN_")
		id, convErr := strconv.Atoi(idStr)
		if convErr != nil {
			continue
		}
		cfg.SearchTokens[id] = kv[1]
	}

	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3Region = envOrDefault("S3_REGION", "us-east-1")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")

	cfg.LogMode = envOrDefault("LOG_MODE", "dev")

	pollSeconds, err := intOrDefault("POLL_INTERVAL_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	cfg.MaxAttempts, err = intOrDefault("MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	cfg.AutoExit, err = boolOrDefault("AUTO_EXIT", true)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// TokenForWorker returns the search API token assigned to this worker,
// falling back to SEARCH_TOKEN_DEFAULT (empty if unset).
func (c *Config) TokenForWorker() string {
	if tok, ok := c.SearchTokens[c.WorkerID]; ok {
		return tok
	}
	return os.Getenv("SEARCH_TOKEN_DEFAULT")
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: required environment variable %s is unset", key)
	}
	return v, nil
}

func requireInt(key string) (int, error) {
	v, err := requireEnv(key)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

func intOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolOrDefault(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a bool, got %q", key, v)
	}
	return b, nil
}
