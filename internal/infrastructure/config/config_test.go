package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "LLM_API_KEY", "WORKER_ID", "TOTAL_WORKERS",
		"PIPELINE_VERSION", "BUCKET_PREFIX", "QUERY_TEMPLATE", "START_DATE", "END_DATE",
		"WINDOW_DAYS", "SEARCH_TOKEN_1", "SEARCH_TOKEN_2", "S3_BUCKET", "LOG_MODE",
		"POLL_INTERVAL_SECONDS", "MAX_ATTEMPTS", "AUTO_EXIT",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequiresWorkerIDWithinRange(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("WORKER_ID", "3")
	os.Setenv("TOTAL_WORKERS", "2")
	defer clearEnv(t)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ParsesSearchTokensByWorkerID(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("WORKER_ID", "2")
	os.Setenv("TOTAL_WORKERS", "3")
	os.Setenv("SEARCH_TOKEN_1", "token-one")
	os.Setenv("SEARCH_TOKEN_2", "token-two")
	defer clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "token-two", cfg.TokenForWorker())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("WORKER_ID", "1")
	os.Setenv("TOTAL_WORKERS", "1")
	defer clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "v1", cfg.PipelineVersion)
	assert.Equal(t, 1, cfg.WindowDays)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.True(t, cfg.AutoExit)
}
