package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0.03, cfg.ReviewAccuracyThreshold)
	assert.Equal(t, 10*time.Second, cfg.Invoker.Timeout)
	assert.Equal(t, 1, cfg.Invoker.MaxRetries)
	assert.Equal(t, 3, cfg.Invoker.FailureThreshold)
	assert.Equal(t, time.Second, cfg.Invoker.BackoffUnit)
	assert.Equal(t, 5*time.Second, cfg.Invoker.RateLimitCooldown)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("INVOKER_MAX_RETRIES", "2")
	t.Setenv("BREAKER_THRESHOLD", "5")
	t.Setenv("API_BASE_URL", "http://measure.internal")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2, cfg.Invoker.MaxRetries)
	assert.Equal(t, 5, cfg.Invoker.FailureThreshold)
	assert.Equal(t, "http://measure.internal", cfg.Invoker.BaseURL)
}

func TestEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CACHE_TTL=90s\nX_API_KEY=from-file\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CACHE_TTL")
		os.Unsetenv("X_API_KEY")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, "from-file", cfg.Invoker.APIKey)
}

func TestInvalidValues(t *testing.T) {
	t.Setenv("DB_POOL_SIZE", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestNonPositiveBatchConcurrency(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestMissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
