package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 3, cfg.Queue.MaxRetriesDefault)
	assert.Equal(t, 1.5, cfg.Queue.BackoffSecDefault)
	assert.Equal(t, 2*time.Second, cfg.Queue.DequeueTimeout)
	assert.False(t, cfg.Auth.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadHonorsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("QUEUE_MAX_RETRIES_DEFAULT", "7")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("QUEUE_PROMOTE_INTERVAL", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, 7, cfg.Queue.MaxRetriesDefault)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.PromoteInterval)
}

func TestParseDurationFallsBackOnInvalidInput(t *testing.T) {
	assert.Equal(t, time.Second, parseDuration("not-a-duration", time.Second))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Second))
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for _, prefix := range []string{"APP_", "REDIS_", "QUEUE_", "AUTH_", "JWT_", "RATE_LIMIT_", "CORS_", "PROCESS_METRICS_", "WS_", "LOG_LEVEL"} {
			if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
				key := kv
				for i, c := range kv {
					if c == '=' {
						key = kv[:i]
						break
					}
				}
				os.Unsetenv(key)
			}
		}
	}
}
