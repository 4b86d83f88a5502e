package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "reasoningbank.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.RetrieveLimit)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
	assert.Equal(t, "reasoningbank", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RB_DB_PATH", "/tmp/bank.db")
	t.Setenv("RB_RETRIEVE_LIMIT", "10")
	t.Setenv("RB_BUSY_TIMEOUT", "250ms")
	t.Setenv("RB_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/bank.db", cfg.DBPath)
	assert.Equal(t, 10, cfg.RetrieveLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.BusyTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := Config{DBPath: "x.db", RetrieveLimit: 5, BusyTimeout: time.Second, LogLevel: "info"}
	require.NoError(t, valid.Validate())

	t.Run("missing db path", func(t *testing.T) {
		c := valid
		c.DBPath = ""
		assert.Error(t, c.Validate())
	})

	t.Run("non-positive retrieve limit", func(t *testing.T) {
		c := valid
		c.RetrieveLimit = 0
		assert.Error(t, c.Validate())
	})

	t.Run("log levels", func(t *testing.T) {
		for _, lvl := range []string{"debug", "info", "warn", "error"} {
			c := valid
			c.LogLevel = lvl
			assert.NoError(t, c.Validate())
		}
		c := valid
		c.LogLevel = "verbose"
		assert.Error(t, c.Validate())
	})
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("RB_RETRIEVE_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RetrieveLimit)
}
