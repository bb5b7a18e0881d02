package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "energy-stats.db", cfg.Store.SQLitePath)
	assert.Equal(t, "https://api.ember-energy.org", cfg.Ember.BaseURL)
	assert.Equal(t, "2000-01", cfg.Ember.StartDate)
	assert.Equal(t, 30, cfg.Ember.TimeoutSecs)
	assert.Equal(t, 3, cfg.Ember.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Ember.RatePerSec, 1e-9)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENERGYSTATS_STORE_DRIVER", "postgres")
	t.Setenv("ENERGYSTATS_EMBER_API_KEY", "secret")
	t.Setenv("ENERGYSTATS_EMBER_START_DATE", "2015-01")
	t.Setenv("ENERGYSTATS_PIPELINE_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "secret", cfg.Ember.APIKey)
	assert.Equal(t, "2015-01", cfg.Ember.StartDate)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("ENERGYSTATS_STORE_DRIVER", "mysql")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validate")
	})

	t.Run("unknown log format", func(t *testing.T) {
		t.Setenv("ENERGYSTATS_LOG_FORMAT", "xml")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("zero timeout", func(t *testing.T) {
		t.Setenv("ENERGYSTATS_EMBER_TIMEOUT_SECS", "0")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
