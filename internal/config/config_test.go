package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pricewatch", cfg.App.Name)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.AlignToInterval)
	assert.Equal(t, int64(0x70726377), cfg.Scheduler.AdvisoryLockKey)
	assert.Equal(t, "models", cfg.Predictor.ModelsDir)
	assert.Equal(t, ":8080", cfg.API.ListenAddr)
	assert.Equal(t, 50, cfg.API.BulkLimit)
	assert.Equal(t, 365, cfg.API.TrendDaysMax)
	assert.False(t, cfg.Alerting.Enabled)
	assert.Equal(t, 100000, cfg.Export.MaxDataPoints)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
scheduler:
  interval: 30s
api:
  listen_addr: ":9090"
  bulk_limit: 10
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, ":9090", cfg.API.ListenAddr)
	assert.Equal(t, 10, cfg.API.BulkLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero interval", mutate: func(c *Config) { c.Scheduler.Interval = 0 }},
		{name: "zero bulk limit", mutate: func(c *Config) { c.API.BulkLimit = 0 }},
		{name: "zero trend days", mutate: func(c *Config) { c.API.TrendDaysMax = 0 }},
		{name: "zero max points", mutate: func(c *Config) { c.Export.MaxDataPoints = 0 }},
		{name: "telegram without token", mutate: func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "chat"
		}},
		{name: "telegram without chat", mutate: func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.BotToken = "token"
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ResolveMaxPoints(500))
	assert.Equal(t, cfg.Export.MaxDataPoints, cfg.ResolveMaxPoints(0))
}
