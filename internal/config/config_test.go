package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	cfg.Data.Dir = t.TempDir()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:38080", cfg.ListenAddr())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9000
data:
  dir: /tmp/newcomer-test
scheduler:
  interval: 30s
  batch_size: 10
thresholds:
  retention: 10m
delivery:
  mode: webhook
  webhook_url: http://127.0.0.1:9999
  server_name: Gophers
  channels: [general, off-topic]
ledger:
  retention: 720h
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind, "unset fields keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.Thresholds.Retention)
	assert.Equal(t, 5*time.Minute, cfg.Thresholds.Encouragement)
	assert.Equal(t, []string{"general", "off-topic"}, cfg.Delivery.Channels)
	assert.Equal(t, filepath.Join("/tmp/newcomer-test", "members"), cfg.MembersDir())
	assert.Equal(t, 720*time.Hour, cfg.Ledger.Retention)
	assert.Equal(t, 1024, cfg.Ledger.NoteSize)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	t.Setenv("NEWCOMER_DATA_DIR", dir)
	t.Setenv("NEWCOMER_WEBHOOK_URL", "http://bridge.local:8080")
	t.Setenv("NEWCOMER_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Data.Dir)
	assert.Equal(t, "webhook", cfg.Delivery.Mode)
	assert.Equal(t, "http://bridge.local:8080", cfg.Delivery.WebhookURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero batch", func(c *Config) { c.Scheduler.BatchSize = 0 }},
		{"tiny interval", func(c *Config) { c.Scheduler.Interval = time.Millisecond }},
		{"webhook without url", func(c *Config) { c.Delivery.Mode = "webhook" }},
		{"unknown mode", func(c *Config) { c.Delivery.Mode = "carrier-pigeon" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"inverted risk bands", func(c *Config) { c.Thresholds.HighRisk = 30 }},
		{"tiny ledger notes", func(c *Config) { c.Ledger.NoteSize = 8 }},
		{"negative retention", func(c *Config) { c.Ledger.Retention = -time.Hour }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
