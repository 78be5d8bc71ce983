package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8090, cfg.Server.Port)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "browser-bots", cfg.Channel.Prefix)
	require.Equal(t, "0123456789abcdefghijklmnopqrstuvwxyz", cfg.Channel.Charset)
	require.Equal(t, 50, cfg.Worker.PruneLimit)
	require.Equal(t, "memory", cfg.Participants.Provider)
	require.Equal(t, "none", cfg.Archive.Provider)

	require.Equal(t, 3*time.Second, cfg.PopTimeout())
	require.Equal(t, 3*time.Second, cfg.PrepareTimeout())
	require.Equal(t, time.Second, cfg.ConsumeTimeout())
	require.Equal(t, time.Second, cfg.PingTimeout())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
redis:
  enabled: false
channel:
  prefix: bots-stage
  charset: abc
worker:
  prune_limit: 10
participants:
  provider: postgres
  dsn: postgres://localhost/otree
  table: otree_participant
archive:
  provider: local
  dir: /tmp/pages
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Server.Port)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, "bots-stage", cfg.Channel.Prefix)
	require.Equal(t, "abc", cfg.Channel.Charset)
	require.Equal(t, 10, cfg.Worker.PruneLimit)
	require.Equal(t, "otree_participant", cfg.Participants.Table)
	require.Equal(t, "local", cfg.Archive.Provider)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BOTWORKER_CHANNEL_PREFIX", "bots-env")
	t.Setenv("BOTWORKER_REDIS_ADDR", "redis.internal:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "bots-env", cfg.Channel.Prefix)
	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"redis enabled without addr", func(c *Config) { c.Redis.Addr = "" }},
		{"empty prefix", func(c *Config) { c.Channel.Prefix = "" }},
		{"empty charset", func(c *Config) { c.Channel.Charset = "" }},
		{"zero prune limit", func(c *Config) { c.Worker.PruneLimit = 0 }},
		{"zero pop timeout", func(c *Config) { c.Worker.PopTimeoutSeconds = 0 }},
		{"postgres without dsn", func(c *Config) { c.Participants.Provider = "postgres" }},
		{"unknown participants provider", func(c *Config) { c.Participants.Provider = "dynamo" }},
		{"local archive without dir", func(c *Config) { c.Archive.Provider = "local" }},
		{"gcs archive without bucket", func(c *Config) { c.Archive.Provider = "gcs" }},
		{"unknown archive provider", func(c *Config) { c.Archive.Provider = "s3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, base.Validate())
}
