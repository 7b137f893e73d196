package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Ops.SLA.P0)
	assert.Equal(t, []string{"On-call", "Ops Lead", "Support", "Engineering"}, cfg.Incidents.ResolverRoles)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPSTRIAGE_SERVER__PORT", "9000")
	t.Setenv("OPSTRIAGE_STORAGE__DRIVER", "Memory")
	t.Setenv("OPSTRIAGE_OPS__SLA__P0", "15m")
	t.Setenv("OPSTRIAGE_OPS__BREACHED_HIGH_WATER", "6")
	t.Setenv("OPSTRIAGE_INCIDENTS__RESOLVER_ROLES", "On-call, SRE")
	t.Setenv("OPSTRIAGE_EVENTS__ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Ops.SLA.P0)
	assert.Equal(t, 2*time.Hour, cfg.Ops.SLA.P1)
	assert.Equal(t, 6, cfg.Ops.BreachedHighWater)
	assert.Equal(t, []string{"On-call", "SRE"}, cfg.Incidents.ResolverRoles)
	assert.True(t, cfg.Events.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: text
storage:
  driver: redis
redis:
  addr: cache:6379
  key_prefix: triage-test
cors:
  allowed_origins:
    - https://ops.example.com
database:
  connect_timeout: 3s
`)
	t.Setenv("OPSTRIAGE_REDIS__DB", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "triage-test", cfg.Redis.KeyPrefix)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.driver"},
		{"postgres without url", func(c *Config) { c.Database.URL = "" }, "database.url"},
		{"redis without addr", func(c *Config) {
			c.Storage.Driver = DriverRedis
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero sla", func(c *Config) { c.Ops.SLA.P2 = 0 }, "ops.sla.p2"},
		{"events without url", func(c *Config) {
			c.Events.Enabled = true
			c.Events.NATSURL = ""
		}, "events.nats_url"},
		{"rate limit without burst", func(c *Config) { c.RateLimit.Burst = 0 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("OPSTRIAGE_STORAGE__DRIVER", "sqlite")

	_, err := Load("")
	assert.ErrorContains(t, err, "storage.driver")
}
