package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SlaEscrow/internal/model"
	"SlaEscrow/internal/validation"
)

const sample = `
server:
  addr: ":9090"
database:
  store: file
feeds:
  - source: uptime
    url: http://sli.local
  - source: latency
    kind: prometheus
    url: http://prometheus:9090
    query: histogram_quantile(0.99, rate(http_request_duration_seconds_bucket[5m]))
  - source: fixed
    kind: static
    value: "99.9"
validation:
  max_feed_age: 2m
  max_confidence: "0.5"
  order: sequential
governance:
  protocol_reward_rate: "0.01"
  deployer_reward_rate: "0.02"
  validator_reward: 3
  protocol_reward: 2
  burn_amount: 5
  deposit_by_period: 10
  max_leverage: "5"
  max_periods: 24
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(write(t, "config.yaml", sample), "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, StoreFile, cfg.Database.Store)
	assert.Equal(t, FeedHTTP, cfg.Feeds[0].Kind)
	assert.Equal(t, "0 */5 * * * *", cfg.Schedule.ValidateCron)

	vc, err := cfg.ValidationConfig()
	require.NoError(t, err)
	assert.Equal(t, validation.OrderSequential, vc.Order)
	assert.Equal(t, 2*time.Minute, vc.MaxFeedAge)
	assert.Equal(t, uint64(10000), vc.Precision)
	assert.Equal(t, "0.500000000000000000", vc.MaxConfidence.String())

	gov, err := cfg.GovernanceParams()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), gov.DepositByPeriod)
	assert.Equal(t, uint32(24), gov.MaxPeriods)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SERVER_ADDR", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreSQLite, cfg.Database.Store)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	for _, k := range []string{"REDIS_URL", "REGISTRY_CAPACITY"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	env := write(t, ".env", "REDIS_URL=redis://cache:6379/0\nREGISTRY_CAPACITY=7\n")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(write(t, "config.yaml", sample), env)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 7, cfg.Registry.Capacity)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"telegram token without chat", func(c *Config) { c.Telegram.BotToken = "t" }},
		{"unknown store", func(c *Config) { c.Database.Store = "postgres" }},
		{"redis locks with memory store", func(c *Config) {
			c.Redis.URL = "redis://cache:6379/0"
			c.Database.Store = StoreMemory
		}},
		{"duplicate feed", func(c *Config) { c.Feeds = append(c.Feeds, c.Feeds[0]) }},
		{"unknown feed kind", func(c *Config) { c.Feeds[0].Kind = "grpc" }},
		{"prometheus without query", func(c *Config) { c.Feeds[1].Query = "" }},
		{"static without value", func(c *Config) { c.Feeds[2].Value = "" }},
		{"bad order", func(c *Config) { c.Validation.Order = "random" }},
		{"bad precision", func(c *Config) { c.Validation.Precision = 50 }},
		{"deposit mismatch", func(c *Config) { c.Governance.DepositByPeriod = 9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(write(t, "config.yaml", sample), "")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_GovernanceError(t *testing.T) {
	cfg, err := Load(write(t, "config.yaml", sample), "")
	require.NoError(t, err)
	cfg.Governance.BurnAmount = 6
	assert.ErrorIs(t, cfg.Validate(), model.ErrNonValidGovernanceParameters)
}
