package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Address)
	require.Equal(t, "redisolar", cfg.Valkey.KeyPrefix)
	require.Equal(t, int64(10000), cfg.Feed.GlobalMaxLength)
	require.Equal(t, int64(2440), cfg.Feed.SiteMaxLength)
	require.Equal(t, "optimized", cfg.Stats.Strategy)
	require.False(t, cfg.Ingest.Kafka.Enabled)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
valkey:
  addr: cache:6379
  keyPrefix: solar
feed:
  defaultLimit: 50
stats:
  strategy: improved
ingest:
  kafka:
    enabled: true
    brokers: ["kafka:9092"]
    pollTimeout: 3s
`), 0o600))
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("STATS_STRATEGY", "basic")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "cache:6379", cfg.Valkey.Addr)
	require.Equal(t, "solar", cfg.Valkey.KeyPrefix)
	require.Equal(t, 50, cfg.Feed.DefaultLimit)
	require.Equal(t, "basic", cfg.Stats.Strategy)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.Ingest.Kafka.Brokers)
	require.Equal(t, 3*time.Second, cfg.Ingest.Kafka.PollTimeout)
	require.Equal(t, "meter-readings", cfg.Ingest.Kafka.Topic)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("VALKEY_KEY_PREFIX=fromdotenv\n"), 0o600))
	t.Setenv("ENV_FILE", envPath)
	t.Setenv("CONFIG_PATH", "")
	// Registered so the variable godotenv exports is cleared after the test.
	t.Setenv("VALKEY_KEY_PREFIX", "")
	require.NoError(t, os.Unsetenv("VALKEY_KEY_PREFIX"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "fromdotenv", cfg.Valkey.KeyPrefix)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty address":       func(c *Config) { c.HTTP.Address = "" },
		"empty valkey addr":   func(c *Config) { c.Valkey.Addr = " " },
		"unknown strategy":    func(c *Config) { c.Stats.Strategy = "eventual" },
		"zero site cap":       func(c *Config) { c.Feed.SiteMaxLength = 0 },
		"max below default":   func(c *Config) { c.Feed.MaxLimit = 10 },
		"kafka without peers": func(c *Config) { c.Ingest.Kafka.Enabled = true },
		"zero burst":          func(c *Config) { c.HTTP.RateLimit.Burst = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, defaultConfig().Validate())
}
