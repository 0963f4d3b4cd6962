package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yanqian/redisolar/internal/domain/sitestats"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	Valkey ValkeyConfig `yaml:"valkey"`
	Feed   FeedConfig   `yaml:"feed"`
	Stats  StatsConfig  `yaml:"stats"`
	Ingest IngestConfig `yaml:"ingest"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	CORS         CORSConfig      `yaml:"cors"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// CORSConfig lists the origins allowed to call the API. Empty allows any.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// ValkeyConfig locates the store and namespaces every key.
type ValkeyConfig struct {
	Addr        string        `yaml:"addr"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// FeedConfig caps the reading streams and the reads served from them.
type FeedConfig struct {
	GlobalMaxLength int64 `yaml:"globalMaxLength"`
	SiteMaxLength   int64 `yaml:"siteMaxLength"`
	DefaultLimit    int   `yaml:"defaultLimit"`
	MaxLimit        int   `yaml:"maxLimit"`
}

// StatsConfig picks the rollup update strategy.
type StatsConfig struct {
	Strategy string `yaml:"strategy"`
}

// IngestConfig groups the optional ingestion sources.
type IngestConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the meter reading consumer.
type KafkaConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Brokers     []string      `yaml:"brokers"`
	Topic       string        `yaml:"topic"`
	GroupID     string        `yaml:"groupId"`
	PollTimeout time.Duration `yaml:"pollTimeout"`
}

// Load reads configuration from an optional .env file, a YAML file and
// environment variables, in that order of increasing precedence.
func Load() (*Config, error) {
	if err := loadDotEnv(envOr("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv exports the file's variables without replacing ones already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	setDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	setDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	setBool("HTTP_RATE_LIMIT_ENABLED", &cfg.HTTP.RateLimit.Enabled)
	setInt("HTTP_RATE_LIMIT_RPM", &cfg.HTTP.RateLimit.RequestsPerMinute)
	setInt("HTTP_RATE_LIMIT_BURST", &cfg.HTTP.RateLimit.Burst)
	setList("HTTP_CORS_ALLOWED_ORIGINS", &cfg.HTTP.CORS.AllowedOrigins)

	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Valkey.Addr = v
	}
	if v := os.Getenv("VALKEY_KEY_PREFIX"); v != "" {
		cfg.Valkey.KeyPrefix = v
	}
	setDuration("VALKEY_DIAL_TIMEOUT", &cfg.Valkey.DialTimeout)

	setInt64("FEED_GLOBAL_MAX_LENGTH", &cfg.Feed.GlobalMaxLength)
	setInt64("FEED_SITE_MAX_LENGTH", &cfg.Feed.SiteMaxLength)
	setInt("FEED_DEFAULT_LIMIT", &cfg.Feed.DefaultLimit)
	setInt("FEED_MAX_LIMIT", &cfg.Feed.MaxLimit)

	if v := os.Getenv("STATS_STRATEGY"); v != "" {
		cfg.Stats.Strategy = v
	}

	setBool("KAFKA_ENABLED", &cfg.Ingest.Kafka.Enabled)
	setList("KAFKA_BROKERS", &cfg.Ingest.Kafka.Brokers)
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		cfg.Ingest.Kafka.Topic = v
	}
	if v := os.Getenv("KAFKA_GROUP_ID"); v != "" {
		cfg.Ingest.Kafka.GroupID = v
	}
	setDuration("KAFKA_POLL_TIMEOUT", &cfg.Ingest.Kafka.PollTimeout)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func setBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt64(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func setList(name string, dst *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 600,
				Burst:             100,
			},
		},
		Valkey: ValkeyConfig{
			Addr:        "localhost:6379",
			KeyPrefix:   "redisolar",
			DialTimeout: 5 * time.Second,
		},
		Feed: FeedConfig{
			GlobalMaxLength: 10000,
			SiteMaxLength:   2440,
			DefaultLimit:    100,
			MaxLimit:        1000,
		},
		Stats: StatsConfig{
			Strategy: string(sitestats.StrategyOptimized),
		},
		Ingest: IngestConfig{
			Kafka: KafkaConfig{
				Enabled:     false,
				Topic:       "meter-readings",
				GroupID:     "redisolar",
				PollTimeout: time.Second,
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty")
	}
	if strings.Contains(c.Valkey.KeyPrefix, " ") {
		return errors.New("valkey.keyPrefix cannot contain spaces")
	}
	if c.Feed.GlobalMaxLength <= 0 || c.Feed.SiteMaxLength <= 0 {
		return errors.New("feed max lengths must be positive")
	}
	if c.Feed.DefaultLimit <= 0 {
		return errors.New("feed.defaultLimit must be positive")
	}
	if c.Feed.MaxLimit < c.Feed.DefaultLimit {
		return errors.New("feed.maxLimit cannot be below feed.defaultLimit")
	}
	if _, err := sitestats.ParseStrategy(c.Stats.Strategy); err != nil {
		return fmt.Errorf("stats.strategy: %w", err)
	}
	if c.Ingest.Kafka.Enabled {
		if len(c.Ingest.Kafka.Brokers) == 0 {
			return errors.New("ingest.kafka.brokers cannot be empty when kafka ingestion is enabled")
		}
		if strings.TrimSpace(c.Ingest.Kafka.Topic) == "" {
			return errors.New("ingest.kafka.topic cannot be empty when kafka ingestion is enabled")
		}
	}
	return nil
}
