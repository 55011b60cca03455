// Package config loads and validates all runtime configuration for the gateway.
//
// Configuration is layered: environment variables take precedence over a
// config.yaml file in the working directory, which takes precedence over
// the defaults set below (via viper). A .env file, if present, is loaded
// into the process environment first via subosito/gotenv.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config is the top-level configuration container.
type Config struct {
	// ApplicationSecret peppers every encrypted-at-rest credential
	// (Connection credentials) and every session-token ID derivation.
	ApplicationSecret string

	// MasterKeys is the set of admin master keys, compared in constant
	// time against the X-LLMur-Key header on every /admin request.
	MasterKeys []string

	Host     string
	Port     int
	LogLevel string

	OTel     OTelConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Request  RequestLogConfig

	CircuitBreaker CircuitBreakerConfig
	Failover       FailoverConfig
	RateLimit      RateLimitConfig

	CORSOrigins []string
}

// OTelConfig controls OpenTelemetry trace export.
type OTelConfig struct {
	ExporterOTLPEndpoint string
}

// DatabaseConfig holds the Postgres connection used by internal/data/postgres.
type DatabaseConfig struct {
	Postgres PostgresConfig
}

// PostgresConfig holds the Postgres DSN and the table-name prefix every
// migration and query in internal/data/postgres applies.
type PostgresConfig struct {
	Datasource  string
	TablePrefix string
}

// CacheConfig controls the Graph cache's remote tier.
type CacheConfig struct {
	Redis RedisConfig
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL string
}

// RequestLogConfig controls the usage/request logger (C7).
type RequestLogConfig struct {
	// ChannelCapacity bounds the in-process buffer between the proxy hot
	// path and the ClickHouse batch writer. A full channel drops the
	// record and increments llmur_request_log_dropped_total rather than
	// blocking the request.
	ChannelCapacity int
	ClickHouse      ClickHouseConfig
}

// ClickHouseConfig holds the ClickHouse DSN the request log batch writer
// inserts into.
type ClickHouseConfig struct {
	DSN string
}

// CircuitBreakerConfig controls per-connection circuit breaker settings.
type CircuitBreakerConfig struct {
	ErrorThreshold  int
	TimeWindow      time.Duration
	HalfOpenTimeout time.Duration
}

// FailoverConfig controls the proxy pipeline's per-connection retry loop.
// The pipeline always exhausts every candidate connection a Graph
// resolves — there is no retry-count cap to configure, since a cap would
// let the loop give up before trying a connection the Graph offered.
type FailoverConfig struct {
	// ProviderTimeout is the per-connection-attempt HTTP timeout.
	ProviderTimeout time.Duration
}

// RateLimitConfig controls the global requests-per-minute limiter. It is
// only enforced when Redis is configured — RPMLimit <= 0 disables it.
type RateLimitConfig struct {
	RPMLimit int
}

// Load reads configuration from environment variables and (optionally) a
// config.yaml file in the current working directory.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("database_configuration.postgres.table_prefix", "llmur_")
	v.SetDefault("request_log.channel_capacity", 1024)
	v.SetDefault("failover.provider_timeout", "30s")
	v.SetDefault("circuit_breaker.error_threshold", 5)
	v.SetDefault("circuit_breaker.time_window", "60s")
	v.SetDefault("circuit_breaker.half_open_timeout", "30s")
	v.SetDefault("cors_origins", []string{"*"})

	cfg := &Config{
		ApplicationSecret: v.GetString("application_secret"),
		MasterKeys:        v.GetStringSlice("master_keys"),
		Host:              v.GetString("host"),
		Port:              v.GetInt("port"),
		LogLevel:          strings.ToLower(v.GetString("log_level")),

		OTel: OTelConfig{
			ExporterOTLPEndpoint: v.GetString("otel.exporter_otlp_endpoint"),
		},

		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Datasource:  v.GetString("database_configuration.postgres.datasource"),
				TablePrefix: v.GetString("database_configuration.postgres.table_prefix"),
			},
		},

		Cache: CacheConfig{
			Redis: RedisConfig{URL: v.GetString("cache_configuration.redis.url")},
		},

		Request: RequestLogConfig{
			ChannelCapacity: v.GetInt("request_log.channel_capacity"),
			ClickHouse:      ClickHouseConfig{DSN: v.GetString("request_log.clickhouse.dsn")},
		},

		Failover: FailoverConfig{
			ProviderTimeout: v.GetDuration("failover.provider_timeout"),
		},

		RateLimit: RateLimitConfig{
			RPMLimit: v.GetInt("rate_limit.rpm_limit"),
		},

		CircuitBreaker: CircuitBreakerConfig{
			ErrorThreshold:  v.GetInt("circuit_breaker.error_threshold"),
			TimeWindow:      v.GetDuration("circuit_breaker.time_window"),
			HalfOpenTimeout: v.GetDuration("circuit_breaker.half_open_timeout"),
		},

		CORSOrigins: v.GetStringSlice("cors_origins"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ApplicationSecret == "" {
		return fmt.Errorf("config: application_secret is required")
	}
	if len(c.MasterKeys) == 0 {
		return fmt.Errorf("config: at least one master key is required (master_keys)")
	}
	if c.Database.Postgres.Datasource == "" {
		return fmt.Errorf("config: database_configuration.postgres.datasource is required")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q; must be one of: debug, info, warn, error", c.LogLevel)
	}

	if c.CircuitBreaker.ErrorThreshold < 1 {
		return fmt.Errorf("config: circuit_breaker.error_threshold must be >= 1, got %d", c.CircuitBreaker.ErrorThreshold)
	}
	if c.CircuitBreaker.TimeWindow <= 0 {
		return fmt.Errorf("config: circuit_breaker.time_window must be a positive duration")
	}
	if c.Request.ChannelCapacity < 1 {
		return fmt.Errorf("config: request_log.channel_capacity must be >= 1, got %d", c.Request.ChannelCapacity)
	}

	return nil
}

// loadDotEnv populates process env vars from a .env file when present.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s is a directory, expected a file", path)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}
