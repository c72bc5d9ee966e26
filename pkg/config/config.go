// Package config loads cadence settings from the environment and an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	LogFile   string
	Timezone  string

	// Database. An empty DatabaseURL selects SQLite at SQLitePath.
	DatabaseURL      string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis. Empty disables the shared schedule cache.
	RedisURL string
	CacheTTL time.Duration

	// RabbitMQ. Empty keeps events in process.
	RabbitMQURL      string
	RabbitMQExchange string

	// Search
	SearchMaxSteps int
	SearchTimeout  time.Duration
	// SearchGranularity fixes the step between candidate starts. Zero
	// derives it from each request.
	SearchGranularity time.Duration

	// Outbox
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int
	OutboxRetention    time.Duration
	// OutboxPruneSchedule is a cron spec for pruning while relaying.
	OutboxPruneSchedule string
	// OutboxPublishRate caps published events per second. Zero is unlimited.
	OutboxPublishRate int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "warn"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   getEnv("LOG_FILE", ""),
		Timezone:  getEnv("CADENCE_TIMEZONE", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),

		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: getDurationEnv("CADENCE_CACHE_TTL", 24*time.Hour),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "cadence.domain.events"),

		SearchMaxSteps: getIntEnv("CADENCE_SEARCH_MAX_STEPS", 1_000_000),
		SearchTimeout:  getDurationEnv("CADENCE_SEARCH_TIMEOUT", 10*time.Second),

		SearchGranularity: getDurationEnv("CADENCE_SEARCH_GRANULARITY", 0),

		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:   getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetention:    getDurationEnv("OUTBOX_RETENTION", 14*24*time.Hour),

		OutboxPruneSchedule: getEnv("OUTBOX_PRUNE_SCHEDULE", "@daily"),
		OutboxPublishRate:   getIntEnv("OUTBOX_PUBLISH_RATE", 0),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LocalMode reports whether the process runs on SQLite without a broker.
func (c *Config) LocalMode() bool {
	return c.DatabaseURL == "" && c.RabbitMQURL == ""
}

// Location resolves Timezone. An empty value is the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
