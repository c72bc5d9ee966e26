// Package cache stores generated schedules so that unchanged definitions
// are not searched again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

// ErrUnavailable is returned while the circuit to the cache server is open.
var ErrUnavailable = errors.New("schedule cache unavailable")

// Client is the subset of *redis.Client the cache needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Config configures RedisCache.
type Config struct {
	// TTL of a stored schedule. Zero keeps entries forever.
	TTL time.Duration
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultConfig returns a 24h TTL and a breaker that opens after 3 failures.
func DefaultConfig() Config {
	return Config{
		TTL:              24 * time.Hour,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
	}
}

// RedisCache keeps schedules in Redis behind a circuit breaker.
type RedisCache struct {
	client  Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewRedisCache creates a cache over client.
func NewRedisCache(client Client, config Config, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = DefaultConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        "schedule-cache",
		MaxRequests: 1,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &RedisCache{
		client:  client,
		ttl:     config.TTL,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}
}

// Get returns the schedule stored under key. A miss is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.Schedule, bool, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		data, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, false, c.wrap("get", err)
	}
	if data == nil {
		return nil, false, nil
	}

	s, err := decode(data)
	if err != nil {
		// an unreadable entry is treated as a miss and overwritten later
		c.logger.Warn("discarding cached schedule", "key", key, "error", err)
		return nil, false, nil
	}
	return s, true, nil
}

// Set stores s under key.
func (c *RedisCache) Set(ctx context.Context, key string, s *domain.Schedule) error {
	data, err := encode(s)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	_, err = c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		return c.wrap("set", err)
	}
	return nil
}

func (c *RedisCache) wrap(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}
