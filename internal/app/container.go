// Package app wires cadence's dependencies.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	goalCommands "github.com/felixgeelhaar/cadence/internal/goals/application/commands"
	goalQueries "github.com/felixgeelhaar/cadence/internal/goals/application/queries"
	goalsDomain "github.com/felixgeelhaar/cadence/internal/goals/domain"
	goalsPersistence "github.com/felixgeelhaar/cadence/internal/goals/infrastructure/persistence"
	planCommands "github.com/felixgeelhaar/cadence/internal/planning/application/commands"
	"github.com/felixgeelhaar/cadence/internal/planning/application/services"
	"github.com/felixgeelhaar/cadence/internal/planning/infrastructure/cache"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/cadence/pkg/config"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis, nil when no REDIS_URL is configured or it is unreachable in development
	RedisClient *redis.Client

	// Events. LocalBus is set when no broker is configured and is then
	// also the EventPublisher.
	EventPublisher eventbus.Publisher
	LocalBus       *eventbus.LocalBus

	// Repositories
	UsageRegisterRepo goalsDomain.Repository
	OutboxRepo        outbox.Repository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Planning
	Scheduler           *services.Scheduler
	ScheduleCache       planCommands.ScheduleCache
	GeneratePlanHandler *planCommands.GeneratePlanHandler

	// Goals
	RecordUsageHandler *goalCommands.RecordUsageHandler
	CheckGoalsHandler  *goalQueries.CheckGoalsHandler

	// Outbox relay and retention
	OutboxProcessor *outbox.Processor
	OutboxPruner    *outbox.Pruner
}

// NewContainer creates and wires all dependencies. Without DATABASE_URL it
// runs on a local SQLite file. Redis and RabbitMQ are optional.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	conn, err := database.Open(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxConns:   cfg.DatabaseMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.Health.Register("database", observability.RequiredChecker("database", conn.Ping))
	logger.Info("connected to database", "driver", c.DBDriver)

	if err := migrations.Run(ctx, conn); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEvents(); err != nil {
		c.Close()
		return nil, err
	}

	// Repositories and unit of work
	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.UsageRegisterRepo = goalsPersistence.NewUsageRegisterRepository(conn)
	c.OutboxRepo = outbox.NewSQLRepository(conn)

	// Planning
	schedulerConfig := services.DefaultSchedulerConfig()
	schedulerConfig.Budget = services.Budget{
		MaxSteps:    cfg.SearchMaxSteps,
		MaxDuration: cfg.SearchTimeout,
	}
	schedulerConfig.Granularity = cfg.SearchGranularity
	c.Scheduler = services.NewScheduler(schedulerConfig, logger)
	if c.RedisClient != nil {
		cacheConfig := cache.DefaultConfig()
		cacheConfig.TTL = cfg.CacheTTL
		c.ScheduleCache = cache.NewRedisCache(c.RedisClient, cacheConfig, logger)
	}
	c.GeneratePlanHandler = planCommands.NewGeneratePlanHandler(c.Scheduler, c.ScheduleCache, c.EventPublisher, logger)

	// Goals
	c.RecordUsageHandler = goalCommands.NewRecordUsageHandler(c.UsageRegisterRepo, c.OutboxRepo, c.UnitOfWork)
	c.CheckGoalsHandler = goalQueries.NewCheckGoalsHandler(c.UsageRegisterRepo)

	// Outbox relay
	processorConfig := outbox.DefaultProcessorConfig()
	processorConfig.PollInterval = cfg.OutboxPollInterval
	processorConfig.BatchSize = cfg.OutboxBatchSize
	processorConfig.MaxRetries = cfg.OutboxMaxRetries
	processorConfig.PublishRate = cfg.OutboxPublishRate
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, logger)
	c.OutboxPruner = outbox.NewPruner(c.OutboxRepo, cfg.OutboxRetention, logger)

	return c, nil
}

func (c *Container) initRedis(ctx context.Context) error {
	cfg, logger := c.Config, c.Logger
	if cfg.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		logger.Warn("invalid Redis URL, schedule cache disabled", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !cfg.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logger.Warn("Redis not available, schedule cache disabled", "error", err)
		return nil
	}

	c.RedisClient = client
	c.Health.Register("redis", observability.OptionalChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	logger.Info("connected to Redis")
	return nil
}

func (c *Container) initEvents() error {
	cfg, logger := c.Config, c.Logger
	if cfg.RabbitMQURL == "" {
		bus := eventbus.NewLocalBus(logger)
		bus.Subscribe("#", func(ctx context.Context, routingKey string, payload []byte) error {
			logger.InfoContext(ctx, "domain event", "routing_key", routingKey, "size", len(payload))
			return nil
		})
		c.LocalBus = bus
		c.EventPublisher = bus
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	c.EventPublisher = publisher
	c.Health.Register("rabbitmq", observability.OptionalChecker("rabbitmq", publisher.Ping))
	return nil
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Debug("database connection closed", "driver", c.DBDriver)
		}
	}
}
