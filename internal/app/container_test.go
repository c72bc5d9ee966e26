package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goalCommands "github.com/felixgeelhaar/cadence/internal/goals/application/commands"
	goalQueries "github.com/felixgeelhaar/cadence/internal/goals/application/queries"
	goalsDomain "github.com/felixgeelhaar/cadence/internal/goals/domain"
	planCommands "github.com/felixgeelhaar/cadence/internal/planning/application/commands"
	"github.com/felixgeelhaar/cadence/internal/planning/infrastructure/definitions"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/cadence/pkg/config"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

const planFile = `
timezone: UTC
cycles:
  - {start: 2024-03-04, days: 7}
activities:
  - name: Stretch
    kind: habit
    duration: 15m
    goal: {at_least: 5, ideal: 7, unit: weeks}
  - name: Read
    kind: habit
    duration: 30m
`

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:             "test",
		SQLitePath:         filepath.Join(t.TempDir(), "cadence.db"),
		SearchMaxSteps:     100_000,
		SearchTimeout:      5 * time.Second,
		OutboxPollInterval: 10 * time.Millisecond,
		OutboxBatchSize:    3,
		OutboxMaxRetries:   3,
	}
}

func TestNewContainer_LocalMode(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, localConfig(t), nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, database.DriverSQLite, c.DBDriver)
	assert.NotNil(t, c.LocalBus)
	assert.Same(t, c.LocalBus, c.EventPublisher)
	assert.Nil(t, c.RedisClient)
	assert.Nil(t, c.ScheduleCache)
	assert.NotNil(t, c.GeneratePlanHandler)
	assert.NotNil(t, c.RecordUsageHandler)
	assert.NotNil(t, c.CheckGoalsHandler)
	assert.NotNil(t, c.OutboxProcessor)
	assert.NotNil(t, c.OutboxPruner)

	health := c.Health.Check(ctx)
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Checks, "database")
}

func TestNewContainer_PlanRecordCheck(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, localConfig(t), nil)
	require.NoError(t, err)
	defer c.Close()

	var (
		mu       sync.Mutex
		received []string
	)
	c.LocalBus.Subscribe("#", func(_ context.Context, routingKey string, _ []byte) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, routingKey)
		return nil
	})

	def, err := definitions.Parse([]byte(planFile))
	require.NoError(t, err)

	plans, err := c.GeneratePlanHandler.Handle(ctx, planCommands.GeneratePlanCommand{
		Cycles:     def.Cycles,
		Blueprints: def.Blueprints,
		Location:   def.Location,
	})
	require.NoError(t, err)
	require.Len(t, plans.Plans, 1)
	schedule := plans.Plans[0].Plan.Schedule()
	assert.Equal(t, 14, schedule.Len())

	var bindings []goalCommands.GoalBinding
	var refs []goalQueries.GoalRef
	for _, g := range def.Goals {
		bindings = append(bindings, goalCommands.GoalBinding{ActivityID: g.ActivityID, Goal: g.Goal})
		refs = append(refs, goalQueries.GoalRef{ActivityID: g.ActivityID, Name: g.Name, Goal: g.Goal})
	}

	recorded, err := c.RecordUsageHandler.Handle(ctx, goalCommands.RecordUsageCommand{
		Epoch:   def.Epoch,
		Goals:   bindings,
		Actions: schedule.AllActions(),
	})
	require.NoError(t, err)
	assert.Equal(t, 7, recorded.Recorded)
	assert.Equal(t, 7, recorded.Skipped, "Read has no goal")
	assert.Equal(t, 1, recorded.Saved)

	relayed, err := c.OutboxProcessor.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, relayed)
	mu.Lock()
	assert.Contains(t, received, goalsDomain.RoutingKeyUsageRecorded)
	assert.Contains(t, received, "planning.plan.generated")
	mu.Unlock()

	status, err := c.CheckGoalsHandler.Handle(ctx, goalQueries.CheckGoalsQuery{
		Epoch:  def.Epoch,
		Moment: def.Epoch.AddDate(0, 0, 6),
		Goals:  refs,
	})
	require.NoError(t, err)
	assert.True(t, status.AllMeeting)
	require.Len(t, status.Goals, 1)
	assert.Equal(t, uint32(7), status.Goals[0].Current)
}
