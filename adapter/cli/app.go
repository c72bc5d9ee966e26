package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalApp "github.com/felixgeelhaar/cadence/internal/app"
	goalCommands "github.com/felixgeelhaar/cadence/internal/goals/application/commands"
	goalQueries "github.com/felixgeelhaar/cadence/internal/goals/application/queries"
	planCommands "github.com/felixgeelhaar/cadence/internal/planning/application/commands"
	"github.com/felixgeelhaar/cadence/internal/planning/application/services"
	"github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/felixgeelhaar/cadence/internal/planning/infrastructure/definitions"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

var errAppNotInitialized = errors.New("app not initialized")

// App holds the dependencies the commands run against.
type App struct {
	container *internalApp.Container
}

// NewApp creates the CLI application on top of a wired container.
func NewApp(container *internalApp.Container) *App {
	return &App{container: container}
}

var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

func requireApp() (*App, error) {
	if app == nil {
		return nil, errAppNotInitialized
	}
	return app, nil
}

func (a *App) metrics() *observability.InMemoryMetrics {
	return a.container.Metrics
}

// load reads a plan file. Files without a timezone use CADENCE_TIMEZONE.
func (a *App) load(path string) (*definitions.Definition, error) {
	loc, err := a.container.Config.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid CADENCE_TIMEZONE: %w", err)
	}
	return definitions.LoadIn(path, loc)
}

// planOptions carries the per-invocation planning flags.
type planOptions struct {
	noCache  bool
	noRefine bool
	maxSteps int
	timeout  time.Duration
}

// generate plans every cycle of def and records plan metrics.
func (a *App) generate(ctx context.Context, def *definitions.Definition, opts planOptions) (*planCommands.GeneratePlanResult, error) {
	cfg := a.container.Config
	budget := services.Budget{MaxSteps: cfg.SearchMaxSteps, MaxDuration: cfg.SearchTimeout}
	if opts.maxSteps > 0 {
		budget.MaxSteps = opts.maxSteps
	}
	if opts.timeout > 0 {
		budget.MaxDuration = opts.timeout
	}

	result, err := observability.TimeOperationResult(ctx, a.container.Logger, a.metrics(), "plan.generate",
		func() (*planCommands.GeneratePlanResult, error) {
			return a.container.GeneratePlanHandler.Handle(ctx, planCommands.GeneratePlanCommand{
				Cycles:     def.Cycles,
				Blueprints: def.Blueprints,
				Location:   def.Location,
				Budget:     budget,
				NoRefine:   opts.noRefine,
				NoCache:    opts.noCache,
			})
		})
	if err != nil {
		return nil, err
	}

	for _, p := range result.Plans {
		schedule := p.Plan.Schedule()
		a.metrics().Counter(observability.MetricActionsPlanned, int64(schedule.Len()))
		a.metrics().Counter(observability.MetricPlanWarnings, int64(len(schedule.Warnings())))
		if p.Cached {
			a.metrics().Counter(observability.MetricPlanCacheHits, 1)
		}
	}
	return result, nil
}

// record feeds actions into the usage registers of def's goals. Without a
// broker the stored events are relayed to the local bus right away.
func (a *App) record(ctx context.Context, def *definitions.Definition, actions []domain.Action) (*goalCommands.RecordUsageResult, error) {
	bindings := make([]goalCommands.GoalBinding, 0, len(def.Goals))
	for _, g := range def.Goals {
		bindings = append(bindings, goalCommands.GoalBinding{ActivityID: g.ActivityID, Goal: g.Goal})
	}

	result, err := observability.TimeOperationResult(ctx, a.container.Logger, a.metrics(), "usage.record",
		func() (*goalCommands.RecordUsageResult, error) {
			return a.container.RecordUsageHandler.Handle(ctx, goalCommands.RecordUsageCommand{
				Epoch:   def.Epoch,
				Goals:   bindings,
				Actions: actions,
			})
		})
	if err != nil {
		return nil, err
	}
	a.metrics().Counter(observability.MetricUsageRecorded, int64(result.Recorded))
	a.metrics().Counter(observability.MetricUsageSkipped, int64(result.Skipped))

	if a.container.LocalBus != nil {
		if _, err := a.drain(ctx); err != nil {
			return result, fmt.Errorf("relay usage events: %w", err)
		}
	}
	return result, nil
}

func (a *App) check(ctx context.Context, def *definitions.Definition, moment time.Time) (*goalQueries.CheckGoalsResult, error) {
	refs := make([]goalQueries.GoalRef, 0, len(def.Goals))
	for _, g := range def.Goals {
		refs = append(refs, goalQueries.GoalRef{ActivityID: g.ActivityID, Name: g.Name, Goal: g.Goal})
	}
	return observability.TimeOperationResult(ctx, a.container.Logger, a.metrics(), "goals.check",
		func() (*goalQueries.CheckGoalsResult, error) {
			return a.container.CheckGoalsHandler.Handle(ctx, goalQueries.CheckGoalsQuery{
				Epoch:  def.Epoch,
				Moment: moment,
				Goals:  refs,
			})
		})
}

// drain relays every due outbox message and mirrors the relay counters
// into the metrics.
func (a *App) drain(ctx context.Context) (int, error) {
	processor := a.container.OutboxProcessor
	before := processor.Stats()
	n, err := processor.Drain(ctx)
	a.recordRelay(before)
	return n, err
}

func (a *App) recordRelay(before outbox.Stats) {
	after := a.container.OutboxProcessor.Stats()
	a.metrics().Counter(observability.MetricEventsPublished, int64(after.Published-before.Published))
	a.metrics().Counter(observability.MetricEventsFailed, int64(after.Failed-before.Failed))
	a.metrics().Counter(observability.MetricEventsDead, int64(after.Dead-before.Dead))
}

// activityNames maps each activity of def to its display name.
func activityNames(def *definitions.Definition) map[domain.ActivityID]string {
	names := make(map[domain.ActivityID]string, len(def.Blueprints))
	for _, b := range def.Blueprints {
		names[b.ActivityID()] = b.Name
	}
	return names
}
