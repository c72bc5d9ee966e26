package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/cadence/internal/planning/application/services"
	"github.com/felixgeelhaar/cadence/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/eventbus"
)

var ErrNoCycles = errors.New("at least one cycle is required")

// ScheduleCache stores generated schedules by request fingerprint.
type ScheduleCache interface {
	Get(ctx context.Context, key string) (*domain.Schedule, bool, error)
	Set(ctx context.Context, key string, schedule *domain.Schedule) error
}

// GeneratePlanCommand plans every cycle of a definition.
type GeneratePlanCommand struct {
	Cycles     *domain.Cycles
	Blueprints []domain.Blueprint
	Location   *time.Location
	Budget     services.Budget
	// NoRefine skips merging back-to-back blocks of repeatable activities.
	NoRefine bool
	// NoCache bypasses the cache for reads. Results are still stored.
	NoCache bool
}

// CyclePlan is the outcome for one cycle.
type CyclePlan struct {
	Plan   *domain.Plan
	Cached bool
}

// GeneratePlanResult holds one plan per cycle, in cycle order.
type GeneratePlanResult struct {
	Plans []CyclePlan
}

// GeneratePlanHandler handles GeneratePlanCommand.
type GeneratePlanHandler struct {
	scheduler *services.Scheduler
	cache     ScheduleCache
	publisher eventbus.Publisher
	logger    *slog.Logger
	parallel  int
}

// NewGeneratePlanHandler creates a handler. cache may be nil.
func NewGeneratePlanHandler(
	scheduler *services.Scheduler,
	cache ScheduleCache,
	publisher eventbus.Publisher,
	logger *slog.Logger,
) *GeneratePlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = eventbus.NoopPublisher{}
	}
	return &GeneratePlanHandler{
		scheduler: scheduler,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		parallel:  runtime.GOMAXPROCS(0),
	}
}

// Handle schedules the cycles concurrently. The first failing cycle cancels
// the others and its error is returned.
func (h *GeneratePlanHandler) Handle(ctx context.Context, cmd GeneratePlanCommand) (*GeneratePlanResult, error) {
	if cmd.Cycles == nil || len(cmd.Cycles.Cycles()) == 0 {
		return nil, ErrNoCycles
	}
	loc := cmd.Location
	if loc == nil {
		loc = time.UTC
	}

	cycles := cmd.Cycles.Cycles()
	plans := make([]CyclePlan, len(cycles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallel)
	for i, cycle := range cycles {
		g.Go(func() error {
			p, err := h.planCycle(gctx, cmd, cycle, loc)
			if err != nil {
				return fmt.Errorf("cycle %s: %w", cycle, err)
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metadata := sharedApplication.NewEventMetadata(ctx, "planning.generate_plan")
	for _, p := range plans {
		events := p.Plan.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, metadata)
		if err := eventbus.PublishEvents(ctx, h.publisher, events); err != nil {
			// the plan stands without its notification
			h.logger.Warn("failed to publish plan events", "cycle", p.Plan.Cycle().String(), "error", err)
			continue
		}
		p.Plan.ClearDomainEvents()
	}
	return &GeneratePlanResult{Plans: plans}, nil
}

func (h *GeneratePlanHandler) planCycle(ctx context.Context, cmd GeneratePlanCommand, cycle domain.Cycle, loc *time.Location) (CyclePlan, error) {
	if err := ctx.Err(); err != nil {
		return CyclePlan{}, err
	}

	req := services.Request{
		Cycle:    cycle,
		Breaks:   cmd.Cycles.BreaksWithin(cycle),
		Budget:   cmd.Budget,
		Location: loc,
	}
	for _, b := range cmd.Blueprints {
		a, err := b.Build(cycle, loc)
		if err != nil {
			return CyclePlan{}, err
		}
		req.Activities = append(req.Activities, a)
	}

	key := CacheKey(cycle, req.Breaks, loc, cmd.Blueprints, !cmd.NoRefine)
	if h.cache != nil && !cmd.NoCache {
		s, ok, err := h.cache.Get(ctx, key)
		switch {
		case err != nil:
			h.logger.Warn("schedule cache read failed", "cycle", cycle.String(), "error", err)
		case ok:
			h.logger.Debug("schedule cache hit", "cycle", cycle.String())
			return CyclePlan{Plan: domain.NewPlan(s, loc), Cached: true}, nil
		}
	}

	schedule, err := h.scheduler.Schedule(req)
	if err != nil {
		return CyclePlan{}, err
	}
	if !cmd.NoRefine {
		schedule = refine(schedule, req.Activities)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, schedule); err != nil {
			h.logger.Warn("schedule cache write failed", "cycle", cycle.String(), "error", err)
		}
	}
	return CyclePlan{Plan: domain.NewPlan(schedule, loc)}, nil
}

// refine merges back-to-back blocks of repeatable activities until nothing
// changes. Activities with a fixed session length keep their blocks.
func refine(schedule *domain.Schedule, activities []*domain.Activity) *domain.Schedule {
	var ids []domain.ActivityID
	for _, a := range activities {
		if _, ok := a.Kind().(*domain.Repeatable); !ok {
			continue
		}
		if _, fixed := a.Constraints().SessionLength(); fixed {
			continue
		}
		ids = append(ids, a.ID())
	}
	if len(ids) == 0 {
		return schedule
	}
	refined, _ := domain.FixedPoint{Strategy: domain.NewMergeAdjacent(ids...)}.Apply(schedule)
	return refined
}

// CacheKey fingerprints every input of one cycle's search.
func CacheKey(cycle domain.Cycle, breaks []domain.DateRange, loc *time.Location, blueprints []domain.Blueprint, refined bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "v1|%s|%s|refine=%t\n", cycle, loc, refined)
	for _, b := range breaks {
		fmt.Fprintf(h, "break %s\n", b)
	}
	for _, b := range blueprints {
		fmt.Fprintf(h, "%s\n", b.Fingerprint())
	}
	return "cadence:schedule:" + hex.EncodeToString(h.Sum(nil))
}
