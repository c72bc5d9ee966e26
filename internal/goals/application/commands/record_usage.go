package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/goals/domain"
	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/cadence/internal/shared/application"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/outbox"
)

// GoalBinding pairs an activity with the goal its usage counts towards.
type GoalBinding struct {
	ActivityID planning.ActivityID
	Goal       domain.Goal
}

// RecordUsageCommand feeds committed actions into the usage registers.
// Registers that do not exist yet start at Epoch.
type RecordUsageCommand struct {
	Epoch   time.Time
	Goals   []GoalBinding
	Actions []planning.Action
}

// RecordUsageResult summarizes what was recorded.
type RecordUsageResult struct {
	Recorded int
	Skipped  int
	Saved    int
}

// RecordUsageHandler handles RecordUsageCommand.
type RecordUsageHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

func NewRecordUsageHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *RecordUsageHandler {
	return &RecordUsageHandler{repo: repo, outboxRepo: outboxRepo, uow: uow}
}

// Handle records every action whose activity has a goal. Actions of
// activities without a goal are counted as skipped.
func (h *RecordUsageHandler) Handle(ctx context.Context, cmd RecordUsageCommand) (*RecordUsageResult, error) {
	result := &RecordUsageResult{}

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		tracker := domain.NewTracker(cmd.Epoch)
		for _, g := range cmd.Goals {
			register, err := h.repo.FindByActivityAndGoal(txCtx, g.ActivityID, g.Goal.ID())
			if err != nil && !errors.Is(err, domain.ErrRegisterNotFound) {
				return err
			}
			tracker.Track(g.ActivityID, g.Goal, register)
		}

		touched := make(map[*domain.UsageRegister]struct{})
		var order []*domain.UsageRegister
		for _, action := range cmd.Actions {
			register, err := tracker.Record(action)
			if errors.Is(err, domain.ErrActivityNotTracked) {
				result.Skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("record %s: %w", action, err)
			}
			result.Recorded++
			if _, ok := touched[register]; !ok {
				touched[register] = struct{}{}
				order = append(order, register)
			}
		}

		metadata := sharedApplication.NewEventMetadata(txCtx, "goals.record_usage")
		for _, register := range order {
			if err := h.repo.Save(txCtx, register); err != nil {
				return err
			}

			events := register.DomainEvents()
			sharedApplication.ApplyEventMetadata(events, metadata)
			msgs, err := outbox.NewMessages(events)
			if err != nil {
				return err
			}
			if err := h.outboxRepo.SaveBatch(txCtx, msgs); err != nil {
				return err
			}
			register.ClearDomainEvents()
		}
		result.Saved = len(order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
