package domain

import (
	"context"

	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
)

// Repository defines the interface for usage register persistence.
type Repository interface {
	// Save persists a register and its buckets (create or update). It
	// returns ErrRegisterConflict when the stored version moved on.
	Save(ctx context.Context, register *UsageRegister) error

	// FindByActivityAndGoal finds the register of one activity goal.
	// It returns ErrRegisterNotFound when none exists.
	FindByActivityAndGoal(ctx context.Context, activityID planning.ActivityID, goalID GoalID) (*UsageRegister, error)

	// FindAll returns every register.
	FindAll(ctx context.Context) ([]*UsageRegister, error)
}
