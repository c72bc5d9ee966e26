package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/goals/domain"
	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/outbox"
)

type txKey struct{}

type mockRegisterRepo struct {
	mock.Mock
}

func (m *mockRegisterRepo) Save(ctx context.Context, register *domain.UsageRegister) error {
	return m.Called(ctx, register).Error(0)
}

func (m *mockRegisterRepo) FindByActivityAndGoal(ctx context.Context, activityID planning.ActivityID, goalID domain.GoalID) (*domain.UsageRegister, error) {
	args := m.Called(ctx, activityID, goalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UsageRegister), args.Error(1)
}

func (m *mockRegisterRepo) FindAll(ctx context.Context) ([]*domain.UsageRegister, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.UsageRegister), args.Error(1)
}

type mockOutboxRepo struct {
	mock.Mock
	outbox.Repository
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error   { return m.Called(ctx).Error(0) }
func (m *mockUnitOfWork) Rollback(ctx context.Context) error { return m.Called(ctx).Error(0) }

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func weekly(t *testing.T, id planning.ActivityID, ideal uint32) domain.Goal {
	t.Helper()
	p, err := domain.NewPeriod(ideal, domain.Weeks)
	require.NoError(t, err)
	g, err := domain.NewGoal(domain.GoalIDFor(id), nil, p, domain.MeasureOccurrences)
	require.NoError(t, err)
	return g
}

func action(t *testing.T, id planning.ActivityID, start time.Time) planning.Action {
	t.Helper()
	span, err := planning.NewDateTimeRange(start, start.Add(30*time.Minute))
	require.NoError(t, err)
	return planning.NewAction(id, span)
}

func TestRecordUsageHandler_Handle(t *testing.T) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, txKey{}, "tx")
	run, read, other := planning.NewActivityID(), planning.NewActivityID(), planning.NewActivityID()
	runGoal, readGoal := weekly(t, run, 3), weekly(t, read, 2)

	t.Run("records into new and existing registers", func(t *testing.T) {
		repo, outboxRepo, uow := new(mockRegisterRepo), new(mockOutboxRepo), new(mockUnitOfWork)
		handler := NewRecordUsageHandler(repo, outboxRepo, uow)

		existing := domain.NewUsageRegister(read, readGoal.ID(), epoch)
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByActivityAndGoal", txCtx, run, runGoal.ID()).Return(nil, domain.ErrRegisterNotFound)
		repo.On("FindByActivityAndGoal", txCtx, read, readGoal.ID()).Return(existing, nil)
		repo.On("Save", txCtx, mock.AnythingOfType("*domain.UsageRegister")).Return(nil).Twice()
		outboxRepo.On("SaveBatch", txCtx, mock.MatchedBy(func(msgs []*outbox.Message) bool {
			for _, m := range msgs {
				if m.RoutingKey != domain.RoutingKeyUsageRecorded {
					return false
				}
			}
			return len(msgs) > 0
		})).Return(nil).Twice()

		result, err := handler.Handle(ctx, RecordUsageCommand{
			Epoch: epoch,
			Goals: []GoalBinding{{ActivityID: run, Goal: runGoal}, {ActivityID: read, Goal: readGoal}},
			Actions: []planning.Action{
				action(t, run, epoch.Add(7*time.Hour)),
				action(t, read, epoch.Add(20*time.Hour)),
				action(t, run, epoch.Add(31*time.Hour)),
				action(t, other, epoch.Add(9*time.Hour)),
			},
		})

		require.NoError(t, err)
		assert.Equal(t, &RecordUsageResult{Recorded: 3, Skipped: 1, Saved: 2}, result)

		v, ok := existing.Get(epoch, domain.Weeks)
		require.True(t, ok)
		assert.Equal(t, uint32(1), v)
		assert.Empty(t, existing.DomainEvents(), "events are handed to the outbox")

		repo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("rolls back when saving fails", func(t *testing.T) {
		repo, outboxRepo, uow := new(mockRegisterRepo), new(mockOutboxRepo), new(mockUnitOfWork)
		handler := NewRecordUsageHandler(repo, outboxRepo, uow)
		saveErr := errors.New("disk full")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByActivityAndGoal", txCtx, run, runGoal.ID()).Return(nil, domain.ErrRegisterNotFound)
		repo.On("Save", txCtx, mock.Anything).Return(saveErr)

		result, err := handler.Handle(ctx, RecordUsageCommand{
			Epoch:   epoch,
			Goals:   []GoalBinding{{ActivityID: run, Goal: runGoal}},
			Actions: []planning.Action{action(t, run, epoch.Add(time.Hour))},
		})

		assert.ErrorIs(t, err, saveErr)
		assert.Nil(t, result)
		outboxRepo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
		uow.AssertExpectations(t)
	})

	t.Run("rejects actions before the epoch", func(t *testing.T) {
		repo, outboxRepo, uow := new(mockRegisterRepo), new(mockOutboxRepo), new(mockUnitOfWork)
		handler := NewRecordUsageHandler(repo, outboxRepo, uow)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByActivityAndGoal", txCtx, run, runGoal.ID()).Return(nil, domain.ErrRegisterNotFound)

		_, err := handler.Handle(ctx, RecordUsageCommand{
			Epoch:   epoch,
			Goals:   []GoalBinding{{ActivityID: run, Goal: runGoal}},
			Actions: []planning.Action{action(t, run, epoch.Add(-time.Hour))},
		})

		assert.ErrorIs(t, err, domain.ErrMomentBeforeEpoch)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("propagates lookup failures", func(t *testing.T) {
		repo, outboxRepo, uow := new(mockRegisterRepo), new(mockOutboxRepo), new(mockUnitOfWork)
		handler := NewRecordUsageHandler(repo, outboxRepo, uow)
		lookupErr := errors.New("connection reset")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByActivityAndGoal", txCtx, run, runGoal.ID()).Return(nil, lookupErr)

		_, err := handler.Handle(ctx, RecordUsageCommand{Epoch: epoch, Goals: []GoalBinding{{ActivityID: run, Goal: runGoal}}})

		assert.ErrorIs(t, err, lookupErr)
	})
}
