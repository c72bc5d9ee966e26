package queries

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
)

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

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func goal(t *testing.T, id planning.ActivityID, atLeast, ideal uint32) domain.Goal {
	t.Helper()
	lower, err := domain.NewPeriod(atLeast, domain.Weeks)
	require.NoError(t, err)
	upper, err := domain.NewPeriod(ideal, domain.Weeks)
	require.NoError(t, err)
	g, err := domain.NewGoal(domain.GoalIDFor(id), &lower, upper, "")
	require.NoError(t, err)
	return g
}

func TestCheckGoalsHandler_Handle(t *testing.T) {
	ctx := context.Background()
	run, read := planning.ActivityIDFromName("Running"), planning.ActivityIDFromName("Reading")
	runGoal, readGoal := goal(t, run, 2, 3), goal(t, read, 1, 2)
	moment := epoch.AddDate(0, 0, 3)

	runRegister := domain.NewUsageRegister(run, runGoal.ID(), epoch)
	require.NoError(t, runRegister.Add(epoch.Add(time.Hour), domain.Weeks, 2))

	repo := new(mockRegisterRepo)
	repo.On("FindByActivityAndGoal", ctx, run, runGoal.ID()).Return(runRegister, nil)
	repo.On("FindByActivityAndGoal", ctx, read, readGoal.ID()).Return(nil, domain.ErrRegisterNotFound)

	result, err := NewCheckGoalsHandler(repo).Handle(ctx, CheckGoalsQuery{
		Epoch:  epoch,
		Moment: moment,
		Goals: []GoalRef{
			{ActivityID: run, Name: "Running", Goal: runGoal},
			{ActivityID: read, Name: "Reading", Goal: readGoal},
		},
	})

	require.NoError(t, err)
	assert.False(t, result.AllMeeting, "reading has no register")
	require.Len(t, result.Goals, 2)

	assert.Equal(t, "Running", result.Goals[0].Name)
	assert.True(t, result.Goals[0].Meeting)
	assert.Equal(t, uint32(2), result.Goals[0].Current)
	require.NotNil(t, result.Goals[0].AtLeast)
	assert.Equal(t, uint32(2), *result.Goals[0].AtLeast)
	assert.Equal(t, "weeks", result.Goals[0].Unit)

	assert.False(t, result.Goals[1].Meeting)
	assert.Zero(t, result.Goals[1].Current)
	repo.AssertExpectations(t)
}

func TestCheckGoalsHandler_NothingTracked(t *testing.T) {
	result, err := NewCheckGoalsHandler(new(mockRegisterRepo)).Handle(context.Background(), CheckGoalsQuery{Epoch: epoch, Moment: epoch})

	require.NoError(t, err)
	assert.True(t, result.AllMeeting)
	assert.Empty(t, result.Goals)
}

func TestCheckGoalsHandler_RepositoryError(t *testing.T) {
	ctx := context.Background()
	id := planning.NewActivityID()
	g := goal(t, id, 1, 1)
	boom := errors.New("boom")

	repo := new(mockRegisterRepo)
	repo.On("FindByActivityAndGoal", ctx, id, g.ID()).Return(nil, boom)

	_, err := NewCheckGoalsHandler(repo).Handle(ctx, CheckGoalsQuery{Epoch: epoch, Moment: epoch, Goals: []GoalRef{{ActivityID: id, Goal: g}}})

	assert.ErrorIs(t, err, boom)
}
