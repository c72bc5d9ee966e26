package domain_test

import (
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/cadence/internal/goals/domain"
	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func period(t *testing.T, q uint32, unit domain.TimeUnit) domain.Period {
	t.Helper()
	p, err := domain.NewPeriod(q, unit)
	require.NoError(t, err)
	return p
}

func newRegister() (*domain.UsageRegister, planning.ActivityID, domain.GoalID) {
	activityID := planning.NewActivityID()
	goalID := domain.GoalIDFor(activityID)
	return domain.NewUsageRegister(activityID, goalID, epoch), activityID, goalID
}

func TestUsageRegister_Index(t *testing.T) {
	r, _, _ := newRegister()

	tests := []struct {
		name     string
		moment   time.Time
		unit     domain.TimeUnit
		expected uint64
	}{
		{"minutes", epoch.Add(90 * time.Second), domain.Minutes, 1},
		{"hours", epoch.Add(150 * time.Minute), domain.Hours, 2},
		{"days", epoch.Add(47 * time.Hour), domain.Days, 1},
		{"weeks", epoch.AddDate(0, 0, 15), domain.Weeks, 2},
		{"months", time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC), domain.Months, 2},
		{"months next year", time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), domain.Months, 13},
		{"years", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), domain.Years, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := r.Index(tt.moment, tt.unit)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, i)
		})
	}
}

func TestUsageRegister_MonthsUseCalendarFields(t *testing.T) {
	r, _, _ := newRegister()

	first, err := r.Index(time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC), domain.Months)
	require.NoError(t, err)
	leap, err := r.Index(time.Date(2024, time.February, 29, 8, 0, 0, 0, time.UTC), domain.Months)
	require.NoError(t, err)
	assert.Equal(t, first, leap, "same calendar month, 28 days apart")

	before, err := r.Index(time.Date(2024, time.January, 30, 8, 0, 0, 0, time.UTC), domain.Months)
	require.NoError(t, err)
	after, err := r.Index(time.Date(2024, time.February, 2, 8, 0, 0, 0, time.UTC), domain.Months)
	require.NoError(t, err)
	assert.NotEqual(t, before, after, "3 days apart across a month boundary")
}

func TestUsageRegister_BeforeEpoch(t *testing.T) {
	r, _, _ := newRegister()

	_, err := r.Index(epoch.Add(-time.Second), domain.Days)
	assert.ErrorIs(t, err, domain.ErrMomentBeforeEpoch)
	assert.ErrorIs(t, r.Add(epoch.Add(-time.Hour), domain.Days, 1), domain.ErrMomentBeforeEpoch)

	_, ok := r.Get(epoch.Add(-time.Hour), domain.Days)
	assert.False(t, ok)
}

func TestUsageRegister_AddAndGet(t *testing.T) {
	r, _, _ := newRegister()
	moment := epoch.AddDate(0, 0, 3)

	_, ok := r.Get(moment, domain.Weeks)
	assert.False(t, ok)

	require.NoError(t, r.Add(moment, domain.Weeks, 2))
	require.NoError(t, r.Add(moment.Add(time.Hour), domain.Weeks, 3))

	v, ok := r.Get(moment, domain.Weeks)
	require.True(t, ok)
	assert.Equal(t, uint32(5), v)

	_, ok = r.Get(moment, domain.Days)
	assert.False(t, ok, "units are bucketed independently")
}

func TestUsageRegister_IsMeeting(t *testing.T) {
	r, _, goalID := newRegister()
	atLeast := period(t, 2, domain.Weeks)
	goal, err := domain.NewGoal(goalID, &atLeast, period(t, 4, domain.Weeks), domain.MeasureOccurrences)
	require.NoError(t, err)
	moment := epoch.AddDate(0, 0, 1)

	assert.False(t, r.IsMeeting(goal, moment), "no bucket yet")

	require.NoError(t, r.Add(moment, domain.Weeks, 1))
	assert.False(t, r.IsMeeting(goal, moment))

	require.NoError(t, r.Add(moment, domain.Weeks, 1))
	assert.True(t, r.IsMeeting(goal, moment))

	require.NoError(t, r.Add(moment, domain.Weeks, 3))
	assert.False(t, r.IsMeeting(goal, moment), "above ideal")
}

func TestUsageRegister_ConcurrentAdd(t *testing.T) {
	r, _, _ := newRegister()
	moment := epoch.Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Add(moment, domain.Days, 1)
		}()
	}
	wg.Wait()

	v, ok := r.Get(moment, domain.Days)
	require.True(t, ok)
	assert.Equal(t, uint32(50), v)
}

func TestUsageRegister_RecordAction(t *testing.T) {
	r, activityID, goalID := newRegister()
	goal, err := domain.NewGoal(goalID, nil, period(t, 300, domain.Weeks), domain.MeasureMinutes)
	require.NoError(t, err)
	span, err := planning.NewDateTimeRange(epoch.Add(9*time.Hour), epoch.Add(10*time.Hour+30*time.Minute))
	require.NoError(t, err)

	require.NoError(t, r.RecordAction(goal, planning.NewAction(activityID, span)))

	v, ok := r.Get(span.Start(), domain.Weeks)
	require.True(t, ok)
	assert.Equal(t, uint32(90), v)

	events := r.DomainEvents()
	require.Len(t, events, 1)
	recorded, ok := events[0].(*domain.UsageRecorded)
	require.True(t, ok)
	assert.Equal(t, domain.RoutingKeyUsageRecorded, recorded.RoutingKey())
	assert.Equal(t, uint32(90), recorded.Quantity)
	assert.Equal(t, "weeks", recorded.Unit)

	other, err := domain.NewGoal(domain.GoalIDFor(planning.NewActivityID()), nil, period(t, 1, domain.Weeks), "")
	require.NoError(t, err)
	assert.ErrorIs(t, r.RecordAction(other, planning.NewAction(activityID, span)), domain.ErrGoalMismatch)
}

func TestRehydrateUsageRegister(t *testing.T) {
	r, activityID, goalID := newRegister()
	require.NoError(t, r.Add(epoch.AddDate(0, 1, 0), domain.Months, 4))
	require.NoError(t, r.Add(epoch, domain.Days, 1))

	restored := domain.RehydrateUsageRegister(r.ID(), activityID, goalID, epoch, r.Buckets(), r.CreatedAt(), r.UpdatedAt(), 3)

	assert.Equal(t, r.Buckets(), restored.Buckets())
	assert.Equal(t, []domain.Bucket{
		{Unit: domain.Days, Index: 0, Quantity: 1},
		{Unit: domain.Months, Index: 1, Quantity: 4},
	}, restored.Buckets())
	assert.Empty(t, restored.DomainEvents())
	assert.Equal(t, 3, restored.Version())
}
