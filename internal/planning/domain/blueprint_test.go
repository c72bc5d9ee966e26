package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

func TestBlueprint_BuildHabit(t *testing.T) {
	cycle := mustCycle(t, domain.NewDate(2024, time.March, 4), 7)
	b := domain.Blueprint{
		Name:     "Stretching",
		Kind:     domain.KindHabit,
		Interval: domain.IntervalDaily,
		Duration: 15 * time.Minute,
		Times:    1,
		Days:     []time.Weekday{time.Saturday, time.Sunday},
	}

	activity, err := b.Build(cycle, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, domain.ActivityIDFromName("stretching"), activity.ID())
	habit, ok := activity.Kind().(*domain.Habit)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, habit.Duration())
	require.Equal(t, 1, habit.Index().Ranks())
	assert.Len(t, habit.Index().Rank(0), 2, "one default window per weekend day")
}

func TestBlueprint_BuildRepeatable(t *testing.T) {
	cycle := mustCycle(t, domain.NewDate(2024, time.March, 4), 7)
	lo, hi := time.Hour, 5*time.Hour
	b := domain.Blueprint{
		Name:      "Deep work",
		Kind:      domain.KindRepeatable,
		Interval:  domain.IntervalWeekly,
		Desirable: 4 * time.Hour,
		Min:       &lo,
		Max:       &hi,
	}

	activity, err := b.Build(cycle, time.UTC)
	require.NoError(t, err)

	r, ok := activity.Kind().(*domain.Repeatable)
	require.True(t, ok)
	got, ok := r.Min()
	require.True(t, ok)
	assert.Equal(t, time.Hour, got)
	assert.Equal(t, time.Hour, r.Required())
}

func TestBlueprint_BuildErrors(t *testing.T) {
	cycle := mustCycle(t, domain.NewDate(2024, time.March, 4), 7)

	_, err := domain.Blueprint{Name: "x", Kind: "chore", Interval: domain.IntervalDaily}.Build(cycle, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownKind)

	_, err = domain.Blueprint{
		Name:         "x",
		Kind:         domain.KindHabit,
		Interval:     domain.IntervalDaily,
		Duration:     time.Minute,
		Times:        1,
		Desirability: domain.WeeklyDesirability{time.Monday: nil},
	}.Build(cycle, nil)
	assert.ErrorIs(t, err, domain.ErrMissingDesirability)

	_, err = domain.Blueprint{Name: "x", Kind: domain.KindHabit, Interval: domain.IntervalDaily, Times: 1}.Build(cycle, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestBlueprint_Fingerprint(t *testing.T) {
	base := domain.Blueprint{
		Name:     "Run",
		Kind:     domain.KindHabit,
		Interval: domain.IntervalWeekly,
		Duration: time.Hour,
		Times:    3,
		Days:     []time.Weekday{time.Friday, time.Monday},
	}
	reordered := base
	reordered.Days = []time.Weekday{time.Monday, time.Friday}
	longer := base
	longer.Duration = 90 * time.Minute
	constrained := base
	constrained.Constraints = []domain.Constraint{domain.NewMinimumSession(time.Hour)}

	assert.Equal(t, base.Fingerprint(), reordered.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), longer.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), constrained.Fingerprint())
}
