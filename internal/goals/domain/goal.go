package domain

import (
	"errors"
	"fmt"
	"time"

	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/google/uuid"
)

var (
	ErrGoalUnitMismatch  = errors.New("goal at_least and ideal must use the same time unit")
	ErrGoalBoundsInverse = errors.New("goal at_least exceeds ideal")
	ErrInvalidMeasure    = errors.New("invalid goal measure")
)

// GoalID identifies a goal.
type GoalID uuid.UUID

// GoalIDFor derives the id of the goal attached to an activity.
func GoalIDFor(activityID planning.ActivityID) GoalID {
	return GoalID(uuid.NewSHA1(activityID.UUID(), []byte("goal")))
}

func (id GoalID) UUID() uuid.UUID { return uuid.UUID(id) }
func (id GoalID) String() string  { return uuid.UUID(id).String() }

// Measure is what one committed action contributes to a register.
type Measure string

const (
	MeasureOccurrences Measure = "occurrences"
	MeasureMinutes     Measure = "minutes"
)

// IsValid checks if the measure is known.
func (m Measure) IsValid() bool {
	return m == MeasureOccurrences || m == MeasureMinutes
}

// Quantity converts one action into register units.
func (m Measure) Quantity(d time.Duration) uint32 {
	if m == MeasureMinutes {
		return uint32(d / time.Minute)
	}
	return 1
}

// Goal is a target usage range for an activity: at least atLeast (when set)
// and no more than ideal, in ideal's time unit.
type Goal struct {
	id      GoalID
	atLeast *Period
	ideal   Period
	measure Measure
}

// NewGoal creates a goal. atLeast may be nil. An empty measure counts occurrences.
func NewGoal(id GoalID, atLeast *Period, ideal Period, measure Measure) (Goal, error) {
	if measure == "" {
		measure = MeasureOccurrences
	}
	if !measure.IsValid() {
		return Goal{}, fmt.Errorf("%w: %q", ErrInvalidMeasure, measure)
	}
	if atLeast != nil {
		if atLeast.Unit() != ideal.Unit() {
			return Goal{}, fmt.Errorf("%w: %s vs %s", ErrGoalUnitMismatch, atLeast.Unit(), ideal.Unit())
		}
		if atLeast.Quantity() > ideal.Quantity() {
			return Goal{}, ErrGoalBoundsInverse
		}
		copied := *atLeast
		atLeast = &copied
	}
	return Goal{id: id, atLeast: atLeast, ideal: ideal, measure: measure}, nil
}

func (g Goal) ID() GoalID       { return g.id }
func (g Goal) Ideal() Period    { return g.ideal }
func (g Goal) Measure() Measure { return g.measure }
func (g Goal) Unit() TimeUnit   { return g.ideal.Unit() }

// AtLeast returns the lower bound and whether one is set.
func (g Goal) AtLeast() (Period, bool) {
	if g.atLeast == nil {
		return Period{}, false
	}
	return *g.atLeast, true
}

// Accepts reports whether an accumulated value lies within the goal.
func (g Goal) Accepts(value uint32) bool {
	if g.atLeast != nil && value < g.atLeast.Quantity() {
		return false
	}
	return value <= g.ideal.Quantity()
}

func (g Goal) String() string {
	if g.atLeast == nil {
		return fmt.Sprintf("up to %s", g.ideal)
	}
	return fmt.Sprintf("%d..%s", g.atLeast.Quantity(), g.ideal)
}
