package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrActivityEmptyName    = errors.New("activity name cannot be empty")
	ErrActivityMissingKind  = errors.New("activity kind is required")
	ErrInvalidInterval      = errors.New("invalid activity interval")
	ErrInvalidDuration      = errors.New("duration must be positive")
	ErrInvalidOccurrences   = errors.New("occurrence count must be positive")
	ErrRepeatableBoundOrder = errors.New("repeatable bounds must satisfy min <= desirable <= max")
)

// ActivityID identifies an activity for its whole lifetime.
type ActivityID uuid.UUID

// NewActivityID generates a random activity id.
func NewActivityID() ActivityID {
	return ActivityID(uuid.New())
}

// ActivityIDFromName derives a stable id from a name, so definitions read
// from a file keep their identity across runs.
func ActivityIDFromName(name string) ActivityID {
	return ActivityID(uuid.NewSHA1(uuid.NameSpaceOID, []byte("cadence.activity."+strings.ToLower(strings.TrimSpace(name)))))
}

// ParseActivityID parses the canonical uuid form.
func ParseActivityID(s string) (ActivityID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ActivityID{}, fmt.Errorf("invalid activity id %q: %w", s, err)
	}
	return ActivityID(id), nil
}

func (id ActivityID) UUID() uuid.UUID { return uuid.UUID(id) }
func (id ActivityID) String() string  { return uuid.UUID(id).String() }

// Interval is the scope over which an activity's demand resets.
type Interval string

const (
	IntervalDaily    Interval = "daily"
	IntervalWeekly   Interval = "weekly"
	IntervalPerCycle Interval = "per_cycle"
)

// IsValid checks if the interval is known.
func (i Interval) IsValid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalPerCycle:
		return true
	default:
		return false
	}
}

// Scopes splits the cycle into the spans over which demand resets.
// Weekly scopes are seven-day runs counted from the cycle start; the last one
// may be shorter.
func (i Interval) Scopes(cycle Cycle, loc *time.Location) []DateTimeRange {
	var step int
	switch i {
	case IntervalDaily:
		step = 1
	case IntervalWeekly:
		step = 7
	default:
		return []DateTimeRange{cycle.Bounds(loc)}
	}

	scopes := make([]DateTimeRange, 0, cycle.Days()/step+1)
	for d := cycle.Start(); d.Compare(cycle.End()) < 0; d = d.AddDays(step) {
		end := d.AddDays(step)
		if end.Compare(cycle.End()) > 0 {
			end = cycle.End()
		}
		scopes = append(scopes, DateTimeRange{start: d.Midnight(loc), end: end.Midnight(loc)})
	}
	return scopes
}

// Kind is the demand an activity places on the schedule: a Habit or a Repeatable.
type Kind interface {
	Interval() Interval
	Index() DesirabilityIndex
	isKind()
}

// Habit needs a fixed number of fixed-length occurrences per interval.
type Habit struct {
	duration time.Duration
	times    int
	interval Interval
	index    DesirabilityIndex
}

// NewHabit creates a habit demand.
func NewHabit(duration time.Duration, times int, interval Interval, index DesirabilityIndex) (*Habit, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if times <= 0 {
		return nil, ErrInvalidOccurrences
	}
	if !interval.IsValid() {
		return nil, ErrInvalidInterval
	}
	return &Habit{duration: duration, times: times, interval: interval, index: index}, nil
}

func (h *Habit) Duration() time.Duration  { return h.duration }
func (h *Habit) Times() int               { return h.times }
func (h *Habit) Interval() Interval       { return h.interval }
func (h *Habit) Index() DesirabilityIndex { return h.index }
func (h *Habit) isKind()                  {}

// Repeatable needs a flexible total duration per interval, aiming at the
// desirable amount and bounded by an optional minimum and maximum.
type Repeatable struct {
	desirable time.Duration
	min       time.Duration
	max       time.Duration
	hasMin    bool
	hasMax    bool
	interval  Interval
	index     DesirabilityIndex
}

// RepeatableOption configures optional bounds of a Repeatable.
type RepeatableOption func(*Repeatable)

// WithMinimum sets the least acceptable total per interval.
func WithMinimum(d time.Duration) RepeatableOption {
	return func(r *Repeatable) {
		r.min = d
		r.hasMin = true
	}
}

// WithMaximum caps the total per interval.
func WithMaximum(d time.Duration) RepeatableOption {
	return func(r *Repeatable) {
		r.max = d
		r.hasMax = true
	}
}

// NewRepeatable creates a repeatable demand.
func NewRepeatable(desirable time.Duration, interval Interval, index DesirabilityIndex, opts ...RepeatableOption) (*Repeatable, error) {
	if desirable <= 0 {
		return nil, ErrInvalidDuration
	}
	if !interval.IsValid() {
		return nil, ErrInvalidInterval
	}

	r := &Repeatable{desirable: desirable, interval: interval, index: index}
	for _, opt := range opts {
		opt(r)
	}

	if r.hasMin && (r.min < 0 || r.min > r.desirable) {
		return nil, ErrRepeatableBoundOrder
	}
	if r.hasMax && r.max < r.desirable {
		return nil, ErrRepeatableBoundOrder
	}
	return r, nil
}

func (r *Repeatable) Desirable() time.Duration { return r.desirable }
func (r *Repeatable) Interval() Interval       { return r.interval }
func (r *Repeatable) Index() DesirabilityIndex { return r.index }
func (r *Repeatable) isKind()                  {}

// Min returns the minimum total and whether one is set.
func (r *Repeatable) Min() (time.Duration, bool) { return r.min, r.hasMin }

// Max returns the maximum total and whether one is set.
func (r *Repeatable) Max() (time.Duration, bool) { return r.max, r.hasMax }

// Required is the total below which the interval is infeasible.
func (r *Repeatable) Required() time.Duration {
	if r.hasMin {
		return r.min
	}
	return 0
}

// Activity is something the user wants to fit into their cycles.
// Two activities are the same activity when their ids match.
type Activity struct {
	id          ActivityID
	name        string
	description string
	kind        Kind
	constraints *ConstraintSet
}

// NewActivity creates an activity with a fresh id.
func NewActivity(name string, kind Kind, constraints ...Constraint) (*Activity, error) {
	return RehydrateActivity(NewActivityID(), name, "", kind, constraints...)
}

// RehydrateActivity creates an activity with a known id.
func RehydrateActivity(id ActivityID, name, description string, kind Kind, constraints ...Constraint) (*Activity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrActivityEmptyName
	}
	if kind == nil {
		return nil, ErrActivityMissingKind
	}
	return &Activity{
		id:          id,
		name:        name,
		description: strings.TrimSpace(description),
		kind:        kind,
		constraints: NewConstraintSet(constraints...),
	}, nil
}

func (a *Activity) ID() ActivityID              { return a.id }
func (a *Activity) Name() string                { return a.name }
func (a *Activity) Description() string         { return a.description }
func (a *Activity) Kind() Kind                  { return a.kind }
func (a *Activity) Constraints() *ConstraintSet { return a.constraints }

// Equals compares activities by identity only.
func (a *Activity) Equals(other *Activity) bool {
	if other == nil {
		return false
	}
	return a.id == other.id
}
