package domain

import (
	"fmt"
	"time"
)

// Constraint is a predicate a placement must satisfy, evaluated against the
// actions already placed for the same activity.
type Constraint interface {
	Name() string
	Satisfied(candidate Action, placed []Action) bool
	String() string
}

// Anchored is implemented by constraints that only accept placements starting
// at particular instants. The scheduler tries those starts in addition to the
// start of every free segment.
type Anchored interface {
	Anchors(window DateTimeRange) []time.Time
}

// FixedLength is implemented by constraints that pin the length of every placement.
type FixedLength interface {
	SessionLength() time.Duration
}

// TimeSlot restricts placements to a clock window on one weekday. The window
// end is inclusive: a placement may finish exactly at it.
type TimeSlot struct {
	weekday time.Weekday
	window  TimeRange
}

// NewTimeSlot creates a weekday window constraint.
func NewTimeSlot(weekday time.Weekday, window TimeRange) *TimeSlot {
	return &TimeSlot{weekday: weekday, window: window}
}

func (c *TimeSlot) Name() string          { return "time_slot" }
func (c *TimeSlot) Weekday() time.Weekday { return c.weekday }
func (c *TimeSlot) Window() TimeRange     { return c.window }

func (c *TimeSlot) Satisfied(candidate Action, _ []Action) bool {
	start := candidate.Start()
	if start.Weekday() != c.weekday {
		return false
	}
	date := DateOf(start)
	slot := DateTimeRange{
		start: date.At(c.window.Start(), start.Location()),
		end:   date.At(c.window.End(), start.Location()),
	}
	return slot.Contains(candidate.Span())
}

func (c *TimeSlot) Anchors(window DateTimeRange) []time.Time {
	loc := window.Start().Location()
	anchors := make([]time.Time, 0, 1)
	for d := DateOf(window.Start()); d.Midnight(loc).Before(window.End()); d = d.AddDays(1) {
		if d.Weekday() != c.weekday {
			continue
		}
		at := d.At(c.window.Start(), loc)
		if window.ContainsPoint(at) {
			anchors = append(anchors, at)
		}
	}
	return anchors
}

func (c *TimeSlot) String() string {
	return fmt.Sprintf("time_slot(%s %s)", c.weekday, c.window)
}

// MinimumSession requires every placement of the activity to last at least
// the given duration.
type MinimumSession struct {
	duration time.Duration
}

// NewMinimumSession creates a minimum session length constraint.
func NewMinimumSession(duration time.Duration) *MinimumSession {
	return &MinimumSession{duration: duration}
}

func (c *MinimumSession) Name() string            { return "minimum_session" }
func (c *MinimumSession) Duration() time.Duration { return c.duration }

func (c *MinimumSession) Satisfied(candidate Action, placed []Action) bool {
	if candidate.Duration() < c.duration {
		return false
	}
	for _, a := range placed {
		if a.Duration() < c.duration {
			return false
		}
	}
	return true
}

func (c *MinimumSession) String() string {
	return fmt.Sprintf("minimum_session(%s)", c.duration)
}

// TimeOfDay requires placements to start at an exact clock time and last an
// exact duration.
type TimeOfDay struct {
	clock    ClockTime
	duration time.Duration
}

// NewTimeOfDay creates a fixed start and length constraint.
func NewTimeOfDay(clock ClockTime, duration time.Duration) *TimeOfDay {
	return &TimeOfDay{clock: clock, duration: duration}
}

func (c *TimeOfDay) Name() string                 { return "time_of_day" }
func (c *TimeOfDay) Clock() ClockTime             { return c.clock }
func (c *TimeOfDay) Duration() time.Duration      { return c.duration }
func (c *TimeOfDay) SessionLength() time.Duration { return c.duration }

func (c *TimeOfDay) Satisfied(candidate Action, _ []Action) bool {
	return ClockOf(candidate.Start()) == c.clock && candidate.Duration() == c.duration
}

func (c *TimeOfDay) Anchors(window DateTimeRange) []time.Time {
	loc := window.Start().Location()
	anchors := make([]time.Time, 0, 1)
	for d := DateOf(window.Start()); d.Midnight(loc).Before(window.End()); d = d.AddDays(1) {
		at := d.At(c.clock, loc)
		if window.ContainsPoint(at) {
			anchors = append(anchors, at)
		}
	}
	return anchors
}

func (c *TimeOfDay) String() string {
	return fmt.Sprintf("time_of_day(%s for %s)", c.clock, c.duration)
}

// ConstraintSet holds a collection of constraints
type ConstraintSet struct {
	constraints []Constraint
}

// NewConstraintSet creates a new constraint set
func NewConstraintSet(constraints ...Constraint) *ConstraintSet {
	cs := &ConstraintSet{constraints: make([]Constraint, 0, len(constraints))}
	for _, c := range constraints {
		cs.Add(c)
	}
	return cs
}

// Add adds a constraint to the set
func (cs *ConstraintSet) Add(c Constraint) {
	if c == nil {
		return
	}
	cs.constraints = append(cs.constraints, c)
}

// All returns the constraints in insertion order.
func (cs *ConstraintSet) All() []Constraint {
	out := make([]Constraint, len(cs.constraints))
	copy(out, cs.constraints)
	return out
}

func (cs *ConstraintSet) Len() int { return len(cs.constraints) }

// Validate checks if a candidate satisfies every constraint.
func (cs *ConstraintSet) Validate(candidate Action, placed []Action) bool {
	for _, c := range cs.constraints {
		if !c.Satisfied(candidate, placed) {
			return false
		}
	}
	return true
}

// Anchors collects the preferred start instants of every anchored constraint
// within window.
func (cs *ConstraintSet) Anchors(window DateTimeRange) []time.Time {
	var anchors []time.Time
	for _, c := range cs.constraints {
		if a, ok := c.(Anchored); ok {
			anchors = append(anchors, a.Anchors(window)...)
		}
	}
	return anchors
}

// SessionLength returns the length pinned by a FixedLength constraint, if any.
func (cs *ConstraintSet) SessionLength() (time.Duration, bool) {
	for _, c := range cs.constraints {
		if f, ok := c.(FixedLength); ok {
			return f.SessionLength(), true
		}
	}
	return 0, false
}
