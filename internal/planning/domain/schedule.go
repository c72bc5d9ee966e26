package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrActionOverlap      = errors.New("actions overlap")
	ErrActionOutsideCycle = errors.New("action lies outside the cycle")
	ErrActionInBreak      = errors.New("action intersects a break")
	ErrActionNotFound     = errors.New("action not found")
)

// Schedule maps each activity of a cycle to its placed actions. Actions of one
// activity are kept in chronological order.
type Schedule struct {
	cycle    Cycle
	order    []ActivityID
	actions  map[ActivityID][]Action
	warnings []string
}

// NewSchedule creates an empty schedule for cycle. ids fixes the order in
// which activities are reported.
func NewSchedule(cycle Cycle, ids ...ActivityID) *Schedule {
	s := &Schedule{
		cycle:   cycle,
		order:   make([]ActivityID, 0, len(ids)),
		actions: make(map[ActivityID][]Action, len(ids)),
	}
	for _, id := range ids {
		s.track(id)
	}
	return s
}

// RehydrateSchedule rebuilds a schedule from stored actions.
func RehydrateSchedule(cycle Cycle, ids []ActivityID, actions []Action, warnings []string) *Schedule {
	s := NewSchedule(cycle, ids...)
	for _, a := range actions {
		s.Place(a)
	}
	s.warnings = slices.Clone(warnings)
	return s
}

func (s *Schedule) track(id ActivityID) {
	if _, ok := s.actions[id]; ok {
		return
	}
	s.order = append(s.order, id)
	s.actions[id] = make([]Action, 0)
}

func (s *Schedule) Cycle() Cycle { return s.cycle }

// ActivityIDs returns the activities in report order.
func (s *Schedule) ActivityIDs() []ActivityID { return slices.Clone(s.order) }

// Actions returns the actions of one activity in chronological order.
func (s *Schedule) Actions(id ActivityID) []Action {
	return slices.Clone(s.actions[id])
}

// AllActions returns every action in chronological order.
func (s *Schedule) AllActions() []Action {
	all := make([]Action, 0, s.Len())
	for _, id := range s.order {
		all = append(all, s.actions[id]...)
	}
	slices.SortStableFunc(all, compareActions)
	return all
}

// Len returns the number of placed actions.
func (s *Schedule) Len() int {
	n := 0
	for _, acts := range s.actions {
		n += len(acts)
	}
	return n
}

// Place adds an action. It does not check for conflicts; see Validate.
func (s *Schedule) Place(a Action) {
	s.track(a.ActivityID())
	acts := s.actions[a.ActivityID()]
	i, _ := slices.BinarySearchFunc(acts, a, compareActions)
	s.actions[a.ActivityID()] = slices.Insert(acts, i, a)
}

// Remove deletes one action equal to a.
func (s *Schedule) Remove(a Action) error {
	acts := s.actions[a.ActivityID()]
	i := slices.IndexFunc(acts, a.Equal)
	if i < 0 {
		return ErrActionNotFound
	}
	s.actions[a.ActivityID()] = slices.Delete(acts, i, i+1)
	return nil
}

// Replace swaps all actions of one activity.
func (s *Schedule) Replace(id ActivityID, actions []Action) {
	s.track(id)
	sorted := slices.Clone(actions)
	slices.SortFunc(sorted, compareActions)
	s.actions[id] = sorted
}

// TotalDuration sums the actions of one activity.
func (s *Schedule) TotalDuration(id ActivityID) time.Duration {
	var total time.Duration
	for _, a := range s.actions[id] {
		total += a.Duration()
	}
	return total
}

// DurationWithin sums the part of each action of one activity that falls in span.
func (s *Schedule) DurationWithin(id ActivityID, span DateTimeRange) time.Duration {
	var total time.Duration
	for _, a := range s.actions[id] {
		if part, ok := a.Span().Intersect(span); ok {
			total += part.Duration()
		}
	}
	return total
}

// AddWarning records a non-fatal planning outcome.
func (s *Schedule) AddWarning(msg string) {
	s.warnings = append(s.warnings, msg)
}

func (s *Schedule) Warnings() []string { return slices.Clone(s.warnings) }

// Clone returns a deep copy that shares no action state with s.
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{
		cycle:    s.cycle,
		order:    slices.Clone(s.order),
		actions:  make(map[ActivityID][]Action, len(s.actions)),
		warnings: slices.Clone(s.warnings),
	}
	for id, acts := range s.actions {
		c.actions[id] = slices.Clone(acts)
	}
	return c
}

// Equal reports structural equality: same cycle and the same actions per activity.
// Warnings and report order are ignored.
func (s *Schedule) Equal(other *Schedule) bool {
	if other == nil || !s.cycle.Equal(other.cycle) {
		return false
	}
	if s.Len() != other.Len() {
		return false
	}
	for id, acts := range s.actions {
		if !slices.EqualFunc(acts, other.actions[id], Action.Equal) {
			return false
		}
	}
	return true
}

// Validate checks that no two actions overlap, every action lies inside
// bounds and none touches a break.
func (s *Schedule) Validate(bounds DateTimeRange, breaks []DateTimeRange) error {
	all := s.AllActions()
	for i, a := range all {
		if !bounds.Contains(a.Span()) {
			return fmt.Errorf("%w: %s", ErrActionOutsideCycle, a)
		}
		for _, b := range breaks {
			if a.Span().Overlaps(b) {
				return fmt.Errorf("%w: %s", ErrActionInBreak, a)
			}
		}
		if i > 0 && all[i-1].Overlaps(a) {
			return fmt.Errorf("%w: %s and %s", ErrActionOverlap, all[i-1], a)
		}
	}
	return nil
}
