package domain

import (
	"errors"
	"sync"
	"time"

	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
)

var ErrActivityNotTracked = errors.New("activity is not tracked")

// Tracked ties an activity to its goal and, once usage exists, its register.
type Tracked struct {
	ActivityID planning.ActivityID
	Goal       Goal
	Register   *UsageRegister
}

// Tracker answers goal queries over a set of tracked activities.
type Tracker struct {
	mu      sync.RWMutex
	epoch   time.Time
	order   []planning.ActivityID
	tracked map[planning.ActivityID]*Tracked
}

// NewTracker creates a tracker. Registers it creates on demand start at epoch.
func NewTracker(epoch time.Time) *Tracker {
	return &Tracker{
		epoch:   epoch,
		tracked: make(map[planning.ActivityID]*Tracked),
	}
}

// Track adds or replaces the goal of an activity. register may be nil.
func (t *Tracker) Track(activityID planning.ActivityID, goal Goal, register *UsageRegister) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.tracked[activityID]; !ok {
		t.order = append(t.order, activityID)
	}
	t.tracked[activityID] = &Tracked{ActivityID: activityID, Goal: goal, Register: register}
}

// Entries returns the tracked activities in the order they were added.
func (t *Tracker) Entries() []Tracked {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Tracked, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.tracked[id])
	}
	return out
}

// Record feeds a committed action into the register of its activity,
// creating the register when the activity has none yet.
func (t *Tracker) Record(action planning.Action) (*UsageRegister, error) {
	t.mu.Lock()
	entry, ok := t.tracked[action.ActivityID()]
	if !ok {
		t.mu.Unlock()
		return nil, ErrActivityNotTracked
	}
	if entry.Register == nil {
		entry.Register = NewUsageRegister(entry.ActivityID, entry.Goal.ID(), t.epoch)
	}
	register, goal := entry.Register, entry.Goal
	t.mu.Unlock()

	if err := register.RecordAction(goal, action); err != nil {
		return nil, err
	}
	return register, nil
}

// IsMeeting reports whether one activity meets its goal at moment.
func (t *Tracker) IsMeeting(activityID planning.ActivityID, moment time.Time) bool {
	t.mu.RLock()
	entry, ok := t.tracked[activityID]
	t.mu.RUnlock()
	if !ok || entry.Register == nil {
		return false
	}
	return entry.Register.IsMeeting(entry.Goal, moment)
}

// IsMeetingAll reports whether every tracked activity meets its goal at
// moment. An activity without a register does not meet its goal; an empty
// tracker meets all of its goals.
func (t *Tracker) IsMeetingAll(moment time.Time) bool {
	for _, e := range t.Entries() {
		if e.Register == nil || !e.Register.IsMeeting(e.Goal, moment) {
			return false
		}
	}
	return true
}
