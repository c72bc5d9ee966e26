package domain

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrMomentBeforeEpoch = errors.New("moment is before the register epoch")
	ErrRegisterNotFound  = errors.New("usage register not found")
	ErrGoalMismatch      = errors.New("goal does not belong to this register")
	ErrRegisterConflict  = errors.New("usage register was modified concurrently")
)

// Bucket is one accumulated slot of a register.
type Bucket struct {
	Unit     TimeUnit
	Index    uint64
	Quantity uint32
}

// UsageRegister accumulates the usage of one activity towards one goal in
// buckets counted from a fixed epoch. It only grows. It is safe for
// concurrent use; writers to the same register serialize.
type UsageRegister struct {
	sharedDomain.BaseAggregateRoot
	mu         sync.RWMutex
	activityID planning.ActivityID
	goalID     GoalID
	epoch      time.Time
	buckets    map[TimeUnit]map[uint64]uint32
}

// NewUsageRegister creates an empty register starting at epoch.
func NewUsageRegister(activityID planning.ActivityID, goalID GoalID, epoch time.Time) *UsageRegister {
	return &UsageRegister{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		activityID:        activityID,
		goalID:            goalID,
		epoch:             epoch,
		buckets:           make(map[TimeUnit]map[uint64]uint32),
	}
}

// RehydrateUsageRegister recreates a register from persisted state.
func RehydrateUsageRegister(
	id uuid.UUID,
	activityID planning.ActivityID,
	goalID GoalID,
	epoch time.Time,
	buckets []Bucket,
	createdAt, updatedAt time.Time,
	version int,
) *UsageRegister {
	r := &UsageRegister{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(id, createdAt, updatedAt, version),
		activityID:        activityID,
		goalID:            goalID,
		epoch:             epoch,
		buckets:           make(map[TimeUnit]map[uint64]uint32),
	}
	for _, b := range buckets {
		r.bucket(b.Unit)[b.Index] = b.Quantity
	}
	return r
}

func (r *UsageRegister) ActivityID() planning.ActivityID { return r.activityID }
func (r *UsageRegister) GoalID() GoalID                  { return r.goalID }
func (r *UsageRegister) Epoch() time.Time                { return r.epoch }

func (r *UsageRegister) bucket(unit TimeUnit) map[uint64]uint32 {
	b, ok := r.buckets[unit]
	if !ok {
		b = make(map[uint64]uint32)
		r.buckets[unit] = b
	}
	return b
}

// Index returns the bucket holding moment for unit. Fixed-length units count
// elapsed time since the epoch; months and years count calendar fields in the
// epoch's location, so every moment of one calendar month shares a bucket.
func (r *UsageRegister) Index(moment time.Time, unit TimeUnit) (uint64, error) {
	if !unit.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTimeUnit, int(unit))
	}
	if moment.Before(r.epoch) {
		return 0, fmt.Errorf("%w: %s < %s", ErrMomentBeforeEpoch, moment.Format(time.RFC3339), r.epoch.Format(time.RFC3339))
	}

	if length, ok := unit.fixedLength(); ok {
		return uint64(moment.Sub(r.epoch) / length), nil
	}

	local := moment.In(r.epoch.Location())
	years := local.Year() - r.epoch.Year()
	if unit == Years {
		return uint64(years), nil
	}
	return uint64(12*years + int(local.Month()) - int(r.epoch.Month())), nil
}

// Add accumulates quantity into the bucket of moment for unit.
func (r *UsageRegister) Add(moment time.Time, unit TimeUnit, quantity uint32) error {
	i, err := r.Index(moment, unit)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bucket(unit)[i] += quantity
	r.Touch()
	return nil
}

// Get returns the accumulated value of the bucket holding moment.
func (r *UsageRegister) Get(moment time.Time, unit TimeUnit) (uint32, bool) {
	i, err := r.Index(moment, unit)
	if err != nil {
		return 0, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.buckets[unit][i]
	return v, ok
}

// IsMeeting reports whether the bucket of moment in the goal's unit lies
// within the goal. An empty bucket never meets a goal.
func (r *UsageRegister) IsMeeting(goal Goal, moment time.Time) bool {
	v, ok := r.Get(moment, goal.Unit())
	if !ok {
		return false
	}
	return goal.Accepts(v)
}

// RecordAction adds one committed action towards goal and records a
// UsageRecorded event.
func (r *UsageRegister) RecordAction(goal Goal, action planning.Action) error {
	if goal.ID() != r.goalID {
		return ErrGoalMismatch
	}
	quantity := goal.Measure().Quantity(action.Duration())
	if err := r.Add(action.Start(), goal.Unit(), quantity); err != nil {
		return err
	}
	i, _ := r.Index(action.Start(), goal.Unit())

	r.mu.Lock()
	r.AddDomainEvent(NewUsageRecorded(r, goal.Unit(), i, quantity, action.Start()))
	r.mu.Unlock()
	return nil
}

// Buckets returns a snapshot of every bucket ordered by unit then index.
func (r *UsageRegister) Buckets() []Bucket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Bucket, 0)
	for unit, slots := range r.buckets {
		for i, q := range slots {
			out = append(out, Bucket{Unit: unit, Index: i, Quantity: q})
		}
	}
	slices.SortFunc(out, func(a, b Bucket) int {
		if a.Unit != b.Unit {
			return int(a.Unit) - int(b.Unit)
		}
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	})
	return out
}
