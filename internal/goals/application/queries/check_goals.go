package queries

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/cadence/internal/goals/domain"
	planning "github.com/felixgeelhaar/cadence/internal/planning/domain"
)

// GoalRef names one activity goal to check.
type GoalRef struct {
	ActivityID planning.ActivityID
	Name       string
	Goal       domain.Goal
}

// CheckGoalsQuery asks whether the goals are met at Moment.
type CheckGoalsQuery struct {
	Epoch  time.Time
	Moment time.Time
	Goals  []GoalRef
}

// GoalStatus is the state of one goal at the queried moment.
type GoalStatus struct {
	ActivityID planning.ActivityID
	Name       string
	Unit       string
	Current    uint32
	AtLeast    *uint32
	Ideal      uint32
	Meeting    bool
}

// CheckGoalsResult lists each goal and whether all of them are met.
type CheckGoalsResult struct {
	Moment     time.Time
	Goals      []GoalStatus
	AllMeeting bool
}

// CheckGoalsHandler handles CheckGoalsQuery.
type CheckGoalsHandler struct {
	repo domain.Repository
}

func NewCheckGoalsHandler(repo domain.Repository) *CheckGoalsHandler {
	return &CheckGoalsHandler{repo: repo}
}

func (h *CheckGoalsHandler) Handle(ctx context.Context, query CheckGoalsQuery) (*CheckGoalsResult, error) {
	tracker := domain.NewTracker(query.Epoch)
	names := make(map[planning.ActivityID]string, len(query.Goals))

	for _, ref := range query.Goals {
		register, err := h.repo.FindByActivityAndGoal(ctx, ref.ActivityID, ref.Goal.ID())
		if err != nil && !errors.Is(err, domain.ErrRegisterNotFound) {
			return nil, err
		}
		tracker.Track(ref.ActivityID, ref.Goal, register)
		names[ref.ActivityID] = ref.Name
	}

	result := &CheckGoalsResult{
		Moment:     query.Moment,
		AllMeeting: tracker.IsMeetingAll(query.Moment),
	}
	for _, e := range tracker.Entries() {
		status := GoalStatus{
			ActivityID: e.ActivityID,
			Name:       names[e.ActivityID],
			Unit:       e.Goal.Unit().String(),
			Ideal:      e.Goal.Ideal().Quantity(),
			Meeting:    tracker.IsMeeting(e.ActivityID, query.Moment),
		}
		if atLeast, ok := e.Goal.AtLeast(); ok {
			q := atLeast.Quantity()
			status.AtLeast = &q
		}
		if e.Register != nil {
			status.Current, _ = e.Register.Get(query.Moment, e.Goal.Unit())
		}
		result.Goals = append(result.Goals, status)
	}
	return result, nil
}
