package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

// snapshot is the stored form of a schedule.
type snapshot struct {
	Start      string           `json:"start"`
	Days       int              `json:"days"`
	Activities []string         `json:"activities"`
	Actions    []actionSnapshot `json:"actions"`
	Warnings   []string         `json:"warnings,omitempty"`
}

type actionSnapshot struct {
	ActivityID string    `json:"activity_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

func encode(s *domain.Schedule) ([]byte, error) {
	snap := snapshot{
		Start:    s.Cycle().Start().String(),
		Days:     s.Cycle().Days(),
		Warnings: s.Warnings(),
	}
	for _, id := range s.ActivityIDs() {
		snap.Activities = append(snap.Activities, id.String())
	}
	for _, a := range s.AllActions() {
		snap.Actions = append(snap.Actions, actionSnapshot{
			ActivityID: a.ActivityID().String(),
			Start:      a.Start(),
			End:        a.End(),
		})
	}
	return json.Marshal(snap)
}

func decode(data []byte) (*domain.Schedule, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}

	start, err := domain.ParseDate(snap.Start)
	if err != nil {
		return nil, err
	}
	cycle, err := domain.NewCycle(start, snap.Days)
	if err != nil {
		return nil, err
	}

	ids := make([]domain.ActivityID, 0, len(snap.Activities))
	for _, raw := range snap.Activities {
		id, err := domain.ParseActivityID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	actions := make([]domain.Action, 0, len(snap.Actions))
	for _, a := range snap.Actions {
		id, err := domain.ParseActivityID(a.ActivityID)
		if err != nil {
			return nil, err
		}
		span, err := domain.NewDateTimeRange(a.Start, a.End)
		if err != nil {
			return nil, err
		}
		actions = append(actions, domain.NewAction(id, span))
	}

	return domain.RehydrateSchedule(cycle, ids, actions, snap.Warnings), nil
}
