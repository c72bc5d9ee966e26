package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	aggregateType = "UsageRegister"

	RoutingKeyUsageRecorded = "goals.usage.recorded"
)

// UsageRecorded is emitted when a committed action is added to a register.
type UsageRecorded struct {
	sharedDomain.BaseEvent
	ActivityID  uuid.UUID `json:"activity_id"`
	GoalID      uuid.UUID `json:"goal_id"`
	Unit        string    `json:"unit"`
	BucketIndex uint64    `json:"bucket_index"`
	Quantity    uint32    `json:"quantity"`
	Moment      time.Time `json:"moment"`
}

// NewUsageRecorded creates a UsageRecorded event.
func NewUsageRecorded(r *UsageRegister, unit TimeUnit, index uint64, quantity uint32, moment time.Time) *UsageRecorded {
	return &UsageRecorded{
		BaseEvent:   sharedDomain.NewBaseEvent(r.ID(), aggregateType, RoutingKeyUsageRecorded),
		ActivityID:  r.activityID.UUID(),
		GoalID:      r.goalID.UUID(),
		Unit:        unit.String(),
		BucketIndex: index,
		Quantity:    quantity,
		Moment:      moment,
	}
}
