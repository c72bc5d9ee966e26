package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "Plan"

	RoutingKeyPlanGenerated = "planning.plan.generated"
)

// Plan is the aggregate wrapping one generated schedule.
type Plan struct {
	sharedDomain.BaseAggregateRoot
	schedule *Schedule
	location *time.Location
}

// NewPlan wraps a schedule and records a PlanGenerated event.
func NewPlan(schedule *Schedule, loc *time.Location) *Plan {
	if loc == nil {
		loc = time.UTC
	}
	p := &Plan{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		schedule:          schedule,
		location:          loc,
	}
	p.AddDomainEvent(NewPlanGenerated(p))
	return p
}

func (p *Plan) Schedule() *Schedule      { return p.schedule }
func (p *Plan) Cycle() Cycle             { return p.schedule.Cycle() }
func (p *Plan) Location() *time.Location { return p.location }

// PlanGenerated is emitted when a schedule has been produced for a cycle
type PlanGenerated struct {
	sharedDomain.BaseEvent
	CycleStart  string         `json:"cycle_start"`
	CycleEnd    string         `json:"cycle_end"`
	ActionCount int            `json:"action_count"`
	Activities  []uuid.UUID    `json:"activities"`
	Warnings    []string       `json:"warnings,omitempty"`
	Actions     []ActionRecord `json:"actions"`
}

// ActionRecord is the serialized form of an action.
type ActionRecord struct {
	ActivityID uuid.UUID `json:"activity_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// NewPlanGenerated creates a PlanGenerated event
func NewPlanGenerated(p *Plan) *PlanGenerated {
	s := p.schedule
	ids := make([]uuid.UUID, 0, len(s.order))
	for _, id := range s.order {
		ids = append(ids, id.UUID())
	}
	all := s.AllActions()
	records := make([]ActionRecord, 0, len(all))
	for _, a := range all {
		records = append(records, ActionRecord{ActivityID: a.ActivityID().UUID(), Start: a.Start(), End: a.End()})
	}
	return &PlanGenerated{
		BaseEvent:   sharedDomain.NewBaseEvent(p.ID(), AggregateType, RoutingKeyPlanGenerated),
		CycleStart:  s.Cycle().Start().String(),
		CycleEnd:    s.Cycle().End().String(),
		ActionCount: len(all),
		Activities:  ids,
		Warnings:    s.Warnings(),
		Actions:     records,
	}
}
