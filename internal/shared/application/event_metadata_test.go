package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

type stampedEvent struct {
	domain.BaseEvent
}

func TestNewEventMetadata(t *testing.T) {
	first := NewEventMetadata(context.Background(), "planning.generate_plan")
	second := NewEventMetadata(context.Background(), "planning.generate_plan")

	assert.Equal(t, "planning.generate_plan", first.Source)
	assert.NotEqual(t, uuid.Nil, first.CorrelationID)
	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
	assert.NotEqual(t, first.CausationID, second.CausationID)
}

func TestNewEventMetadata_CorrelationFromContext(t *testing.T) {
	id := uuid.New()
	ctx := observability.WithCorrelationID(context.Background(), id.String())

	first := NewEventMetadata(ctx, "a")
	second := NewEventMetadata(ctx, "b")

	assert.Equal(t, id, first.CorrelationID)
	assert.Equal(t, id, second.CorrelationID)
	assert.NotEqual(t, first.CausationID, second.CausationID)

	// not a uuid
	other := NewEventMetadata(observability.WithCorrelationID(context.Background(), "req-42"), "c")
	assert.NotEqual(t, uuid.Nil, other.CorrelationID)
}

func TestApplyEventMetadata(t *testing.T) {
	a := &stampedEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Test", "test.a")}
	b := &stampedEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Test", "test.b")}
	meta := NewEventMetadata(context.Background(), "test")

	ApplyEventMetadata([]domain.DomainEvent{a, b}, meta)

	assert.Equal(t, meta, a.Metadata())
	assert.Equal(t, meta.CorrelationID, b.Metadata().CorrelationID)

	assert.NotPanics(t, func() { ApplyEventMetadata(nil, meta) })
}

func TestApplyEventMetadata_SkipsValueEvents(t *testing.T) {
	// a value event has no addressable BaseEvent to stamp
	event := stampedEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Test", "test.value")}

	ApplyEventMetadata([]domain.DomainEvent{event}, NewEventMetadata(context.Background(), "test"))

	assert.Equal(t, domain.EventMetadata{}, event.Metadata())
}
