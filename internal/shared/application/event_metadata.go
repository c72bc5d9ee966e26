package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/cadence/internal/shared/domain"
	"github.com/felixgeelhaar/cadence/pkg/observability"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates the metadata shared by every event one command
// raises. source names the command, for example "goals.record_usage". The
// correlation ID is taken from ctx when it carries a valid one, so events
// can be traced back to the CLI invocation that caused them.
func NewEventMetadata(ctx context.Context, source string) domain.EventMetadata {
	correlationID, err := uuid.Parse(observability.CorrelationIDFromContext(ctx))
	if err != nil {
		correlationID = uuid.New()
	}
	return domain.EventMetadata{
		CorrelationID: correlationID,
		CausationID:   uuid.New(),
		Source:        source,
	}
}

// ApplyEventMetadata stamps metadata on the events that accept it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
