// Package eventbus delivers serialized domain events to a broker.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/cadence/internal/shared/domain"
)

// Publisher sends a payload under a topic routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// PublishEvents serializes events and publishes them in order, stopping at
// the first failure.
func PublishEvents(ctx context.Context, p Publisher, events []domain.DomainEvent) error {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", e.RoutingKey(), err)
		}
		if err := p.Publish(ctx, e.RoutingKey(), payload); err != nil {
			return fmt.Errorf("publish %s: %w", e.RoutingKey(), err)
		}
	}
	return nil
}

// NoopPublisher discards everything.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }
