package eventbus

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Handler receives events delivered by a LocalBus.
type Handler func(ctx context.Context, routingKey string, payload []byte) error

type subscription struct {
	pattern []string
	handle  Handler
}

// LocalBus is the in-process Publisher used when no broker is configured.
// Delivery is synchronous. Patterns follow AMQP topic rules: words are
// separated by '.', '*' matches one word and '#' matches zero or more.
type LocalBus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

func NewLocalBus(logger *slog.Logger) *LocalBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBus{logger: logger}
}

// Subscribe registers h for every routing key matching pattern.
func (b *LocalBus) Subscribe(pattern string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: strings.Split(pattern, "."), handle: h})
}

// Publish hands the payload to each matching handler. Handler failures are
// logged and do not fail the publish; a local subscriber must not be able
// to roll back the producer.
func (b *LocalBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	key := strings.Split(routingKey, ".")
	delivered := 0
	for _, s := range subs {
		if !matchTopic(s.pattern, key) {
			continue
		}
		delivered++
		if err := s.handle(ctx, routingKey, payload); err != nil {
			b.logger.Error("local event handler failed", "routing_key", routingKey, "error", err)
		}
	}
	b.logger.Debug("event dispatched", "routing_key", routingKey, "handlers", delivered)
	return nil
}

func (b *LocalBus) Close() error { return nil }

func matchTopic(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchTopic(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchTopic(pattern[1:], key[1:])
	default:
		return len(key) > 0 && key[0] == pattern[0] && matchTopic(pattern[1:], key[1:])
	}
}
