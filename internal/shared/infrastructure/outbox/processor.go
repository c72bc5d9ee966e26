package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/eventbus"
)

// ProcessorConfig tunes the relay.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	// PublishRate caps published messages per second. Zero is unlimited.
	PublishRate int
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

// Stats counts relay outcomes since the processor was created.
type Stats struct {
	Published uint64
	Failed    uint64
	Dead      uint64
	LastError string
}

// Processor relays stored messages to a Publisher. A message that keeps
// failing is retried with exponential backoff and dead-lettered after
// MaxRetries attempts.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	limiter   *rate.Limiter
	now       func() time.Time

	mu    sync.Mutex
	stats Stats
}

func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultProcessorConfig().BatchSize
	}
	p := &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
	if config.PublishRate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(config.PublishRate), config.PublishRate)
	}
	return p
}

// Run polls until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	interval := p.config.PollInterval
	if interval <= 0 {
		interval = DefaultProcessorConfig().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("outbox relay started", "poll_interval", interval, "batch_size", p.config.BatchSize)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error("outbox batch failed", "error", err)
			}
		}
	}
}

// Drain processes batches until nothing is due and returns how many
// messages were published.
func (p *Processor) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		published, seen, err := p.process(ctx)
		total += published
		if err != nil || seen < p.config.BatchSize || published == 0 {
			return total, err
		}
	}
}

// ProcessOnce handles one batch and returns how many messages it published.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	published, _, err := p.process(ctx)
	return published, err
}

func (p *Processor) process(ctx context.Context) (published, seen int, err error) {
	msgs, err := p.repo.Pending(ctx, p.now(), p.config.BatchSize)
	if err != nil {
		p.record(func(s *Stats) { s.LastError = err.Error() })
		return 0, 0, err
	}

	for _, msg := range msgs {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return published, len(msgs), err
			}
		}
		if err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload); err != nil {
			p.fail(ctx, msg, err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, msg.ID, p.now()); err != nil {
			// the message goes out again on the next pass
			p.logger.Error("failed to mark message published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			continue
		}
		published++
		p.record(func(s *Stats) { s.Published++ })
	}
	return published, len(msgs), nil
}

func (p *Processor) fail(ctx context.Context, msg *Message, cause error) {
	meta := msg.EventMetadata()
	p.logger.Warn("failed to publish message",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		"correlation_id", meta.CorrelationID,
		"retry", msg.RetryCount+1,
		"error", cause,
	)

	reason := cause.Error()
	if msg.RetryCount+1 >= p.config.MaxRetries {
		p.record(func(s *Stats) { s.Dead++; s.LastError = reason })
		if err := p.repo.MarkDead(ctx, msg.ID, reason, p.now()); err != nil {
			p.logger.Error("failed to dead-letter message", "id", msg.ID, "error", err)
		}
		return
	}

	p.record(func(s *Stats) { s.Failed++; s.LastError = reason })
	next := p.now().Add(p.backoff(msg.RetryCount + 1))
	if err := p.repo.MarkFailed(ctx, msg.ID, reason, next); err != nil {
		p.logger.Error("failed to mark message failed", "id", msg.ID, "error", err)
	}
}

// backoff doubles from RetryBackoffBase per attempt and caps at
// RetryBackoffMax.
func (p *Processor) backoff(attempt int) time.Duration {
	base, limit := p.config.RetryBackoffBase, p.config.RetryBackoffMax
	if base <= 0 {
		base = time.Second
	}
	if limit <= 0 {
		limit = time.Minute
	}
	d := base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func (p *Processor) record(fn func(*Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.stats)
}

// Stats returns a snapshot of the counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
