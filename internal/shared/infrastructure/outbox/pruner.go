package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes published messages once they are older than the retention.
type Pruner struct {
	repo      Repository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewPruner(repo Repository, retention time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{repo: repo, retention: retention, logger: logger, now: time.Now}
}

// Cutoff is the publish time before which messages are deleted.
func (p *Pruner) Cutoff() time.Time {
	return p.now().Add(-p.retention)
}

// Prune deletes once and returns how many messages were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	n, err := p.repo.Prune(ctx, p.Cutoff())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "outbox pruned", "deleted", n, "retention", p.retention)
	}
	return n, nil
}

// Run prunes on the cron spec (five fields or a descriptor such as
// "@daily") until ctx is done.
func (p *Pruner) Run(ctx context.Context, spec string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(spec, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.ErrorContext(ctx, "outbox prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}

	c.Start()
	p.logger.Info("outbox pruner started", "schedule", spec, "retention", p.retention)
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
