package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var outboxPrune bool

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Relay stored domain events",
}

var outboxRelayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish stored events until interrupted",
	Long: `Polls the outbox and publishes due events until interrupted.
Published events are pruned on OUTBOX_PRUNE_SCHEDULE unless --prune=false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		processor := a.container.OutboxProcessor
		before := processor.Stats()

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error { return processor.Run(ctx) })
		if outboxPrune {
			g.Go(func() error {
				return a.container.OutboxPruner.Run(ctx, a.container.Config.OutboxPruneSchedule)
			})
		}
		err = g.Wait()
		a.recordRelay(before)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		stats := processor.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "Relay stopped: %d published, %d failed, %d dead\n",
			stats.Published-before.Published, stats.Failed-before.Failed, stats.Dead-before.Dead)
		return nil
	},
}

var outboxFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Publish every due event once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		n, err := a.drain(cmd.Context())
		if err != nil {
			return fmt.Errorf("flush failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published %d events\n", n)
		if last := a.container.OutboxProcessor.Stats().LastError; last != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Last error: %s\n", last)
		}
		return nil
	},
}

var outboxPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete published events older than OUTBOX_RETENTION",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		pruner := a.container.OutboxPruner
		cutoff := pruner.Cutoff()
		n, err := pruner.Prune(cmd.Context())
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d events published before %s\n", n, cutoff.Format(time.RFC3339))
		return nil
	},
}

func init() {
	outboxRelayCmd.Flags().BoolVar(&outboxPrune, "prune", true, "prune published events on OUTBOX_PRUNE_SCHEDULE")

	outboxCmd.AddCommand(outboxRelayCmd)
	outboxCmd.AddCommand(outboxFlushCmd)
	outboxCmd.AddCommand(outboxPruneCmd)
	rootCmd.AddCommand(outboxCmd)
}
