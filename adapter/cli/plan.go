package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	planCommands "github.com/felixgeelhaar/cadence/internal/planning/application/commands"
	"github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/felixgeelhaar/cadence/internal/planning/infrastructure/definitions"
)

var (
	planNoCache  bool
	planNoRefine bool
	planMaxSteps int
	planTimeout  time.Duration
	planWatch    bool
)

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Generate a schedule for every cycle of a plan file",
	Long: `Reads a plan file and schedules every activity into each of its
cycles, skipping breaks. Schedules are cached in Redis when REDIS_URL
is set.

Examples:
  cadence plan week.yaml
  cadence plan week.yaml --no-cache --timeout 30s
  cadence plan week.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		if planWatch {
			return watchPlan(cmd, a, args[0])
		}

		def, err := a.load(args[0])
		if err != nil {
			return err
		}
		return runPlan(cmd, a, def)
	},
}

func runPlan(cmd *cobra.Command, a *App, def *definitions.Definition) error {
	result, err := a.generate(cmd.Context(), def, currentPlanOptions())
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	names := activityNames(def)
	out := cmd.OutOrStdout()
	for i, p := range result.Plans {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printPlan(out, p, names)
	}
	return nil
}

// watchPlan replans whenever the file changes. Errors are reported and
// the watch goes on.
func watchPlan(cmd *cobra.Command, a *App, path string) error {
	loc, err := a.container.Config.Location()
	if err != nil {
		return fmt.Errorf("invalid CADENCE_TIMEZONE: %w", err)
	}
	err = definitions.Watch(cmd.Context(), path, loc, 200*time.Millisecond, func(def *definitions.Definition, err error) {
		if err == nil {
			err = runPlan(cmd, a, def)
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "--- watching", path)
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func init() {
	addPlanFlags(planCmd)
	planCmd.Flags().BoolVarP(&planWatch, "watch", "w", false, "replan whenever the file changes")
	rootCmd.AddCommand(planCmd)
}

func addPlanFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&planNoCache, "no-cache", false, "ignore cached schedules")
	cmd.Flags().BoolVar(&planNoRefine, "no-refine", false, "keep back-to-back blocks of repeatable activities separate")
	cmd.Flags().IntVar(&planMaxSteps, "max-steps", 0, "search step budget per cycle (0 uses CADENCE_SEARCH_MAX_STEPS)")
	cmd.Flags().DurationVar(&planTimeout, "timeout", 0, "search time budget per cycle (0 uses CADENCE_SEARCH_TIMEOUT)")
}

func currentPlanOptions() planOptions {
	return planOptions{
		noCache:  planNoCache,
		noRefine: planNoRefine,
		maxSteps: planMaxSteps,
		timeout:  planTimeout,
	}
}

func printPlan(out io.Writer, p planCommands.CyclePlan, names map[domain.ActivityID]string) {
	schedule := p.Plan.Schedule()
	cycle := p.Plan.Cycle()
	loc := p.Plan.Location()

	header := fmt.Sprintf("Cycle %s to %s (%d actions)", cycle.Start(), cycle.End().AddDays(-1), schedule.Len())
	if p.Cached {
		header += " [cached]"
	}
	fmt.Fprintln(out, header)

	var day string
	for _, action := range schedule.AllActions() {
		start, end := action.Start().In(loc), action.End().In(loc)
		if d := start.Format("Mon 2006-01-02"); d != day {
			day = d
			fmt.Fprintf(out, "  %s\n", day)
		}
		name, ok := names[action.ActivityID()]
		if !ok {
			name = action.ActivityID().String()
		}
		fmt.Fprintf(out, "    %s-%s  %s\n", start.Format("15:04"), end.Format("15:04"), name)
	}
	for _, w := range schedule.Warnings() {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
}
