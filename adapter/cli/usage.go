package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
	"github.com/felixgeelhaar/cadence/internal/planning/infrastructure/definitions"
)

const startLayout = "2006-01-02T15:04"

var (
	usageActivity string
	usageStart    string
	usageDuration time.Duration
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Record time spent on activities",
}

var usageRecordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record committed actions against the activity goals",
	Long: `Records usage for the activities of a plan file that carry a goal.

Without --activity the generated schedule is committed as a whole.
With --activity a single action is recorded instead.

Examples:
  cadence usage record week.yaml
  cadence usage record week.yaml --activity Stretch --start 2024-03-04T07:00 --duration 15m`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}
		def, err := a.load(args[0])
		if err != nil {
			return err
		}

		var actions []domain.Action
		if usageActivity != "" {
			action, err := manualAction(def, usageActivity, usageStart, usageDuration)
			if err != nil {
				return err
			}
			actions = []domain.Action{action}
		} else {
			plans, err := a.generate(cmd.Context(), def, currentPlanOptions())
			if err != nil {
				return fmt.Errorf("plan failed: %w", err)
			}
			for _, p := range plans.Plans {
				actions = append(actions, p.Plan.Schedule().AllActions()...)
			}
		}

		result, err := a.record(cmd.Context(), def, actions)
		if err != nil {
			return fmt.Errorf("record usage failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d actions (%d without goal), %d registers updated\n",
			result.Recorded, result.Skipped, result.Saved)
		return nil
	},
}

func init() {
	addPlanFlags(usageRecordCmd)
	usageRecordCmd.Flags().StringVar(&usageActivity, "activity", "", "record one action of this activity")
	usageRecordCmd.Flags().StringVar(&usageStart, "start", "", "start of the action, "+startLayout+" in the plan timezone")
	usageRecordCmd.Flags().DurationVar(&usageDuration, "duration", 0, "length of the action")

	usageCmd.AddCommand(usageRecordCmd)
	rootCmd.AddCommand(usageCmd)
}

func manualAction(def *definitions.Definition, activity, start string, duration time.Duration) (domain.Action, error) {
	var id domain.ActivityID
	found := false
	for _, b := range def.Blueprints {
		if strings.EqualFold(b.Name, activity) {
			id, found = b.ActivityID(), true
			break
		}
	}
	if !found {
		return domain.Action{}, fmt.Errorf("unknown activity %q", activity)
	}
	if start == "" {
		return domain.Action{}, errors.New("--start is required with --activity")
	}
	if duration <= 0 {
		return domain.Action{}, errors.New("--duration must be positive")
	}

	at, err := time.ParseInLocation(startLayout, start, def.Location)
	if err != nil {
		return domain.Action{}, fmt.Errorf("invalid --start: %w", err)
	}
	span, err := domain.NewDateTimeRange(at, at.Add(duration))
	if err != nil {
		return domain.Action{}, err
	}
	return domain.NewAction(id, span), nil
}
