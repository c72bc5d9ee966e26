package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/planning/domain"
)

var goalsAt string

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Inspect activity goals",
}

var goalsCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check whether each goal is met",
	Long: `Compares the recorded usage of every activity goal in a plan file
against its bounds for the period containing the given moment.

Examples:
  cadence goals check week.yaml
  cadence goals check week.yaml --at 2024-03-10T18:00`,
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
		moment, err := parseMoment(goalsAt, def.Location)
		if err != nil {
			return err
		}

		result, err := a.check(cmd.Context(), def, moment)
		if err != nil {
			return fmt.Errorf("check goals failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(result.Goals) == 0 {
			fmt.Fprintln(out, "No goals defined")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACTIVITY\tCURRENT\tAT LEAST\tIDEAL\tPER\tSTATUS")
		for _, g := range result.Goals {
			atLeast := "-"
			if g.AtLeast != nil {
				atLeast = strconv.FormatUint(uint64(*g.AtLeast), 10)
			}
			status := "behind"
			if g.Meeting {
				status = "ok"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n", g.Name, g.Current, atLeast, g.Ideal, g.Unit, status)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if result.AllMeeting {
			fmt.Fprintln(out, "All goals met")
		} else {
			fmt.Fprintln(out, "Some goals are not met")
		}
		return nil
	},
}

func init() {
	goalsCheckCmd.Flags().StringVar(&goalsAt, "at", "", "moment to check, "+startLayout+" or a date (default now)")

	goalsCmd.AddCommand(goalsCheckCmd)
	rootCmd.AddCommand(goalsCmd)
}

// parseMoment accepts a timestamp or a date in loc. An empty value is now.
func parseMoment(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Now().In(loc), nil
	}
	if t, err := time.ParseInLocation(startLayout, value, loc); err == nil {
		return t, nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: use %s or YYYY-MM-DD", value, startLayout)
	}
	return d.Midnight(loc), nil
}
