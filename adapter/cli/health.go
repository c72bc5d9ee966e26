package cli

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/pkg/observability"
)

var errUnhealthy = errors.New("unhealthy")

var healthCmd = &cobra.Command{
	Use:     "health",
	Aliases: []string{"doctor"},
	Short:   "Check the database, cache and broker connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireApp()
		if err != nil {
			return err
		}

		health := a.container.Health.Check(cmd.Context())
		names := make([]string, 0, len(health.Checks))
		for name := range health.Checks {
			names = append(names, name)
		}
		slices.Sort(names)

		out := cmd.OutOrStdout()
		for _, name := range names {
			check := health.Checks[name]
			line := fmt.Sprintf("%-10s %s (%s)", name, check.Status, check.Duration.Round(time.Millisecond))
			if check.Message != "" {
				line += ": " + check.Message
			}
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, "status:", health.Status)

		if health.Status == observability.HealthStatusUnhealthy {
			return errUnhealthy
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
