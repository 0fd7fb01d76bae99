package commands

import (
	"fmt"
	"time"

	contextutils "quizinsight/internal/utils"

	"github.com/spf13/cobra"
)

// DashboardCommands returns the dashboard commands
func DashboardCommands(env *Env) *cobra.Command {
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Dashboard statistics commands",
		Long: `Dashboard statistics commands.

Available commands:
  recompute - Rebuild dashboard statistics from attempt history
  show      - Print the stored dashboard of a user`,
	}

	dashboardCmd.AddCommand(recomputeCmd(env))
	dashboardCmd.AddCommand(showCmd(env))
	return dashboardCmd
}

func recomputeCmd(env *Env) *cobra.Command {
	var userID int
	var since time.Duration
	var all bool

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute dashboard statistics",
		Long: `Recompute dashboard statistics.

Pass --user for a single user, --since for users who answered within the given window,
or --all for every user with attempt history.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			selected := 0
			for _, set := range []bool{userID > 0, since > 0, all} {
				if set {
					selected++
				}
			}
			if selected != 1 {
				return contextutils.InvalidInputf("exactly one of --user, --since or --all is required")
			}

			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			aggregator, err := container.GetDashboardAggregator()
			if err != nil {
				return err
			}

			if userID > 0 {
				stats, err := aggregator.Recompute(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			}

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			n, err := aggregator.RecomputeActiveSince(ctx, from)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d dashboards\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&userID, "user", 0, "recompute a single user")
	cmd.Flags().DurationVar(&since, "since", 0, "recompute users active within this window, e.g. 24h")
	cmd.Flags().BoolVar(&all, "all", false, "recompute every user with attempt history")
	return cmd
}

func showCmd(env *Env) *cobra.Command {
	var userID int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored dashboard statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			aggregator, err := container.GetDashboardAggregator()
			if err != nil {
				return err
			}
			stats, err := aggregator.Get(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	cmd.Flags().IntVar(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
