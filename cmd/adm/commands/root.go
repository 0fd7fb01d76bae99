package commands

import (
	"fmt"

	"quizinsight/internal/version"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the adm command tree
func NewRootCommand(env *Env) *cobra.Command {
	var askPassword bool

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Insight engine administration tool",
		Long: `Insight engine administration tool

Scores and validates placement tests, drains the mistake classification queue,
recomputes dashboards and applies database migrations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !askPassword {
				return nil
			}
			password, err := promptPassword("Database password: ")
			if err != nil {
				return err
			}
			dbURL, err := withPassword(env.Cfg.Database.URL, password)
			if err != nil {
				return err
			}
			env.Cfg.Database.URL = dbURL
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&askPassword, "ask-db-password", false, "prompt for the database password instead of reading it from the config")

	rootCmd.AddCommand(PlacementCommands(env))
	rootCmd.AddCommand(MistakeCommands(env))
	rootCmd.AddCommand(DashboardCommands(env))
	rootCmd.AddCommand(DatabaseCommands(env))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), version.Get("quizinsight-adm"))
		},
	})
	return rootCmd
}
