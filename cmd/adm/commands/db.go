package commands

import (
	"fmt"

	"quizinsight/internal/database"
	contextutils "quizinsight/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(env *Env) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands.

Available commands:
  migrate   - Apply pending schema migrations
  info      - Show which database the tool connects to`,
	}

	dbCmd.AddCommand(migrateCmd(env))
	dbCmd.AddCommand(infoCmd(env))
	return dbCmd
}

func migrateCmd(env *Env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			target := contextutils.MaskDatabaseURL(env.Cfg.Database.URL)
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Apply migrations to %s?", target)) {
				return contextutils.InvalidInputf("migration not confirmed; pass --yes to run non-interactively")
			}

			dbManager := database.NewManager(env.Logger)
			db, err := dbManager.InitDBWithConfig(ctx, env.Cfg.Database)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					env.Logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
				}
			}()

			env.Logger.Info(ctx, "Database migrations applied", map[string]interface{}{"database": target})
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "do not ask for confirmation")
	return cmd
}

func infoCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show database connection information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", getDatabaseInfo(ctx, container.GetDatabase()), contextutils.MaskDatabaseURL(env.Cfg.Database.URL))
			return nil
		},
	}
}
