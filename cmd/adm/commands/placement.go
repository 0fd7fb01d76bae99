package commands

import (
	"fmt"
	"os"

	"quizinsight/internal/models"
	"quizinsight/internal/services"
	contextutils "quizinsight/internal/utils"

	"github.com/spf13/cobra"
)

// PlacementCommands returns the placement test commands
func PlacementCommands(env *Env) *cobra.Command {
	placementCmd := &cobra.Command{
		Use:   "placement",
		Short: "Placement test commands",
		Long: `Placement test commands.

Available commands:
  validate  - Check a placement quiz set file (JSON or YAML)
  score     - Score submitted answers against a placement quiz set`,
	}

	placementCmd.AddCommand(placementValidateCmd())
	placementCmd.AddCommand(placementScoreCmd(env))
	return placementCmd
}

func loadPlacementSet(path string) (*models.PlacementQuizSetImport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.InvalidInputf("cannot read placement file %s: %v", path, err)
	}
	return services.ParsePlacementImport(data, services.FormatFromPath(path))
}

func placementValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a placement quiz set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadPlacementSet(args[0])
			if err != nil {
				return err
			}
			parts := map[int]int{}
			for _, q := range set.Questions {
				parts[q.Part]++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d questions in %d parts)\n", args[0], len(set.Questions), len(parts))
			return nil
		},
	}
}

func placementScoreCmd(env *Env) *cobra.Command {
	var answersPath string
	var userID int

	cmd := &cobra.Command{
		Use:   "score <file>",
		Short: "Score answers against a placement quiz set",
		Long: `Score submitted answers against a placement quiz set and print the report as JSON.

The answers file maps global question indexes to choice labels, e.g. {"0": "A", "1": "C"}.
With --user the report is also stored for that user and becomes their dashboard tier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			set, err := loadPlacementSet(args[0])
			if err != nil {
				return err
			}
			answers, err := readAnswers(answersPath)
			if err != nil {
				return err
			}

			var report *models.ScoreReport
			if userID > 0 {
				container, err := env.Container(ctx)
				if err != nil {
					return err
				}
				placement, err := container.GetPlacementService()
				if err != nil {
					return err
				}
				report, err = placement.ScoreForUser(ctx, userID, set, answers)
				if err != nil {
					return err
				}
			} else {
				scorer, err := services.NewPlacementScorer(env.Cfg.Engine.Placement)
				if err != nil {
					return err
				}
				report, err = scorer.Score(set, answers)
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&answersPath, "answers", "", "JSON or YAML file with the submitted answers")
	cmd.Flags().IntVar(&userID, "user", 0, "store the result for this user id")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}
