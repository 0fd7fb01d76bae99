package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MistakeCommands returns the mistake analysis commands
func MistakeCommands(env *Env) *cobra.Command {
	mistakesCmd := &cobra.Command{
		Use:   "mistakes",
		Short: "Mistake analysis commands",
		Long: `Mistake analysis commands.

Available commands:
  classify  - Link pending mistake records to weak points
  pending   - Show how many mistake records await classification`,
	}

	mistakesCmd.AddCommand(classifyCmd(env))
	mistakesCmd.AddCommand(pendingCmd(env))
	return mistakesCmd
}

func classifyCmd(env *Env) *cobra.Command {
	var batchSize, maxBatches int

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify pending mistake records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			classifier, err := container.GetClassifier()
			if err != nil {
				return err
			}

			total, batches := 0, 0
			for batches < maxBatches {
				n, err := classifier.ClassifyPending(ctx, batchSize)
				batches++
				total += n
				if err != nil {
					return err
				}
				if n < batchSize {
					break
				}
			}

			env.Logger.Info(ctx, "Mistake classification finished", map[string]interface{}{
				"analyzed": total,
				"batches":  batches,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "analyzed %d mistake records in %d batches\n", total, batches)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch", env.Cfg.Engine.Classifier.BatchSize, "records claimed per batch")
	cmd.Flags().IntVar(&maxBatches, "max-batches", env.Cfg.Engine.Worker.MaxBatchesPerRun, "stop after this many batches")
	return cmd
}

func pendingCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Count unclassified mistake records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			classifier, err := container.GetClassifier()
			if err != nil {
				return err
			}
			n, err := classifier.CountPending(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d mistake records pending\n", n)
			return nil
		},
	}
}
