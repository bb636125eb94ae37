package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"student-predictor-go/features"
	"student-predictor-go/synth"
)

func newGenDataCommand(a *app) *cobra.Command {
	var (
		n    int
		seed int64
		out  string
	)

	cmd := &cobra.Command{
		Use:   "gen-data",
		Short: "Generate a synthetic student table",
		Long: `Generate a synthetic student table for training and demos.

Every row is valid against the course taxonomy. The final_score column holds
the simulated target; the same seed always yields the same table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return fmt.Errorf("--n must be positive, got %d", n)
			}
			tax, err := a.taxonomy()
			if err != nil {
				return err
			}
			if err := writeTableFile(cmd, out, synth.Generate(n, seed, tax)); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d students to %s\n", n, out)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&n, "n", 500, "Number of students")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output .csv or .xlsx file (default stdout)")

	return cmd
}

func newSeedModelCommand(a *app) *cobra.Command {
	var schema, out string

	cmd := &cobra.Command{
		Use:   "seed-model",
		Short: "Write a baseline linear model artifact",
		Long: `Write a baseline linear model artifact that reproduces the synthetic
data formula. Useful for running the server before a trained model exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = a.cfg.ModelPath
			}
			if err := a.writeBaseline(schema, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s model to %s\n", schema, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&schema, "schema", features.InternalSchema.Name, "Model schema: basic, internal or hours")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Artifact path (default MODEL_PATH)")

	return cmd
}
