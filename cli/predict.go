package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"student-predictor-go/features"
)

func newPredictCommand(a *app) *cobra.Command {
	var modelPath, schema, in, out string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a CSV or XLSX file offline",
		Long: `Score every row of a CSV or XLSX file with the configured model.

The output is the input table plus a "Predicted Final Score" column and, when
any row was rejected, a "Rejection Reason" column. Without --out the result is
written to stdout as CSV.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				modelPath = a.cfg.ModelPath
			}
			if schema == "" {
				schema = a.cfg.ModelSchema
			}
			n, svc, err := a.loadPipeline(modelPath, schema)
			if err != nil {
				return err
			}

			f, err := os.Open(in)
			if err != nil {
				return err
			}
			table, err := features.ReadTable(in, f)
			f.Close()
			if err != nil {
				return err
			}

			batch, err := n.NormalizeTable(table)
			if err != nil {
				return err
			}
			results, err := svc.PredictBatch(cmd.Context(), batch.Table)
			if err != nil {
				return err
			}
			scores := make([]float64, len(results))
			for i, r := range results {
				scores[i] = r.Score
			}
			if err := writeTableFile(cmd, out, features.AttachPredictions(table, batch, scores)); err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "Scored %s\n", batch)
			for _, re := range batch.Rejected {
				fmt.Fprintf(errOut, "  row %d: %s\n", re.Row, strings.Join(features.Details(re.Err), "; "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model artifact (default MODEL_PATH)")
	cmd.Flags().StringVar(&schema, "schema", "", "Expected model schema (default MODEL_SCHEMA)")
	cmd.Flags().StringVar(&in, "in", "", "Input .csv or .xlsx file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output .csv or .xlsx file")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}
