// Package cli wires configuration, the model and the HTTP server into the
// predictor command.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"student-predictor-go/config"
	"student-predictor-go/features"
	"student-predictor-go/predictor"
)

var version = "dev"

// app carries what every subcommand needs once the root command has run.
type app struct {
	cfg config.Config
	log *logrus.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{}
	var envFile, logLevel, logFormat string

	cmd := &cobra.Command{
		Use:   "predictor",
		Short: "Student final-score predictor",
		Long: `Predicts a student's final score (0-100) from attendance, CGPA,
assignments and, depending on the model, internal marks and hours studied.

Configuration comes from the environment and an optional .env file;
see "serve --help" for the variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			log, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			log.SetOutput(cmd.ErrOrStderr())
			a.cfg, a.log = cfg, log
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file to load")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override LOG_FORMAT (text|json)")

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newPredictCommand(a))
	cmd.AddCommand(newGenDataCommand(a))
	cmd.AddCommand(newSeedModelCommand(a))

	return cmd
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) taxonomy() (*features.Taxonomy, error) {
	if a.cfg.TaxonomyPath == "" {
		return features.DefaultTaxonomy(), nil
	}
	tax, err := features.LoadTaxonomy(a.cfg.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	a.log.WithField("path", a.cfg.TaxonomyPath).Info("Loaded course taxonomy")
	return tax, nil
}

// loadPipeline opens the model at path and builds the normalizer and service
// for its schema.
func (a *app) loadPipeline(path, schema string) (*features.Normalizer, *predictor.Service, error) {
	tax, err := a.taxonomy()
	if err != nil {
		return nil, nil, err
	}
	model, err := predictor.LoadModel(path, schema)
	if err != nil {
		return nil, nil, err
	}
	a.log.WithFields(logrus.Fields{"path": path, "schema": model.Schema().String()}).Info("Loaded model")

	n := features.NewNormalizer(model.Schema(), tax, a.log)
	svc := predictor.NewService(model, predictor.WithWorkers(a.cfg.PredictWorkers), predictor.WithLogger(a.log))
	return n, svc, nil
}

// writeTableFile writes t to path as .xlsx or .csv, or CSV to stdout when
// path is empty.
func writeTableFile(cmd *cobra.Command, path string, t *features.Table) error {
	if path == "" {
		return features.WriteCSV(cmd.OutOrStdout(), t)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = features.WriteXLSX(f, t)
	case ".csv":
		err = features.WriteCSV(f, t)
	default:
		err = fmt.Errorf("%w: %s", features.ErrUnsupportedFormat, path)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
