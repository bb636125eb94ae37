package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"student-predictor-go/db"
	"student-predictor-go/features"
	"student-predictor-go/handlers"
	"student-predictor-go/predictor"
	"student-predictor-go/synth"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Environment:
  HTTP_ADDR        listen address (default :8080)
  GIN_MODE         debug|release|test (default release)
  MODEL_PATH       model artifact (default model.json)
  MODEL_SCHEMA     expected schema name; empty accepts the artifact's
  TAXONOMY_PATH    optional YAML course/year/section table
  REDIS_ADDR       enables stored batches and prediction history
  REDIS_PASSWORD, REDIS_DB, RESULT_TTL (default 24h), RECENT_LIMIT (default 50)
  PREDICT_WORKERS  parallel batch workers (default 4)
  MAX_UPLOAD_MB    upload size limit (default 10)
  LOG_LEVEL, LOG_FORMAT

With --seed-model a baseline artifact is written to MODEL_PATH when no file
exists there yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, seed)
		},
	}

	cmd.Flags().BoolVar(&seed, "seed-model", false, "Write a baseline model if MODEL_PATH does not exist")

	return cmd
}

func (a *app) serve(ctx context.Context, seed bool) error {
	if seed {
		if err := a.ensureModel(); err != nil {
			return err
		}
	}
	n, svc, err := a.loadPipeline(a.cfg.ModelPath, a.cfg.ModelSchema)
	if err != nil {
		return err
	}

	// A nil *db.RedisService must not end up inside the interface.
	var store handlers.ResultStore
	if a.cfg.RedisAddr != "" {
		client, err := db.InitializeRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		store = db.NewRedisService(client, a.cfg.ResultTTL, a.cfg.RecentLimit, a.log)
	} else {
		a.log.Warn("REDIS_ADDR not set, stored results are disabled")
	}

	gin.SetMode(a.cfg.GinMode)
	h := handlers.NewAPIHandler(n, svc, store, a.log)
	h.MaxUploadBytes = a.cfg.MaxUploadBytes

	srv := &http.Server{Addr: a.cfg.HTTPAddr, Handler: handlers.NewRouter(h)}
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.HTTPAddr).Info("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ensureModel writes a baseline artifact to ModelPath if nothing is there.
func (a *app) ensureModel() error {
	if _, err := os.Stat(a.cfg.ModelPath); err == nil {
		a.log.WithField("path", a.cfg.ModelPath).Info("Model found, skipping seed")
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	name := a.cfg.ModelSchema
	if name == "" {
		name = features.InternalSchema.Name
	}
	a.log.WithFields(logrus.Fields{"path": a.cfg.ModelPath, "schema": name}).Info("No model found, writing baseline")
	return a.writeBaseline(name, a.cfg.ModelPath)
}

func (a *app) writeBaseline(schemaName, path string) error {
	schema, ok := features.LookupSchema(schemaName)
	if !ok {
		return fmt.Errorf("unknown schema %q", schemaName)
	}
	tax, err := a.taxonomy()
	if err != nil {
		return err
	}
	art, err := synth.BaselineArtifact(schema, tax)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := predictor.WriteArtifact(f, art); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
