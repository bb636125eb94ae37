package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr string
	GinMode  string

	ModelPath    string
	ModelSchema  string // expected schema name; empty accepts the artifact's
	TaxonomyPath string // optional YAML override of the course table

	RedisAddr     string // empty disables result persistence
	RedisPassword string
	RedisDB       int
	ResultTTL     time.Duration
	RecentLimit   int64

	PredictWorkers int
	MaxUploadBytes int64

	LogLevel  string
	LogFormat string // text|json
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		GinMode:       envOr("GIN_MODE", "release"),
		ModelPath:     envOr("MODEL_PATH", "model.json"),
		ModelSchema:   os.Getenv("MODEL_SCHEMA"),
		TaxonomyPath:  os.Getenv("TAXONOMY_PATH"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "text"),
	}
	cfg.RedisDB = envInt("REDIS_DB", 0, &errs)
	cfg.ResultTTL = envDuration("RESULT_TTL", 24*time.Hour, &errs)
	cfg.RecentLimit = int64(envInt("RECENT_LIMIT", 50, &errs))
	cfg.PredictWorkers = envInt("PREDICT_WORKERS", 4, &errs)
	cfg.MaxUploadBytes = int64(envInt("MAX_UPLOAD_MB", 10, &errs)) << 20
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() (*logrus.Logger, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	switch strings.ToLower(c.LogFormat) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	return log, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int, errs *[]error) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", k, v))
		return def
	}
	return n
}

func envDuration(k string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", k, v))
		return def
	}
	return d
}
