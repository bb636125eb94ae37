package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"student-predictor-go/features"
	"student-predictor-go/models"
)

// Score bounds and verdict thresholds. Each tier includes its lower bound.
const (
	MinScore       = 0.0
	MaxScore       = 100.0
	ExcellentFloor = 85.0
	GoodFloor      = 70.0
	AverageFloor   = 50.0
)

// Clip bounds a raw model output to [MinScore, MaxScore]. NaN maps to MinScore.
func Clip(x float64) float64 {
	switch {
	case math.IsNaN(x), x < MinScore:
		return MinScore
	case x > MaxScore:
		return MaxScore
	}
	return x
}

// Classify maps a score to its verdict tier.
func Classify(score float64) models.Verdict {
	switch {
	case score >= ExcellentFloor:
		return models.VerdictExcellent
	case score >= GoodFloor:
		return models.VerdictGood
	case score >= AverageFloor:
		return models.VerdictAverage
	}
	return models.VerdictLow
}

type Option func(*Service)

// WithWorkers caps how many chunks of a batch are scored concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithChunkSize sets the minimum rows per concurrent chunk.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunk = n
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

// Service wraps a loaded model behind the clip-and-classify contract. It holds
// no per-call state.
type Service struct {
	model   Model
	workers int
	chunk   int
	log     logrus.FieldLogger
}

func NewService(model Model, opts ...Option) *Service {
	s := &Service{model: model, workers: 4, chunk: 64, log: logrus.StandardLogger()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Schema() features.ModelSchema { return s.model.Schema() }

// PredictOne scores a single vector.
func (s *Service) PredictOne(ctx context.Context, v features.FeatureVector) (models.PredictionResult, error) {
	table, err := s.table(v)
	if err != nil {
		return models.PredictionResult{}, err
	}
	raw, err := s.predict(ctx, table)
	if err != nil {
		return models.PredictionResult{}, err
	}
	return result(raw[0]), nil
}

func (s *Service) table(v features.FeatureVector) (features.FeatureTable, error) {
	if !v.Schema.Equal(s.model.Schema()) {
		return features.FeatureTable{}, fmt.Errorf("%w: %w: model wants %s, got %s", ErrInference, ErrSchemaMismatch, s.model.Schema(), v.Schema)
	}
	t, err := features.NewFeatureTable(v.Schema, v)
	if err != nil {
		return features.FeatureTable{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return t, nil
}

// PredictBatch scores every row of table and returns results in row order.
// Contiguous chunks run concurrently; any failure fails the whole batch.
func (s *Service) PredictBatch(ctx context.Context, table features.FeatureTable) ([]models.PredictionResult, error) {
	n := table.Len()
	if n == 0 {
		return []models.PredictionResult{}, nil
	}
	if !table.Schema.Equal(s.model.Schema()) {
		return nil, fmt.Errorf("%w: %w: model wants %s, got %s", ErrInference, ErrSchemaMismatch, s.model.Schema(), table.Schema)
	}

	size := max(s.chunk, (n+s.workers-1)/s.workers)
	results := make([]models.PredictionResult, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		g.Go(func() error {
			raw, err := s.predict(gctx, table.Slice(lo, hi))
			if err != nil {
				return fmt.Errorf("rows %d-%d: %w", lo+1, hi, err)
			}
			for k, x := range raw {
				results[lo+k] = result(x)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).WithField("rows", n).Error("Batch prediction failed")
		return nil, err
	}
	return results, nil
}

// predict calls the model and checks its output shape and values.
func (s *Service) predict(ctx context.Context, table features.FeatureTable) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.model.Predict(ctx, table)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	if len(raw) != table.Len() {
		return nil, fmt.Errorf("%w: model returned %d values for %d rows", ErrInference, len(raw), table.Len())
	}
	for i, x := range raw {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: model returned %v for row %d", ErrInference, x, i+1)
		}
	}
	return raw, nil
}

func result(raw float64) models.PredictionResult {
	score := Clip(raw)
	return models.PredictionResult{Score: score, Verdict: Classify(score)}
}
