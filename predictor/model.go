package predictor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"student-predictor-go/features"
)

var (
	// ErrModelUnavailable means the artifact is missing, corrupt or does not
	// match the expected schema. It is fatal; retrying reproduces it.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrInference means the model failed or returned an invalid result.
	ErrInference = errors.New("inference failed")
	// ErrSchemaMismatch is wrapped by either of the above when features and
	// model disagree on the schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Model is a trained regressor. Predict returns one value per input row, in
// input order. Implementations are read-only after construction and safe for
// concurrent use.
type Model interface {
	Schema() features.ModelSchema
	Predict(ctx context.Context, table features.FeatureTable) ([]float64, error)
}

// Encoder turns a feature row into the numeric design row a model was fit on:
// one-hot columns for each categorical field (schema order), followed by the
// numeric fields (schema order).
type Encoder struct {
	Categories map[string][]string `json:"categories"`
	// DropFirst omits the first category of each categorical field.
	DropFirst bool `json:"drop_first"`
}

func (e Encoder) check(schema features.ModelSchema) error {
	for _, f := range schema.Fields {
		if f.Kind != features.Categorical {
			continue
		}
		cats := e.Categories[f.Name]
		if len(cats) == 0 {
			return fmt.Errorf("encoder has no categories for %q", f.Name)
		}
		sorted := slices.Clone(cats)
		slices.Sort(sorted)
		if len(slices.Compact(sorted)) != len(cats) {
			return fmt.Errorf("encoder has duplicate categories for %q", f.Name)
		}
	}
	return nil
}

// Width is the length of an encoded row.
func (e Encoder) Width(schema features.ModelSchema) int {
	w := 0
	for _, f := range schema.Fields {
		if f.Kind == features.Categorical {
			w += e.width(f.Name)
		} else {
			w++
		}
	}
	return w
}

func (e Encoder) width(field string) int {
	n := len(e.Categories[field])
	if e.DropFirst {
		n--
	}
	return n
}

// Encode writes the design row for values into dst, which must have Width entries.
func (e Encoder) Encode(schema features.ModelSchema, values []features.Value, dst []float64) error {
	clear(dst)
	pos := 0
	for i, f := range schema.Fields {
		if f.Kind != features.Categorical {
			continue
		}
		k := slices.Index(e.Categories[f.Name], values[i].Cat)
		if k < 0 {
			return fmt.Errorf("%w: unknown %s %q", ErrInference, f.Name, values[i].Cat)
		}
		if e.DropFirst {
			k--
		}
		if k >= 0 {
			dst[pos+k] = 1
		}
		pos += e.width(f.Name)
	}
	for i, f := range schema.Fields {
		if f.Kind == features.Numeric {
			dst[pos] = values[i].Num
			pos++
		}
	}
	return nil
}

// regressor scores one encoded row.
type regressor interface {
	width() int
	score(row []float64) float64
}

// encodedModel pairs an encoder with a regressor over its output.
type encodedModel struct {
	schema  features.ModelSchema
	encoder Encoder
	reg     regressor
}

func (m *encodedModel) Schema() features.ModelSchema { return m.schema }

func (m *encodedModel) Predict(ctx context.Context, table features.FeatureTable) ([]float64, error) {
	if !table.Schema.Equal(m.schema) {
		return nil, fmt.Errorf("%w: %w: model wants %s, got %s", ErrInference, ErrSchemaMismatch, m.schema, table.Schema)
	}
	out := make([]float64, table.Len())
	row := make([]float64, m.reg.width())
	for i, values := range table.Rows {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(values) != len(m.schema.Fields) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInference, i, len(values), len(m.schema.Fields))
		}
		if err := m.encoder.Encode(m.schema, values, row); err != nil {
			return nil, err
		}
		out[i] = m.reg.score(row)
	}
	return out, nil
}
