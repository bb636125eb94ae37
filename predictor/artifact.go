package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"student-predictor-go/features"
)

// FormatVersion is the artifact layout this package reads and writes.
const FormatVersion = 1

const (
	KindLinear = "linear"
	KindForest = "forest"
)

// Artifact is the persisted form of a trained model. The schema it was fit on
// travels with it so a serving process can detect a mismatch at load time.
type Artifact struct {
	FormatVersion int                  `json:"format_version"`
	Schema        features.ModelSchema `json:"schema"`
	Encoder       Encoder              `json:"encoder"`
	Model         ModelSpec            `json:"model"`
}

type ModelSpec struct {
	Kind   string  `json:"kind"`
	Linear *Linear `json:"linear,omitempty"`
	Forest *Forest `json:"forest,omitempty"`
}

// CheckSchema verifies schema is well formed, agrees with the registered schema
// of the same name, and is the one the caller expects (when expected is set).
func CheckSchema(schema features.ModelSchema, expected string) error {
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if reg, ok := features.LookupSchema(schema.Name); ok && !reg.Equal(schema) {
		return fmt.Errorf("%w: artifact declares %s with fields %v, registry has %s with fields %v",
			ErrSchemaMismatch, schema, schema.Names(), reg, reg.Names())
	}
	if expected != "" && schema.Name != expected {
		return fmt.Errorf("%w: artifact was fit on %s, expected %q", ErrSchemaMismatch, schema, expected)
	}
	return nil
}

// NewModel builds a Model from an artifact. Any defect is reported as
// ErrModelUnavailable.
func NewModel(a Artifact, expectedSchema string) (Model, error) {
	m, err := newModel(a, expectedSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return m, nil
}

func newModel(a Artifact, expectedSchema string) (Model, error) {
	if a.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported artifact format_version %d", a.FormatVersion)
	}
	if err := CheckSchema(a.Schema, expectedSchema); err != nil {
		return nil, err
	}
	if err := a.Encoder.check(a.Schema); err != nil {
		return nil, err
	}
	width := a.Encoder.Width(a.Schema)

	var reg regressor
	switch a.Model.Kind {
	case KindLinear:
		if a.Model.Linear == nil {
			return nil, errors.New("linear model has no parameters")
		}
		if got := len(a.Model.Linear.Coefficients); got != width {
			return nil, fmt.Errorf("linear model has %d coefficients, encoded width is %d", got, width)
		}
		reg = a.Model.Linear
	case KindForest:
		if a.Model.Forest == nil || len(a.Model.Forest.Trees) == 0 {
			return nil, errors.New("forest model has no trees")
		}
		for i := range a.Model.Forest.Trees {
			if err := a.Model.Forest.Trees[i].check(width); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		a.Model.Forest.w = width
		reg = a.Model.Forest
	default:
		return nil, fmt.Errorf("unknown model kind %q", a.Model.Kind)
	}
	return &encodedModel{schema: a.Schema, encoder: a.Encoder, reg: reg}, nil
}

// ReadArtifact decodes an artifact document.
func ReadArtifact(r io.Reader) (Artifact, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return Artifact{}, fmt.Errorf("%w: failed to decode artifact: %w", ErrModelUnavailable, err)
	}
	return a, nil
}

// WriteArtifact encodes a as indented JSON.
func WriteArtifact(w io.Writer, a Artifact) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return nil
}

// LoadModel opens and validates the artifact at path.
func LoadModel(path, expectedSchema string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	defer f.Close()

	a, err := ReadArtifact(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewModel(a, expectedSchema)
}
