package predictor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"student-predictor-go/features"
	"student-predictor-go/models"
)

var courseCats = []string{"B.Tech", "BCA", "MBA", "MCA"}

// basicLinear scores 0/1/2/3 for the four courses, plus 0.5*attendance + 5*cgpa + assignments.
func basicLinear() Artifact {
	return Artifact{
		FormatVersion: FormatVersion,
		Schema:        features.BasicSchema,
		Encoder:       Encoder{Categories: map[string][]string{"course": courseCats}, DropFirst: true},
		Model: ModelSpec{Kind: KindLinear, Linear: &Linear{
			Coefficients: []float64{1, 2, 3, 0.5, 5, 1},
		}},
	}
}

// stumpForest has two trees: one splitting on attendance (encoded column 3),
// one constant.
func stumpForest() Artifact {
	return Artifact{
		FormatVersion: FormatVersion,
		Schema:        features.BasicSchema,
		Encoder:       Encoder{Categories: map[string][]string{"course": courseCats}, DropFirst: true},
		Model: ModelSpec{Kind: KindForest, Forest: &Forest{Trees: []Tree{
			{Nodes: []Node{
				{Feature: 3, Threshold: 75, Left: 1, Right: 2},
				{Left: -1, Right: -1, Value: 40},
				{Left: -1, Right: -1, Value: 90},
			}},
			{Nodes: []Node{{Left: -1, Right: -1, Value: 60}}},
		}}},
	}
}

func predictOne(t *testing.T, m Model, v features.FeatureVector) float64 {
	t.Helper()
	table, err := features.NewFeatureTable(v.Schema, v)
	require.NoError(t, err)
	out, err := m.Predict(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func TestLinearModel(t *testing.T) {
	m, err := NewModel(basicLinear(), "")
	require.NoError(t, err)
	// MBA one-hot contributes 2; 40 + 35 + 8 from the numerics.
	assert.InDelta(t, 85, predictOne(t, m, basicVector(80, "MBA")), 1e-9)
	// B.Tech is the dropped category.
	assert.InDelta(t, 83, predictOne(t, m, basicVector(80, "B.Tech")), 1e-9)
}

func TestForestModel(t *testing.T) {
	m, err := NewModel(stumpForest(), "basic")
	require.NoError(t, err)
	assert.InDelta(t, 50, predictOne(t, m, basicVector(75, "MBA")), 1e-9)
	assert.InDelta(t, 75, predictOne(t, m, basicVector(75.5, "MBA")), 1e-9)
}

func TestModel_UnknownCategory(t *testing.T) {
	m, err := NewModel(basicLinear(), "")
	require.NoError(t, err)
	table, err := features.NewFeatureTable(features.BasicSchema, basicVector(80, "PhD"))
	require.NoError(t, err)
	_, err = m.Predict(context.Background(), table)
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorContains(t, err, `unknown course "PhD"`)
}

func TestNewModel_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Artifact)
		expected string
		wantErr  string
		mismatch bool
	}{
		{name: "format version", mutate: func(a *Artifact) { a.FormatVersion = 2 }, wantErr: "format_version"},
		{name: "expected other schema", expected: "internal", wantErr: "expected \"internal\"", mismatch: true},
		{name: "registry disagreement", mutate: func(a *Artifact) {
			a.Schema.Fields = a.Schema.Fields[:3]
		}, wantErr: "registry has basic/v1", mismatch: true},
		{name: "percentage is not a feature", mutate: func(a *Artifact) {
			a.Schema = features.ModelSchema{Name: "custom", Version: 1, Fields: []features.Field{{Name: "percentage"}}}
		}, wantErr: `unknown feature "percentage"`, mismatch: true},
		{name: "missing categories", mutate: func(a *Artifact) { a.Encoder.Categories = nil }, wantErr: "no categories for \"course\""},
		{name: "coefficient count", mutate: func(a *Artifact) {
			a.Model.Linear.Coefficients = a.Model.Linear.Coefficients[:5]
		}, wantErr: "5 coefficients, encoded width is 6"},
		{name: "unknown kind", mutate: func(a *Artifact) { a.Model.Kind = "svm" }, wantErr: "unknown model kind"},
		{name: "forest without trees", mutate: func(a *Artifact) {
			a.Model = ModelSpec{Kind: KindForest, Forest: &Forest{}}
		}, wantErr: "no trees"},
		{name: "tree cycle", mutate: func(a *Artifact) {
			a.Model = ModelSpec{Kind: KindForest, Forest: &Forest{Trees: []Tree{{Nodes: []Node{
				{Feature: 0, Left: 0, Right: 1}, {Left: -1},
			}}}}}
		}, wantErr: "invalid children"},
		{name: "tree feature out of range", mutate: func(a *Artifact) {
			a.Model = ModelSpec{Kind: KindForest, Forest: &Forest{Trees: []Tree{{Nodes: []Node{
				{Feature: 6, Left: 1, Right: 2}, {Left: -1}, {Left: -1},
			}}}}}
		}, wantErr: "encoded width is 6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := basicLinear()
			if tt.mutate != nil {
				tt.mutate(&a)
			}
			_, err := NewModel(a, tt.expected)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrModelUnavailable)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.mismatch {
				assert.ErrorIs(t, err, ErrSchemaMismatch)
			}
		})
	}
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "model.json")
	var buf bytes.Buffer
	require.NoError(t, WriteArtifact(&buf, stumpForest()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	m, err := LoadModel(path, "basic")
	require.NoError(t, err)
	assert.True(t, m.Schema().Equal(features.BasicSchema))

	svc := NewService(m)
	res, err := svc.PredictOne(context.Background(), basicVector(90, "BCA"))
	require.NoError(t, err)
	assert.Equal(t, models.PredictionResult{Score: 75, Verdict: models.VerdictGood}, res)

	_, err = LoadModel(filepath.Join(dir, "absent.json"), "")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"format_version": 1, "schema": `), 0o644))
	_, err = LoadModel(corrupt, "")
	assert.ErrorIs(t, err, ErrModelUnavailable)

	extra := filepath.Join(dir, "extra.json")
	doc := strings.Replace(buf.String(), `"format_version"`, `"weights": [], "format_version"`, 1)
	require.NoError(t, os.WriteFile(extra, []byte(doc), 0o644))
	_, err = LoadModel(extra, "")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}
