package features

import (
	"fmt"
	"math"
)

// Value holds one feature. Num is set for numeric fields, Cat for categorical ones.
type Value struct {
	Num float64
	Cat string
}

// FeatureVector is one row ready for the model, aligned with Schema.Fields.
type FeatureVector struct {
	Schema ModelSchema
	Values []Value
}

func (v FeatureVector) Numeric(name string) (float64, bool) {
	i := v.Schema.Index(name)
	if i < 0 || v.Schema.Fields[i].Kind != Numeric {
		return 0, false
	}
	return v.Values[i].Num, true
}

func (v FeatureVector) Categorical(name string) (string, bool) {
	i := v.Schema.Index(name)
	if i < 0 || v.Schema.Fields[i].Kind != Categorical {
		return "", false
	}
	return v.Values[i].Cat, true
}

// Check verifies the vector is complete and well typed for its schema.
func (v FeatureVector) Check() error {
	if len(v.Values) != len(v.Schema.Fields) {
		return fmt.Errorf("feature vector has %d values, schema %s wants %d", len(v.Values), v.Schema, len(v.Schema.Fields))
	}
	for i, f := range v.Schema.Fields {
		switch f.Kind {
		case Numeric:
			if math.IsNaN(v.Values[i].Num) || math.IsInf(v.Values[i].Num, 0) {
				return fmt.Errorf("feature %q is not a finite number", f.Name)
			}
		case Categorical:
			if v.Values[i].Cat == "" {
				return fmt.Errorf("feature %q is empty", f.Name)
			}
		}
	}
	return nil
}

// FeatureTable is a batch of vectors sharing one schema.
type FeatureTable struct {
	Schema ModelSchema
	Rows   [][]Value
}

// NewFeatureTable collects vectors into a table, refusing mixed schemas.
func NewFeatureTable(schema ModelSchema, vectors ...FeatureVector) (FeatureTable, error) {
	t := FeatureTable{Schema: schema, Rows: make([][]Value, 0, len(vectors))}
	for i, v := range vectors {
		if !v.Schema.Equal(schema) {
			return FeatureTable{}, fmt.Errorf("vector %d has schema %s, table wants %s", i, v.Schema, schema)
		}
		if err := v.Check(); err != nil {
			return FeatureTable{}, fmt.Errorf("vector %d: %w", i, err)
		}
		t.Rows = append(t.Rows, v.Values)
	}
	return t, nil
}

func (t FeatureTable) Len() int { return len(t.Rows) }

func (t FeatureTable) Row(i int) FeatureVector {
	return FeatureVector{Schema: t.Schema, Values: t.Rows[i]}
}

// Slice returns rows [i, j) sharing the underlying storage.
func (t FeatureTable) Slice(i, j int) FeatureTable {
	return FeatureTable{Schema: t.Schema, Rows: t.Rows[i:j]}
}
