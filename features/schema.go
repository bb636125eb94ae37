package features

import (
	"errors"
	"fmt"
	"slices"
)

// Input column names, as used in uploaded tables and model schemas.
const (
	FieldName          = "name"
	FieldRollNo        = "roll_no"
	FieldAttendance    = "attendance"
	FieldCGPA          = "cgpa"
	FieldPercentage    = "percentage"
	FieldAssignments   = "assignments"
	FieldInternalMarks = "internal_marks"
	FieldHours         = "hours"
	FieldCourse        = "course"
	FieldYear          = "year"
	FieldSection       = "section"
	FieldBranch        = "branch"
	FieldClassNum      = "class_num"
)

// FieldKind is the type a model expects for a feature.
type FieldKind int

const (
	Numeric FieldKind = iota
	Categorical
)

func (k FieldKind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

func (k FieldKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *FieldKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "numeric":
		*k = Numeric
	case "categorical":
		*k = Categorical
	default:
		return fmt.Errorf("unknown field kind %q", b)
	}
	return nil
}

// featureKinds lists every column a model may be fit on. percentage is absent
// on purpose: it is only ever an input to cgpa.
var featureKinds = map[string]FieldKind{
	FieldAttendance:    Numeric,
	FieldCGPA:          Numeric,
	FieldAssignments:   Numeric,
	FieldInternalMarks: Numeric,
	FieldHours:         Numeric,
	FieldCourse:        Categorical,
	FieldYear:          Categorical,
	FieldSection:       Categorical,
}

type Field struct {
	Name string    `json:"name"`
	Kind FieldKind `json:"kind"`
}

// ModelSchema is the ordered, typed list of features a trained model was fit on.
// Version changes whenever the field list of a named schema changes.
type ModelSchema struct {
	Name    string  `json:"name"`
	Version int     `json:"version"`
	Fields  []Field `json:"fields"`
}

func (s ModelSchema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of the named field, or -1.
func (s ModelSchema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s ModelSchema) Has(name string) bool { return s.Index(name) >= 0 }

func (s ModelSchema) Equal(o ModelSchema) bool {
	return s.Name == o.Name && s.Version == o.Version && slices.Equal(s.Fields, o.Fields)
}

func (s ModelSchema) String() string {
	return fmt.Sprintf("%s/v%d", s.Name, s.Version)
}

// Validate checks the schema is well formed: named, non-empty, no duplicates,
// and every field a known feature of the right kind.
func (s ModelSchema) Validate() error {
	if s.Name == "" {
		return errors.New("schema name is empty")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s has no fields", s)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		kind, ok := featureKinds[f.Name]
		if !ok {
			return fmt.Errorf("schema %s: unknown feature %q", s, f.Name)
		}
		if kind != f.Kind {
			return fmt.Errorf("schema %s: feature %q must be %s", s, f.Name, kind)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate feature %q", s, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func num(name string) Field { return Field{Name: name, Kind: Numeric} }
func cat(name string) Field { return Field{Name: name, Kind: Categorical} }

var (
	BasicSchema = ModelSchema{
		Name:    "basic",
		Version: 1,
		Fields:  []Field{num(FieldAttendance), num(FieldCGPA), num(FieldAssignments), cat(FieldCourse)},
	}
	InternalSchema = ModelSchema{
		Name:    "internal",
		Version: 1,
		Fields: []Field{
			num(FieldAttendance), num(FieldCGPA), num(FieldAssignments), num(FieldInternalMarks),
			cat(FieldCourse), cat(FieldYear), cat(FieldSection),
		},
	}
	HoursSchema = ModelSchema{
		Name:    "hours",
		Version: 1,
		Fields:  []Field{num(FieldHours), num(FieldAttendance), num(FieldCGPA), num(FieldAssignments), cat(FieldCourse)},
	}
)

// Schemas returns the registered schemas.
func Schemas() []ModelSchema {
	return []ModelSchema{BasicSchema, InternalSchema, HoursSchema}
}

func LookupSchema(name string) (ModelSchema, bool) {
	for _, s := range Schemas() {
		if s.Name == name {
			return s, true
		}
	}
	return ModelSchema{}, false
}
