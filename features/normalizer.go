package features

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"student-predictor-go/models"
)

// Normalizer turns manual records and uploaded tables into feature vectors for
// one model schema.
type Normalizer struct {
	schema   ModelSchema
	taxonomy *Taxonomy
	log      logrus.FieldLogger
}

func NewNormalizer(schema ModelSchema, taxonomy *Taxonomy, log logrus.FieldLogger) *Normalizer {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{schema: schema, taxonomy: taxonomy, log: log.WithField("schema", schema.String())}
}

func (n *Normalizer) Schema() ModelSchema { return n.schema }

func (n *Normalizer) Taxonomy() *Taxonomy { return n.taxonomy }

// Batch is the normalized form of an uploaded table. Table holds the accepted
// rows in input order; Accepted[k] is the 0-based source row of Table.Rows[k].
type Batch struct {
	Table    FeatureTable
	Accepted []int
	Rejected []*RowError
	// DerivedCGPA is set when cgpa was computed from percentage.
	DerivedCGPA bool
}

// Total is the number of data rows in the source table.
func (b *Batch) Total() int { return len(b.Accepted) + len(b.Rejected) }

// NormalizeTable derives cgpa if needed, checks column presence for the whole
// table, then validates each row. A missing column fails the batch; bad rows
// are collected in Rejected and the rest proceed.
func (n *Normalizer) NormalizeTable(t *Table) (*Batch, error) {
	derived := DeriveCGPAColumn(t)
	proj, err := SelectRequiredColumns(t, n.schema.Names())
	if err != nil {
		n.log.WithError(err).Warn("Rejecting batch")
		return nil, err
	}

	b := &Batch{Table: FeatureTable{Schema: n.schema}, DerivedCGPA: derived}
	for i, cells := range proj.Rows {
		values, err := n.normalizeRow(t, i, cells, derived)
		if err != nil {
			b.Rejected = append(b.Rejected, &RowError{Row: i + 1, Err: err})
			continue
		}
		b.Table.Rows = append(b.Table.Rows, values)
		b.Accepted = append(b.Accepted, i)
	}
	n.log.WithFields(logrus.Fields{
		"rows":     len(proj.Rows),
		"accepted": len(b.Accepted),
		"rejected": len(b.Rejected),
	}).Info("Normalized batch")
	return b, nil
}

func (n *Normalizer) normalizeRow(src *Table, i int, cells []string, derived bool) ([]Value, error) {
	values := make([]Value, len(n.schema.Fields))
	var errs []error
	for k, f := range n.schema.Fields {
		raw := cells[k]
		if f.Name == FieldCGPA && derived {
			// cgpa came from percentage; validate what the user actually wrote.
			raw, _ = src.Cell(i, FieldPercentage)
			v, err := parseNumber(FieldPercentage, raw)
			if err == nil {
				v, err = NormalizeScore(models.InputPercentage, v)
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			values[k].Num = v
			continue
		}
		v, err := parseField(f, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[k] = v
	}
	if len(errs) == 0 {
		if err := n.checkHierarchy(values); err != nil {
			errs = append(errs, err)
		}
	}
	return values, errors.Join(errs...)
}

// checkHierarchy validates the course, year and section the schema consumes.
func (n *Normalizer) checkHierarchy(values []Value) error {
	ci, yi, si := n.schema.Index(FieldCourse), n.schema.Index(FieldYear), n.schema.Index(FieldSection)
	if ci < 0 {
		return nil
	}
	course := values[ci].Cat
	if yi < 0 {
		return n.taxonomy.ValidateCourse(course)
	}
	year, _ := strconv.Atoi(values[yi].Cat)
	if si < 0 {
		return n.taxonomy.ValidateYear(course, year)
	}
	return n.taxonomy.Validate(course, year, values[si].Cat)
}

func parseField(f Field, raw string) (Value, error) {
	if f.Kind == Numeric {
		v, err := parseNumber(f.Name, raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Num: v}, CheckRange(f.Name, v)
	}
	if raw == "" {
		return Value{}, &InvalidValueError{Field: f.Name, Expected: "a value"}
	}
	if f.Name == FieldYear {
		y, err := parseYear(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Cat: strconv.Itoa(y)}, nil
	}
	return Value{Cat: raw}, nil
}

func parseNumber(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &InvalidValueError{Field: field, Raw: raw, Expected: "a number"}
	}
	return v, nil
}

// parseYear accepts "2" and spreadsheet-style "2.0".
func parseYear(raw string) (int, error) {
	if y, err := strconv.Atoi(raw); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, &InvalidValueError{Field: FieldYear, Raw: raw, Expected: "a whole number"}
	}
	return int(f), nil
}

// NormalizeRecord builds the feature vector for a manual entry. Every problem
// found is returned, joined; a record with any problem yields no vector.
func (n *Normalizer) NormalizeRecord(rec models.RawStudentRecord) (FeatureVector, error) {
	var errs []error

	// Range-check every numeric input that was supplied, used or not.
	numeric := map[string]*float64{
		FieldAttendance:    rec.Attendance,
		FieldAssignments:   rec.Assignments,
		FieldInternalMarks: rec.InternalMarks,
		FieldHours:         rec.Hours,
	}
	for _, name := range []string{FieldAttendance, FieldAssignments, FieldInternalMarks, FieldHours} {
		if p := numeric[name]; p != nil {
			if err := CheckRange(name, *p); err != nil {
				errs = append(errs, err)
			}
		}
	}
	var cgpa float64
	if rec.ScoreInput != nil {
		v, err := NormalizeScore(rec.InputType, *rec.ScoreInput)
		if err != nil {
			errs = append(errs, err)
		}
		cgpa = v
	}
	if err := n.checkRecordHierarchy(rec); err != nil {
		errs = append(errs, err)
	}

	values := make([]Value, len(n.schema.Fields))
	for k, f := range n.schema.Fields {
		switch f.Name {
		case FieldCGPA:
			if rec.ScoreInput == nil {
				errs = append(errs, &InvalidValueError{Field: "score_input", Expected: "a CGPA or percentage"})
			}
			values[k].Num = cgpa
		case FieldCourse:
			values[k].Cat = rec.Course
		case FieldSection:
			values[k].Cat = rec.Section
		case FieldYear:
			if rec.Year != nil {
				values[k].Cat = strconv.Itoa(*rec.Year)
			}
		default:
			if p := numeric[f.Name]; p != nil {
				values[k].Num = *p
			} else {
				errs = append(errs, &InvalidValueError{Field: f.Name, Expected: "a number"})
			}
			continue
		}
		if f.Kind == Categorical && values[k].Cat == "" {
			errs = append(errs, &InvalidValueError{Field: f.Name, Expected: "a value"})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return FeatureVector{}, err
	}
	return FeatureVector{Schema: n.schema, Values: values}, nil
}

// checkRecordHierarchy validates whatever of course, year and section the
// form supplied; the UI always offers all three.
func (n *Normalizer) checkRecordHierarchy(rec models.RawStudentRecord) error {
	if rec.Course == "" {
		return nil
	}
	switch {
	case rec.Year == nil:
		return n.taxonomy.ValidateCourse(rec.Course)
	case rec.Section == "":
		return n.taxonomy.ValidateYear(rec.Course, *rec.Year)
	default:
		return n.taxonomy.Validate(rec.Course, *rec.Year, rec.Section)
	}
}

// String is used in log lines.
func (b *Batch) String() string {
	return fmt.Sprintf("%d rows (%d accepted, %d rejected)", b.Total(), len(b.Accepted), len(b.Rejected))
}
