package synth

import (
	"slices"
	"strconv"

	"student-predictor-go/features"
	"student-predictor-go/predictor"
)

// Coefficients of the generator's final score formula, per numeric feature.
var coefficients = map[string]float64{
	features.FieldAttendance:    0.3 / 2.5,
	features.FieldCGPA:          5 / 2.5,
	features.FieldAssignments:   1.2 / 2.5,
	features.FieldInternalMarks: 2 / 2.5,
}

// Approximate generator means, used to fold features a schema lacks into the intercept.
var means = map[string]float64{
	features.FieldAttendance:    85,
	features.FieldCGPA:          7,
	features.FieldAssignments:   7,
	features.FieldInternalMarks: 19.5,
}

// BaselineArtifact returns a linear artifact for schema that reproduces the
// generator's noiseless formula. Categorical features get zero weight.
func BaselineArtifact(schema features.ModelSchema, tax *features.Taxonomy) (predictor.Artifact, error) {
	if err := predictor.CheckSchema(schema, ""); err != nil {
		return predictor.Artifact{}, err
	}
	if tax == nil {
		tax = features.DefaultTaxonomy()
	}
	enc := predictor.Encoder{Categories: categories(tax), DropFirst: true}
	for name := range enc.Categories {
		if !schema.Has(name) {
			delete(enc.Categories, name)
		}
	}

	var intercept float64
	for name, c := range coefficients {
		if !schema.Has(name) {
			intercept += c * means[name]
		}
	}

	coefs := make([]float64, enc.Width(schema))
	pos := 0
	for _, f := range schema.Fields {
		if f.Kind == features.Categorical {
			pos += len(enc.Categories[f.Name]) - 1
		}
	}
	for _, f := range schema.Fields {
		if f.Kind == features.Numeric {
			coefs[pos] = coefficients[f.Name]
			pos++
		}
	}

	return predictor.Artifact{
		FormatVersion: predictor.FormatVersion,
		Schema:        schema,
		Encoder:       enc,
		Model: predictor.ModelSpec{
			Kind:   predictor.KindLinear,
			Linear: &predictor.Linear{Intercept: intercept, Coefficients: coefs},
		},
	}, nil
}

// categories lists every course, year and section in tax, sorted.
func categories(tax *features.Taxonomy) map[string][]string {
	var courses, sections []string
	maxYear := 0
	for _, c := range tax.Courses() {
		courses = append(courses, c.Name)
		maxYear = max(maxYear, c.MaxYears())
		for _, s := range c.Sections {
			sections = append(sections, s...)
		}
	}
	years := make([]string, maxYear)
	for y := range years {
		years[y] = strconv.Itoa(y + 1)
	}
	slices.Sort(courses)
	slices.Sort(sections)
	return map[string][]string{
		features.FieldCourse:  courses,
		features.FieldYear:    years,
		features.FieldSection: slices.Compact(sections),
	}
}
