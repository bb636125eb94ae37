// Package synth produces synthetic student data and a baseline model artifact
// for development and demos.
package synth

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"strconv"

	"student-predictor-go/features"
)

// TargetColumn holds the simulated final score in generated tables.
const TargetColumn = "final_score"

var branches = []string{"CSE", "ECE", "IT", "Civil", "Mechanical"}

// Columns of a generated table, in order.
var Columns = []string{
	features.FieldName, features.FieldRollNo, features.FieldAttendance, features.FieldCGPA,
	features.FieldAssignments, features.FieldInternalMarks, features.FieldHours, features.FieldCourse,
	features.FieldBranch, features.FieldYear, features.FieldSection, TargetColumn,
}

// Generate draws n students. The same seed always yields the same table.
// Course, year and section are drawn from tax so every row validates.
func Generate(n int, seed int64, tax *features.Taxonomy) *features.Table {
	if tax == nil {
		tax = features.DefaultTaxonomy()
	}
	rng := rand.New(rand.NewSource(seed))
	courses := tax.Courses()

	t := &features.Table{Columns: slices.Clone(Columns), Rows: make([][]string, n)}
	for i := 0; i < n; i++ {
		attendance := clamp(rng.NormFloat64()*10+85, 40, 100)
		cgpa := clamp(rng.NormFloat64()*1.2+7, 0, 10)
		assignments := float64(4 + rng.Intn(7))     // 4..10
		internalMarks := float64(10 + rng.Intn(20)) // 10..29
		hours := clamp(rng.NormFloat64()*6+15, 0, 60)

		course := courses[rng.Intn(len(courses))]
		year := 1 + rng.Intn(course.MaxYears())
		sections := course.Sections[year]
		section := sections[rng.Intn(len(sections))]

		final := (5*cgpa + 0.3*attendance + 1.2*assignments + 2*internalMarks) / 2.5
		final = clamp(final+rng.NormFloat64()*5, 0, 100)

		t.Rows[i] = []string{
			fmt.Sprintf("Student_%d", i),
			fmt.Sprintf("R%03d", i),
			fmtFloat(attendance),
			fmtFloat(cgpa),
			strconv.Itoa(int(assignments)),
			strconv.Itoa(int(internalMarks)),
			fmtFloat(hours),
			course.Name,
			branches[rng.Intn(len(branches))],
			strconv.Itoa(year),
			section,
			fmtFloat(final),
		}
	}
	return t
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
