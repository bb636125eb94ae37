package features

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"student-predictor-go/models"
)

func ptr[T any](v T) *T { return &v }

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func mustCSV(t *testing.T, s string) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name    string
		typ     models.InputType
		value   float64
		want    float64
		wantErr bool
	}{
		{name: "cgpa passthrough", typ: models.InputCGPA, value: 7.5, want: 7.5},
		{name: "empty type means cgpa", typ: "", value: 10, want: 10},
		{name: "percentage divided", typ: models.InputPercentage, value: 85, want: 8.5},
		{name: "percentage zero", typ: models.InputPercentage, value: 0, want: 0},
		{name: "percentage hundred", typ: models.InputPercentage, value: 100, want: 10},
		{name: "cgpa above ten", typ: models.InputCGPA, value: 10.5, wantErr: true},
		{name: "negative percentage", typ: models.InputPercentage, value: -1, wantErr: true},
		{name: "percentage above hundred", typ: models.InputPercentage, value: 100.5, wantErr: true},
		{name: "unknown type", typ: "GPA", value: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeScore(tt.typ, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestNormalizeScore_PercentageAlwaysOnCGPAScale(t *testing.T) {
	for p := 0.0; p <= 100; p += 0.5 {
		got, err := NormalizeScore(models.InputPercentage, p)
		require.NoError(t, err)
		assert.InDelta(t, p/10, got, 1e-12)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 10.0)
	}
}

func TestCheckRange_ReportsFieldValueAndBound(t *testing.T) {
	err := CheckRange(FieldInternalMarks, 31)
	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, FieldInternalMarks, oor.Field)
	assert.Equal(t, 31.0, oor.Value)
	assert.Equal(t, Bound{0, 30}, oor.Bound)
	assert.Equal(t, "internal_marks: value 31 outside [0, 30]", err.Error())

	assert.NoError(t, CheckRange(FieldHours, 168))
	assert.Error(t, CheckRange(FieldHours, 168.1))
	assert.NoError(t, CheckRange("unbounded", -5))
}

func TestDeriveCGPAColumn(t *testing.T) {
	t.Run("derived from percentage", func(t *testing.T) {
		tbl := mustCSV(t, "name,percentage\na,75\nb,x\n")
		assert.True(t, DeriveCGPAColumn(tbl))
		v, ok := tbl.Cell(0, FieldCGPA)
		require.True(t, ok)
		assert.Equal(t, "7.5", v)
		v, _ = tbl.Cell(1, FieldCGPA)
		assert.Empty(t, v)
	})
	t.Run("cgpa takes precedence", func(t *testing.T) {
		tbl := mustCSV(t, "percentage,cgpa\n100,5\n")
		assert.False(t, DeriveCGPAColumn(tbl))
		v, _ := tbl.Cell(0, FieldCGPA)
		assert.Equal(t, "5", v)
		assert.Len(t, tbl.Columns, 2)
	})
	t.Run("neither column", func(t *testing.T) {
		tbl := mustCSV(t, "name\na\n")
		assert.False(t, DeriveCGPAColumn(tbl))
		assert.False(t, tbl.HasColumn(FieldCGPA))
	})
}

func TestSelectRequiredColumns(t *testing.T) {
	tbl := mustCSV(t, "course,name,cgpa,attendance,extra\nMBA,a,7,80,z\n")

	proj, err := SelectRequiredColumns(tbl, []string{"attendance", "cgpa", "course"})
	require.NoError(t, err)
	assert.Equal(t, []string{"attendance", "cgpa", "course"}, proj.Columns)
	assert.Equal(t, [][]string{{"80", "7", "MBA"}}, proj.Rows)

	_, err = SelectRequiredColumns(tbl, InternalSchema.Names())
	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"assignments", "internal_marks", "year", "section"}, missing.Missing)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNormalizeTable_MissingColumnsAbortsBatch(t *testing.T) {
	n := NewNormalizer(InternalSchema, nil, quietLogger())
	tbl := mustCSV(t, "name,attendance,percentage,course\na,80,70,MBA\nb,90,80,BCA\n")

	b, err := n.NormalizeTable(tbl)
	require.Error(t, err)
	assert.Nil(t, b)
	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"assignments", "internal_marks", "year", "section"}, missing.Missing)
}

func TestNormalizeTable_CollectsRowErrors(t *testing.T) {
	n := NewNormalizer(InternalSchema, nil, quietLogger())
	tbl := mustCSV(t, strings.Join([]string{
		"name,attendance,cgpa,assignments,internal_marks,course,year,section,branch",
		"ok1,80,7,8,20,B.Tech,2,CS1,CSE",
		"bad-range,120,7,8,20,B.Tech,2,CS1,CSE",
		"bad-year,80,7,8,20,MBA,5,A,",
		"bad-num,80,abc,8,20,BCA,1,A,",
		"ok2,60,5.5,4,10,MCA,2,B,IT",
	}, "\n"))

	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, 5, b.Total())
	assert.Equal(t, []int{0, 4}, b.Accepted)
	require.Equal(t, 2, b.Table.Len())
	assert.Equal(t, "B.Tech", b.Table.Rows[0][4].Cat)
	assert.Equal(t, "MCA", b.Table.Rows[1][4].Cat)

	require.Len(t, b.Rejected, 3)
	assert.Equal(t, 2, b.Rejected[0].Row)
	var oor *OutOfRangeError
	require.ErrorAs(t, b.Rejected[0].Err, &oor)
	assert.Equal(t, FieldAttendance, oor.Field)

	assert.Equal(t, 3, b.Rejected[1].Row)
	var he *HierarchyError
	require.ErrorAs(t, b.Rejected[1].Err, &he)
	assert.Equal(t, "MBA", he.Course)

	assert.Equal(t, 4, b.Rejected[2].Row)
	var iv *InvalidValueError
	require.ErrorAs(t, b.Rejected[2].Err, &iv)
	assert.Equal(t, FieldCGPA, iv.Field)
	assert.Equal(t, "abc", iv.Raw)
}

func TestNormalizeTable_ShortRowIsRejectedNotFatal(t *testing.T) {
	n := NewNormalizer(BasicSchema, nil, quietLogger())
	tbl := mustCSV(t, "attendance,cgpa,assignments,course\n80,7,8,MBA\n90,8\n60,6,5,BCA\n")

	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, b.Accepted)
	require.Len(t, b.Rejected, 1)
	assert.Equal(t, 2, b.Rejected[0].Row)
	assert.ElementsMatch(t, []string{
		"assignments: missing value, expected a number",
		"course: missing value, expected a value",
	}, Details(b.Rejected[0].Err))

	out := AttachPredictions(tbl, b, []float64{50, 60})
	assert.Equal(t, []string{"90", "8", "", "", "", "assignments: missing value, expected a number; course: missing value, expected a value"}, out.Rows[1])
	assert.Equal(t, []string{"60", "6", "5", "BCA", "60.00", ""}, out.Rows[2])
}

func TestNormalizeTable_CGPAPrecedence(t *testing.T) {
	n := NewNormalizer(BasicSchema, nil, quietLogger())
	tbl := mustCSV(t, "attendance,percentage,cgpa,assignments,course\n80,100,5,8,MBA\n")

	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	require.Equal(t, 1, b.Table.Len())
	assert.False(t, b.DerivedCGPA)
	v, ok := b.Table.Row(0).Numeric(FieldCGPA)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestNormalizeTable_DerivedCGPAValidatesPercentage(t *testing.T) {
	n := NewNormalizer(BasicSchema, nil, quietLogger())
	tbl := mustCSV(t, "attendance,percentage,assignments,course\n80,72,8,MBA\n80,150,8,MBA\n")

	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	assert.True(t, b.DerivedCGPA)
	require.Equal(t, 1, b.Table.Len())
	v, _ := b.Table.Row(0).Numeric(FieldCGPA)
	assert.InDelta(t, 7.2, v, 1e-12)

	require.Len(t, b.Rejected, 1)
	var oor *OutOfRangeError
	require.ErrorAs(t, b.Rejected[0].Err, &oor)
	assert.Equal(t, FieldPercentage, oor.Field)
	assert.False(t, b.Table.Schema.Has(FieldPercentage))
}

func TestNormalizeTable_BasicSchemaChecksCourseOnly(t *testing.T) {
	n := NewNormalizer(BasicSchema, nil, quietLogger())
	tbl := mustCSV(t, "attendance,cgpa,assignments,course,section\n80,7,8,MBA,Z\n80,7,8,PhD,A\n")

	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, b.Accepted)
	require.Len(t, b.Rejected, 1)
	assert.Contains(t, b.Rejected[0].Error(), "unknown course")
}

func TestNormalizeTable_YearAcceptsSpreadsheetFloats(t *testing.T) {
	n := NewNormalizer(InternalSchema, nil, quietLogger())
	tbl := mustCSV(t, "attendance,cgpa,assignments,internal_marks,course,year,section\n80,7,8,20,BCA,2.0,C\n80,7,8,20,BCA,2.5,C\n")

	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	require.Equal(t, 1, b.Table.Len())
	y, _ := b.Table.Row(0).Categorical(FieldYear)
	assert.Equal(t, "2", y)
	require.Len(t, b.Rejected, 1)
	assert.Contains(t, b.Rejected[0].Error(), "whole number")
}

func TestNormalizeRecord(t *testing.T) {
	n := NewNormalizer(InternalSchema, nil, quietLogger())

	t.Run("complete entry", func(t *testing.T) {
		vec, err := n.NormalizeRecord(models.RawStudentRecord{
			Name:          "Asha",
			Attendance:    ptr(80.0),
			ScoreInput:    ptr(7.0),
			InputType:     models.InputCGPA,
			Assignments:   ptr(8.0),
			InternalMarks: ptr(20.0),
			Course:        "B.Tech",
			Year:          ptr(2),
			Section:       "CS1",
		})
		require.NoError(t, err)
		require.NoError(t, vec.Check())
		assert.Equal(t, InternalSchema.Names(), vec.Schema.Names())
		cgpa, _ := vec.Numeric(FieldCGPA)
		assert.Equal(t, 7.0, cgpa)
		year, _ := vec.Categorical(FieldYear)
		assert.Equal(t, "2", year)
	})

	t.Run("percentage converted", func(t *testing.T) {
		vec, err := n.NormalizeRecord(models.RawStudentRecord{
			Attendance:    ptr(80.0),
			ScoreInput:    ptr(65.0),
			InputType:     models.InputPercentage,
			Assignments:   ptr(8.0),
			InternalMarks: ptr(20.0),
			Course:        "MBA",
			Year:          ptr(1),
			Section:       "B",
		})
		require.NoError(t, err)
		cgpa, _ := vec.Numeric(FieldCGPA)
		assert.InDelta(t, 6.5, cgpa, 1e-12)
	})

	t.Run("reports every problem", func(t *testing.T) {
		_, err := n.NormalizeRecord(models.RawStudentRecord{
			Attendance:  ptr(101.0),
			ScoreInput:  ptr(7.0),
			Assignments: ptr(11.0),
			Course:      "MBA",
			Year:        ptr(5),
			Section:     "A",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		details := Details(err)
		assert.Contains(t, details, "attendance: value 101 outside [0, 100]")
		assert.Contains(t, details, "assignments: value 11 outside [0, 10]")
		assert.Contains(t, details, "internal_marks: missing value, expected a number")
		assert.Contains(t, details, `invalid course/year/section ("MBA", 5): year must be in [1, 2]`)
	})

	t.Run("unused inputs are still range checked", func(t *testing.T) {
		basic := NewNormalizer(BasicSchema, nil, quietLogger())
		_, err := basic.NormalizeRecord(models.RawStudentRecord{
			Attendance:  ptr(80.0),
			ScoreInput:  ptr(7.0),
			Assignments: ptr(8.0),
			Hours:       ptr(200.0),
			Course:      "MBA",
		})
		var oor *OutOfRangeError
		require.ErrorAs(t, err, &oor)
		assert.Equal(t, FieldHours, oor.Field)
	})

	t.Run("missing score input", func(t *testing.T) {
		_, err := n.NormalizeRecord(models.RawStudentRecord{
			Attendance: ptr(80.0), Assignments: ptr(8.0), InternalMarks: ptr(20.0),
			Course: "MBA", Year: ptr(1), Section: "A",
		})
		var iv *InvalidValueError
		require.True(t, errors.As(err, &iv))
		assert.Equal(t, "score_input", iv.Field)
	})
}

func TestAttachPredictions(t *testing.T) {
	n := NewNormalizer(BasicSchema, nil, quietLogger())
	tbl := mustCSV(t, "name,attendance,percentage,assignments,course\na,80,70,8,MBA\nb,80,70,8,Nope\nc,90,90,9,BCA\n")

	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	out := AttachPredictions(tbl, b, []float64{61.234, 88})

	assert.Equal(t, []string{"name", "attendance", "percentage", "assignments", "course", "cgpa", ScoreColumn, RejectionColumn}, out.Columns)
	require.Len(t, out.Rows, 3)
	assert.Equal(t, "61.23", out.Rows[0][6])
	assert.Equal(t, "", out.Rows[1][6])
	assert.Contains(t, out.Rows[1][7], "unknown course")
	assert.Equal(t, "88.00", out.Rows[2][6])
	assert.Equal(t, "a", out.Rows[0][0])
	assert.Equal(t, "c", out.Rows[2][0])
	// source table is untouched apart from the derived cgpa column
	assert.Len(t, tbl.Columns, 6)
}

func TestAttachPredictions_NoReasonColumnWhenAllAccepted(t *testing.T) {
	n := NewNormalizer(BasicSchema, nil, quietLogger())
	tbl := mustCSV(t, "attendance,cgpa,assignments,course\n80,7,8,MBA\n")
	b, err := n.NormalizeTable(tbl)
	require.NoError(t, err)
	out := AttachPredictions(tbl, b, []float64{50})
	assert.Equal(t, ScoreColumn, out.Columns[len(out.Columns)-1])
}
