package features

import (
	"fmt"
	"math"

	"student-predictor-go/models"
)

// Bound is a closed numeric interval.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (b Bound) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= b.Min && v <= b.Max
}

// Bounds are the acquisition-time limits for numeric inputs.
var Bounds = map[string]Bound{
	FieldAttendance:    {0, 100},
	FieldCGPA:          {0, 10},
	FieldPercentage:    {0, 100},
	FieldAssignments:   {0, 10},
	FieldInternalMarks: {0, 30},
	FieldHours:         {0, 168},
}

// CheckRange rejects v if it falls outside the bound declared for field.
// Fields without a bound always pass.
func CheckRange(field string, v float64) error {
	b, ok := Bounds[field]
	if !ok {
		return nil
	}
	if !b.Contains(v) {
		return &OutOfRangeError{Field: field, Value: v, Bound: b}
	}
	return nil
}

// NormalizeScore converts a CGPA or percentage input to the 0-10 CGPA scale.
// Out-of-range input is an error; it is never clamped here.
func NormalizeScore(inputType models.InputType, value float64) (float64, error) {
	switch inputType {
	case models.InputPercentage:
		if err := CheckRange(FieldPercentage, value); err != nil {
			return 0, err
		}
		return value / 10, nil
	case models.InputCGPA, "":
		if err := CheckRange(FieldCGPA, value); err != nil {
			return 0, err
		}
		return value, nil
	}
	return 0, &InvalidValueError{
		Field:    "input_type",
		Raw:      string(inputType),
		Expected: fmt.Sprintf("%s or %s", models.InputCGPA, models.InputPercentage),
	}
}
