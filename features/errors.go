package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrValidation is matched (via errors.Is) by every input validation failure.
var ErrValidation = errors.New("validation failed")

// ErrUnsupportedFormat is returned for uploads that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// OutOfRangeError reports a numeric input outside its declared bound.
type OutOfRangeError struct {
	Field string
	Value float64
	Bound Bound
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s: value %s outside [%s, %s]", e.Field, fmtNum(e.Value), fmtNum(e.Bound.Min), fmtNum(e.Bound.Max))
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrValidation }

// InvalidValueError reports a value that is missing or cannot be read as the expected type.
type InvalidValueError struct {
	Field    string
	Raw      string
	Expected string
}

func (e *InvalidValueError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("%s: missing value, expected %s", e.Field, e.Expected)
	}
	return fmt.Sprintf("%s: got %q, expected %s", e.Field, e.Raw, e.Expected)
}

func (e *InvalidValueError) Is(target error) bool { return target == ErrValidation }

// HierarchyError reports a course/year/section combination not in the taxonomy.
type HierarchyError struct {
	Course  string
	Year    *int // nil when only the course was checked
	Section string
	Reason  string
}

func (e *HierarchyError) Error() string {
	parts := []string{strconv.Quote(e.Course)}
	if e.Year != nil {
		parts = append(parts, strconv.Itoa(*e.Year))
	}
	if e.Section != "" {
		parts = append(parts, strconv.Quote(e.Section))
	}
	return fmt.Sprintf("invalid course/year/section (%s): %s", strings.Join(parts, ", "), e.Reason)
}

func (e *HierarchyError) Is(target error) bool { return target == ErrValidation }

// MissingColumnsError aborts a whole batch; Missing lists every absent column.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *MissingColumnsError) Is(target error) bool { return target == ErrValidation }

// RowError ties a validation failure to a 1-based data row of a batch.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Details flattens joined errors into one message per leaf failure.
func Details(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, Details(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
