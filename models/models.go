package models

import "time"

// InputType says how RawStudentRecord.ScoreInput should be read.
type InputType string

const (
	InputCGPA       InputType = "CGPA"       // 0-10 scale
	InputPercentage InputType = "Percentage" // 0-100 scale
)

// BranchUnset is shown in place of an empty branch.
const BranchUnset = "N/A"

// RawStudentRecord is one manual form submission. Pointer fields are optional;
// which ones are required depends on the active model schema.
type RawStudentRecord struct {
	Name          string    `json:"name"`
	RollNo        string    `json:"roll_no"`
	Attendance    *float64  `json:"attendance"`
	ScoreInput    *float64  `json:"score_input"`
	InputType     InputType `json:"input_type" binding:"omitempty,oneof=CGPA Percentage"`
	Assignments   *float64  `json:"assignments"`
	InternalMarks *float64  `json:"internal_marks"`
	Hours         *float64  `json:"hours"`
	Course        string    `json:"course"`
	Year          *int      `json:"year"`
	Section       string    `json:"section"`
	Branch        string    `json:"branch"`
	ClassNum      string    `json:"class_num"`
}

// BranchOrDefault returns the branch, or BranchUnset when none was given.
func (r RawStudentRecord) BranchOrDefault() string {
	if r.Branch == "" {
		return BranchUnset
	}
	return r.Branch
}

// Verdict is the qualitative tier of a predicted score.
type Verdict string

const (
	VerdictExcellent Verdict = "Excellent"
	VerdictGood      Verdict = "Good"
	VerdictAverage   Verdict = "Average"
	VerdictLow       Verdict = "Low"
)

// Message is the user-facing sentence shown next to the verdict.
func (v Verdict) Message() string {
	switch v {
	case VerdictExcellent:
		return "Excellent: likely top performer"
	case VerdictGood:
		return "Good: solid performance"
	case VerdictAverage:
		return "Average: needs improvement"
	case VerdictLow:
		return "Low: significant improvement needed"
	}
	return string(v)
}

// PredictionResult is a clipped score and its verdict.
type PredictionResult struct {
	Score   float64 `json:"score"`
	Verdict Verdict `json:"verdict"`
}

// StudentDetails is the key/value row shown (and downloadable) after a manual prediction.
type StudentDetails struct {
	Name          string `json:"name"`
	RollNo        string `json:"roll_no"`
	Course        string `json:"course"`
	Year          string `json:"year"`
	Branch        string `json:"branch"`
	Section       string `json:"section"`
	InternalMarks string `json:"internal_marks"`
	PredictedText string `json:"predicted_final_score"`
}

// PredictionRecord is a stored manual prediction
type PredictionRecord struct {
	ID        string           `json:"id"`
	Schema    string           `json:"schema"`
	Details   StudentDetails   `json:"details"`
	Result    PredictionResult `json:"result"`
	CreatedAt time.Time        `json:"createdAt"`
}

// BatchSummary describes a stored batch without its payload.
type BatchSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Schema    string    `json:"schema"`
	Total     int       `json:"total"`
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
	CreatedAt time.Time `json:"createdAt"`
}

// BatchRecord is a stored batch output. OutputCSV holds the full annotated table.
type BatchRecord struct {
	BatchSummary
	OutputCSV []byte `json:"-"`
}
