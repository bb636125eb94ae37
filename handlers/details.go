package handlers

import (
	"fmt"
	"strconv"

	"student-predictor-go/features"
	"student-predictor-go/models"
)

var detailsColumns = []string{"Name", "Roll No.", "Course", "Year", "Branch", "Section", "Internal Marks", features.ScoreColumn}

func details(rec models.RawStudentRecord, res models.PredictionResult) models.StudentDetails {
	d := models.StudentDetails{
		Name:          rec.Name,
		RollNo:        rec.RollNo,
		Course:        rec.Course,
		Branch:        rec.BranchOrDefault(),
		Section:       rec.Section,
		PredictedText: fmt.Sprintf("%.1f/100", res.Score),
	}
	if rec.Year != nil {
		d.Year = strconv.Itoa(*rec.Year)
	}
	if rec.InternalMarks != nil {
		d.InternalMarks = strconv.FormatFloat(*rec.InternalMarks, 'f', -1, 64)
	}
	return d
}

func detailsTable(d models.StudentDetails) *features.Table {
	return &features.Table{
		Columns: detailsColumns,
		Rows:    [][]string{{d.Name, d.RollNo, d.Course, d.Year, d.Branch, d.Section, d.InternalMarks, d.PredictedText}},
	}
}
