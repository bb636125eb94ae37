package features

import (
	"slices"
	"strconv"
	"strings"
)

// ScoreColumn is appended to batch output tables.
const (
	ScoreColumn     = "Predicted Final Score"
	RejectionColumn = "Rejection Reason"
)

// Table is an uploaded table of raw string cells with a header row.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of column, or -1.
func (t *Table) Index(column string) int {
	return slices.Index(t.Columns, column)
}

func (t *Table) HasColumn(column string) bool { return t.Index(column) >= 0 }

// Cell returns the trimmed value at row i of column, and whether the column exists.
func (t *Table) Cell(i int, column string) (string, bool) {
	j := t.Index(column)
	if j < 0 {
		return "", false
	}
	if j >= len(t.Rows[i]) {
		return "", true
	}
	return strings.TrimSpace(t.Rows[i][j]), true
}

// AddColumn appends a column; values must have one entry per row.
func (t *Table) AddColumn(name string, values []string) {
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
}

func (t *Table) Clone() *Table {
	c := &Table{Columns: slices.Clone(t.Columns), Rows: make([][]string, len(t.Rows))}
	for i, r := range t.Rows {
		c.Rows[i] = slices.Clone(r)
	}
	return c
}

// DeriveCGPAColumn adds cgpa = percentage/10 when the table has a percentage
// column but no cgpa column, and reports whether it did. When both exist cgpa
// wins and percentage is left alone. Cells whose percentage cannot be read get
// an empty cgpa; row validation reports them.
func DeriveCGPAColumn(t *Table) bool {
	if t.HasColumn(FieldCGPA) || !t.HasColumn(FieldPercentage) {
		return false
	}
	values := make([]string, len(t.Rows))
	for i := range t.Rows {
		raw, _ := t.Cell(i, FieldPercentage)
		if p, err := strconv.ParseFloat(raw, 64); err == nil {
			values[i] = fmtNum(p / 10)
		}
	}
	t.AddColumn(FieldCGPA, values)
	return true
}

// SelectRequiredColumns projects t onto required, in that order. If any
// required column is absent the whole table is rejected with every missing name.
func SelectRequiredColumns(t *Table, required []string) (*Table, error) {
	idx := make([]int, len(required))
	var missing []string
	for k, name := range required {
		idx[k] = t.Index(name)
		if idx[k] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}
	out := &Table{Columns: slices.Clone(required), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		proj := make([]string, len(idx))
		for k, j := range idx {
			if j < len(row) {
				proj[k] = strings.TrimSpace(row[j])
			}
		}
		out.Rows[i] = proj
	}
	return out, nil
}

// AttachPredictions returns a copy of t with the score column filled for
// accepted rows. Rejected rows keep an empty score and, only when there are any,
// a reason column.
func AttachPredictions(t *Table, batch *Batch, scores []float64) *Table {
	out := t.Clone()
	scoreCells := make([]string, len(out.Rows))
	for k, i := range batch.Accepted {
		scoreCells[i] = strconv.FormatFloat(scores[k], 'f', 2, 64)
	}
	out.AddColumn(ScoreColumn, scoreCells)
	if len(batch.Rejected) > 0 {
		reasons := make([]string, len(out.Rows))
		for _, re := range batch.Rejected {
			reasons[re.Row-1] = strings.Join(Details(re.Err), "; ")
		}
		out.AddColumn(RejectionColumn, reasons)
	}
	return out
}
