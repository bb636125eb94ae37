package predictor

import (
	"errors"
	"fmt"
)

// Linear is intercept + coefficients · row.
type Linear struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (l *Linear) width() int { return len(l.Coefficients) }

func (l *Linear) score(row []float64) float64 {
	s := l.Intercept
	for i, c := range l.Coefficients {
		s += c * row[i]
	}
	return s
}

// Node is one node of a regression tree. Left < 0 marks a leaf; otherwise rows
// with row[Feature] <= Threshold go to Left and the rest to Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) check(width int) error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			continue
		}
		// Children always follow their parent, which also rules out cycles.
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, n.Left, n.Right)
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d, encoded width is %d", i, n.Feature, width)
		}
	}
	return nil
}

func (t *Tree) score(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest averages the output of its trees.
type Forest struct {
	Trees []Tree `json:"trees"`

	w int
}

func (f *Forest) width() int { return f.w }

func (f *Forest) score(row []float64) float64 {
	var s float64
	for i := range f.Trees {
		s += f.Trees[i].score(row)
	}
	return s / float64(len(f.Trees))
}
