package features

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Course lists the sections offered in each year of a course. Years run
// contiguously from 1 to len(Sections).
type Course struct {
	Name     string           `yaml:"name" json:"name"`
	Sections map[int][]string `yaml:"sections" json:"sections"`
}

func (c Course) MaxYears() int { return len(c.Sections) }

// Taxonomy is the static course -> year -> section table used to validate
// manual entry and batch rows.
type Taxonomy struct {
	courses []Course
	byName  map[string]int
}

type taxonomyFile struct {
	Courses []Course `yaml:"courses"`
}

func NewTaxonomy(courses []Course) (*Taxonomy, error) {
	if len(courses) == 0 {
		return nil, errors.New("taxonomy has no courses")
	}
	t := &Taxonomy{byName: make(map[string]int, len(courses))}
	for _, c := range courses {
		if c.Name == "" {
			return nil, errors.New("taxonomy course with empty name")
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("taxonomy: duplicate course %q", c.Name)
		}
		if len(c.Sections) == 0 {
			return nil, fmt.Errorf("taxonomy: course %q has no years", c.Name)
		}
		for y := 1; y <= len(c.Sections); y++ {
			if len(c.Sections[y]) == 0 {
				return nil, fmt.Errorf("taxonomy: course %q year %d has no sections", c.Name, y)
			}
		}
		t.byName[c.Name] = len(t.courses)
		t.courses = append(t.courses, c)
	}
	return t, nil
}

// LoadTaxonomy reads a YAML taxonomy of the form
//
//	courses:
//	  - name: MBA
//	    sections:
//	      1: [A, B]
//	      2: [A, B]
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy %s: %w", path, err)
	}
	return NewTaxonomy(f.Courses)
}

var upperSections = []string{"CS1", "CS2", "CS3", "EC1", "EC2", "EE1", "EE2", "ME1", "ME2", "A", "B", "C", "D"}

// DefaultTaxonomy is the course table the predictor ships with.
func DefaultTaxonomy() *Taxonomy {
	t, err := NewTaxonomy([]Course{
		{Name: "B.Tech", Sections: map[int][]string{
			1: {"A", "B", "C", "D", "E", "F"},
			2: upperSections,
			3: upperSections,
			4: upperSections,
		}},
		{Name: "MBA", Sections: map[int][]string{1: {"A", "B"}, 2: {"A", "B"}}},
		{Name: "BCA", Sections: map[int][]string{1: {"A", "B"}, 2: {"A", "B", "C"}, 3: {"A", "B", "C"}}},
		{Name: "MCA", Sections: map[int][]string{1: {"A", "B"}, 2: {"A", "B"}}},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Courses returns the courses in declaration order.
func (t *Taxonomy) Courses() []Course {
	return slices.Clone(t.courses)
}

func (t *Taxonomy) course(name string) (Course, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Course{}, false
	}
	return t.courses[i], true
}

// ValidateCourse checks the course exists.
func (t *Taxonomy) ValidateCourse(course string) error {
	if _, ok := t.course(course); !ok {
		return &HierarchyError{Course: course, Reason: "unknown course, expected one of " + fmt.Sprint(t.courseNames())}
	}
	return nil
}

// ValidateYear checks year lies in [1, max years of course].
func (t *Taxonomy) ValidateYear(course string, year int) error {
	c, ok := t.course(course)
	if !ok {
		return t.ValidateCourse(course)
	}
	if year < 1 || year > c.MaxYears() {
		return &HierarchyError{Course: course, Year: &year, Reason: fmt.Sprintf("year must be in [1, %d]", c.MaxYears())}
	}
	return nil
}

// Sections returns the valid sections for a course year.
func (t *Taxonomy) Sections(course string, year int) ([]string, error) {
	if err := t.ValidateYear(course, year); err != nil {
		return nil, err
	}
	c, _ := t.course(course)
	return slices.Clone(c.Sections[year]), nil
}

// Validate checks the full course/year/section hierarchy. Violations are
// reported, never corrected.
func (t *Taxonomy) Validate(course string, year int, section string) error {
	sections, err := t.Sections(course, year)
	if err != nil {
		return err
	}
	if !slices.Contains(sections, section) {
		return &HierarchyError{
			Course:  course,
			Year:    &year,
			Section: section,
			Reason:  fmt.Sprintf("section must be one of %v", sections),
		}
	}
	return nil
}

func (t *Taxonomy) courseNames() []string {
	out := make([]string, len(t.courses))
	for i, c := range t.courses {
		out[i] = c.Name
	}
	return out
}
