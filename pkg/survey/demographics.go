package survey

import "sort"

// Demographic describes one coded demographic column of the survey export.
type Demographic struct {
	Name   string
	Column string
	Labels map[int]string
}

var (
	Gender = Demographic{
		Name:   "gender",
		Column: "Geschlecht",
		Labels: map[int]string{1: "Male", 2: "Female", 3: "Diverse"},
	}
	AgeGroup = Demographic{
		Name:   "age",
		Column: "Altersgruppe",
		Labels: map[int]string{1: "<30", 2: "30-44", 3: "45-59", 4: ">60"},
	}
	Proficiency = Demographic{
		Name:   "proficiency",
		Column: "Englischkenntnisse",
		Labels: map[int]string{1: "A1-A2", 2: "B1-B2", 3: "C1-C2"},
	}
)

// Demographics lists the stratification columns in report order.
var Demographics = []Demographic{Gender, AgeGroup, Proficiency}

// Codes returns the known codes in ascending order.
func (d Demographic) Codes() []int {
	codes := make([]int, 0, len(d.Labels))
	for c := range d.Labels {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// Label returns the label for code and whether the code is known.
func (d Demographic) Label(code int) (string, bool) {
	l, ok := d.Labels[code]
	return l, ok
}

// Code returns the code a response carries for this demographic.
func (d Demographic) Code(r Response) int {
	switch d.Column {
	case Gender.Column:
		return r.Gender
	case AgeGroup.Column:
		return r.AgeGroup
	case Proficiency.Column:
		return r.Proficiency
	}
	return 0
}
