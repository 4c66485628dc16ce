package survey

import "math"

// RealismGroup holds the non-missing realism ratings of one demographic stratum.
type RealismGroup struct {
	Code   int
	Label  string
	Values []float64
}

// RealismValues returns every non-missing realism rating in row order. Rows
// rejected for a malformed choice cell still contribute their rating.
func RealismValues(ds *Dataset) []float64 {
	var out []float64
	for _, r := range ds.Ratings {
		if !math.IsNaN(r.Realism) {
			out = append(out, r.Realism)
		}
	}
	return out
}

// RealismBy splits the realism ratings by demographic code. Groups come back
// in ascending code order; codes without any rating and unknown codes are left out.
func RealismBy(ds *Dataset, d Demographic) []RealismGroup {
	byCode := make(map[int][]float64)
	for _, r := range ds.Ratings {
		code := d.Code(r)
		if _, ok := d.Labels[code]; !ok || math.IsNaN(r.Realism) {
			continue
		}
		byCode[code] = append(byCode[code], r.Realism)
	}
	var groups []RealismGroup
	for _, code := range d.Codes() {
		vals, ok := byCode[code]
		if !ok {
			continue
		}
		groups = append(groups, RealismGroup{Code: code, Label: d.Labels[code], Values: vals})
	}
	return groups
}

// RealismFor returns the ratings of the participants carrying code.
func RealismFor(ds *Dataset, d Demographic, code int) []float64 {
	var out []float64
	for _, r := range ds.Ratings {
		if d.Code(r) == code && !math.IsNaN(r.Realism) {
			out = append(out, r.Realism)
		}
	}
	return out
}
