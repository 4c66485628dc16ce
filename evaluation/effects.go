package evaluation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CliffsDelta returns P(X > Y) - P(X < Y) over all pairs.
func CliffsDelta(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 {
		return math.NaN()
	}
	var gt, lt int
	for _, a := range x {
		for _, b := range y {
			switch {
			case a > b:
				gt++
			case a < b:
				lt++
			}
		}
	}
	return float64(gt-lt) / float64(len(x)*len(y))
}

// CliffsMagnitude labels |delta| with the Romano et al. thresholds.
func CliffsMagnitude(d float64) string {
	switch a := math.Abs(d); {
	case a < 0.147:
		return "negligible"
	case a < 0.33:
		return "small"
	case a < 0.474:
		return "medium"
	default:
		return "large"
	}
}

// CohensD returns the standardized mean difference of x and y using the
// pooled standard deviation.
func CohensD(x, y []float64) float64 {
	nx, ny := float64(len(x)), float64(len(y))
	if nx < 2 || ny < 2 {
		return math.NaN()
	}
	mx, vx := stat.MeanVariance(x, nil)
	my, vy := stat.MeanVariance(y, nil)
	pooled := math.Sqrt(((nx-1)*vx + (ny-1)*vy) / (nx + ny - 2))
	return (mx - my) / pooled
}

// KendallsW converts a Friedman chi-square into Kendall's coefficient of
// concordance for n blocks and k treatments.
func KendallsW(chi2 float64, n, k int) float64 {
	return chi2 / float64(n*(k-1))
}
