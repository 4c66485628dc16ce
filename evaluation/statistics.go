package evaluation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DescriptiveStats represents descriptive statistics
type DescriptiveStats struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"stdDev"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q1       float64 `json:"q1"`
	Q3       float64 `json:"q3"`
	IQR      float64 `json:"iqr"`
	SEM      float64 `json:"sem"`
}

// ConfidenceInterval is a two-sided interval at Level.
type ConfidenceInterval struct {
	Level      float64 `json:"level"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
}

// Excludes reports whether v lies strictly outside the interval.
func (ci ConfidenceInterval) Excludes(v float64) bool {
	return ci.LowerBound > v || ci.UpperBound < v
}

// Describe computes descriptive statistics of data. SD and variance use n-1
// in the denominator; quantiles interpolate linearly between order statistics.
func Describe(data []float64) DescriptiveStats {
	if len(data) == 0 {
		nan := math.NaN()
		return DescriptiveStats{Mean: nan, Median: nan, StdDev: nan, Variance: nan,
			Min: nan, Max: nan, Q1: nan, Q3: nan, IQR: nan, SEM: nan}
	}

	sorted := sortedCopy(data)
	mean := stat.Mean(data, nil)
	variance := math.NaN()
	if len(data) > 1 {
		variance = stat.Variance(data, nil)
	}
	sd := math.Sqrt(variance)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)

	return DescriptiveStats{
		Count:    len(data),
		Mean:     mean,
		Median:   Quantile(sorted, 0.5),
		StdDev:   sd,
		Variance: variance,
		Min:      sorted[0],
		Max:      sorted[len(sorted)-1],
		Q1:       q1,
		Q3:       q3,
		IQR:      q3 - q1,
		SEM:      sd / math.Sqrt(float64(len(data))),
	}
}

// Quantile returns the p-quantile of sorted data, interpolating linearly
// between the two nearest order statistics.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	if i < 0 {
		return sorted[0]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// TInterval returns the Student-t confidence interval for a mean with the
// given standard error and n observations.
func TInterval(level, mean, se float64, n int) ConfidenceInterval {
	if n < 2 || math.IsNaN(se) {
		return ConfidenceInterval{Level: level, LowerBound: math.NaN(), UpperBound: math.NaN()}
	}
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(1 - (1-level)/2)
	return ConfidenceInterval{
		Level:      level,
		LowerBound: mean - t*se,
		UpperBound: mean + t*se,
	}
}

// MeanCI returns the t-based confidence interval of the mean of data.
func MeanCI(data []float64, level float64) ConfidenceInterval {
	d := Describe(data)
	return TInterval(level, d.Mean, d.SEM, d.Count)
}

func sortedCopy(data []float64) []float64 {
	s := make([]float64, len(data))
	copy(s, data)
	sort.Float64s(s)
	return s
}
