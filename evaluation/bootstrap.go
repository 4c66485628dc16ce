package evaluation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// BootstrapMethod selects how a bootstrap confidence interval is formed.
type BootstrapMethod string

const (
	BootstrapBCa        BootstrapMethod = "bca"
	BootstrapPercentile BootstrapMethod = "percentile"
)

// ParseBootstrapMethod validates a method name.
func ParseBootstrapMethod(s string) (BootstrapMethod, error) {
	switch m := BootstrapMethod(strings.ToLower(s)); m {
	case BootstrapBCa, BootstrapPercentile:
		return m, nil
	}
	return "", fmt.Errorf("unknown bootstrap method %q (want bca or percentile)", s)
}

// BootstrapResult is a bootstrap confidence interval for a paired mean
// difference.
type BootstrapResult struct {
	Method   BootstrapMethod    `json:"method"`
	Estimate float64            `json:"estimate"`
	CI       ConfidenceInterval `json:"ci"`
	Reps     int                `json:"reps"`
}

// PairedMeanDiff bootstraps mean(a)-mean(b) by resampling pairs (a[i], b[i]).
func PairedMeanDiff(ctx context.Context, a, b []float64, reps int, level float64, method BootstrapMethod, rng *rand.Rand) (BootstrapResult, error) {
	if len(a) != len(b) {
		return BootstrapResult{}, fmt.Errorf("bootstrap: paired samples differ in length (%d vs %d)", len(a), len(b))
	}
	n := len(a)
	if n < 2 {
		return BootstrapResult{}, fmt.Errorf("bootstrap needs at least 2 pairs, got %d: %w", n, ErrInsufficientData)
	}
	if reps <= 0 {
		return BootstrapResult{}, fmt.Errorf("bootstrap: reps must be positive, got %d", reps)
	}
	d := make([]float64, n)
	for i := range a {
		d[i] = a[i] - b[i]
	}
	theta := floats.Sum(d) / float64(n)

	stats := make([]float64, reps)
	for r := range stats {
		if r%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return BootstrapResult{}, err
			}
		}
		var s float64
		for i := 0; i < n; i++ {
			s += d[rng.IntN(n)]
		}
		stats[r] = s / float64(n)
	}
	sorted := sortedCopy(stats)
	res := BootstrapResult{Method: method, Estimate: theta, Reps: reps}

	if sorted[0] == sorted[reps-1] {
		res.CI = ConfidenceInterval{Level: level, LowerBound: theta, UpperBound: theta}
		return res, nil
	}

	alpha := 1 - level
	lo, hi := alpha/2, 1-alpha/2
	if method == BootstrapBCa {
		lo, hi = bcaLevels(d, theta, stats, lo, hi)
	}
	res.CI = ConfidenceInterval{
		Level:      level,
		LowerBound: Quantile(sorted, lo),
		UpperBound: Quantile(sorted, hi),
	}
	return res, nil
}

// bcaLevels shifts the percentile levels by the bias correction z0 and the
// jackknife acceleration.
func bcaLevels(d []float64, theta float64, stats []float64, lo, hi float64) (float64, float64) {
	below := 0
	for _, s := range stats {
		if s < theta {
			below++
		}
	}
	reps := float64(len(stats))
	frac := math.Min(math.Max(float64(below)/reps, 0.5/reps), 1-0.5/reps)
	z0 := distuv.UnitNormal.Quantile(frac)

	n := float64(len(d))
	total := floats.Sum(d)
	jack := make([]float64, len(d))
	var jmean float64
	for i, v := range d {
		jack[i] = (total - v) / (n - 1)
		jmean += jack[i]
	}
	jmean /= n
	var num, den float64
	for _, j := range jack {
		u := jmean - j
		num += u * u * u
		den += u * u
	}
	acc := 0.0
	if den > 0 {
		acc = num / (6 * math.Pow(den, 1.5))
	}

	adjust := func(p float64) float64 {
		z := distuv.UnitNormal.Quantile(p)
		return distuv.UnitNormal.CDF(z0 + (z0+z)/(1-acc*(z0+z)))
	}
	return adjust(lo), adjust(hi)
}
