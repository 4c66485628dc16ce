package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FTestResult is the outcome of an F-distributed omnibus test.
type FTestResult struct {
	F   float64 `json:"f"`
	DF1 float64 `json:"df1"`
	DF2 float64 `json:"df2"`
	P   float64 `json:"p"`
	// EtaSquared is the between-groups share of the total sum of squares.
	EtaSquared float64 `json:"etaSquared"`
}

// HTestResult is the outcome of a chi-square distributed rank test.
type HTestResult struct {
	H  float64 `json:"h"`
	DF int     `json:"df"`
	P  float64 `json:"p"`
}

func checkGroups(name string, groups [][]float64, minPerGroup int) (int, error) {
	if len(groups) < 2 {
		return 0, fmt.Errorf("%s needs at least 2 groups, got %d: %w", name, len(groups), ErrInsufficientData)
	}
	total := 0
	for i, g := range groups {
		if len(g) < minPerGroup {
			return 0, fmt.Errorf("%s: group %d has %d values: %w", name, i, len(g), ErrInsufficientData)
		}
		total += len(g)
	}
	return total, nil
}

func sumsOfSquares(groups [][]float64) (ssb, ssw float64) {
	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	grand := stat.Mean(all, nil)
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssw += (v - m) * (v - m)
		}
	}
	return ssb, ssw
}

// OneWayANOVA performs the classic equal-variance one-way analysis of variance.
func OneWayANOVA(groups ...[]float64) (FTestResult, error) {
	n, err := checkGroups("anova", groups, 1)
	if err != nil {
		return FTestResult{}, err
	}
	k := len(groups)
	if n <= k {
		return FTestResult{}, fmt.Errorf("anova needs more observations than groups: %w", ErrInsufficientData)
	}
	ssb, ssw := sumsOfSquares(groups)
	df1, df2 := float64(k-1), float64(n-k)
	if ssw == 0 {
		return FTestResult{}, fmt.Errorf("anova with zero within-group variance: %w", ErrInsufficientData)
	}
	f := (ssb / df1) / (ssw / df2)
	return FTestResult{
		F:          f,
		DF1:        df1,
		DF2:        df2,
		P:          distuv.F{D1: df1, D2: df2}.Survival(f),
		EtaSquared: ssb / (ssb + ssw),
	}, nil
}

// WelchANOVA performs Welch's heteroscedastic one-way ANOVA.
func WelchANOVA(groups ...[]float64) (FTestResult, error) {
	if _, err := checkGroups("welch anova", groups, 2); err != nil {
		return FTestResult{}, err
	}
	k := float64(len(groups))
	weights := make([]float64, len(groups))
	means := make([]float64, len(groups))
	var wsum float64
	for i, g := range groups {
		m, v := stat.MeanVariance(g, nil)
		if v == 0 {
			return FTestResult{}, fmt.Errorf("welch anova: group %d has zero variance: %w", i, ErrInsufficientData)
		}
		means[i] = m
		weights[i] = float64(len(g)) / v
		wsum += weights[i]
	}
	var adj float64
	for i := range groups {
		adj += weights[i] * means[i]
	}
	adj /= wsum

	var a, lambda float64
	for i, g := range groups {
		a += weights[i] * (means[i] - adj) * (means[i] - adj)
		r := 1 - weights[i]/wsum
		lambda += r * r / float64(len(g)-1)
	}
	a /= k - 1
	b := 2 * (k - 2) / (k*k - 1) * lambda
	f := a / (1 + b)
	df1 := k - 1
	df2 := (k*k - 1) / (3 * lambda)

	ssb, ssw := sumsOfSquares(groups)
	return FTestResult{
		F:          f,
		DF1:        df1,
		DF2:        df2,
		P:          distuv.F{D1: df1, D2: df2}.Survival(f),
		EtaSquared: ssb / (ssb + ssw),
	}, nil
}

// LeveneCenter selects the location each group's deviations are taken from.
type LeveneCenter int

const (
	// CenterMedian gives the Brown-Forsythe variant.
	CenterMedian LeveneCenter = iota
	CenterMean
)

// Levene tests homogeneity of variances on absolute deviations from each
// group's center.
func Levene(center LeveneCenter, groups ...[]float64) (FTestResult, error) {
	if _, err := checkGroups("levene", groups, 1); err != nil {
		return FTestResult{}, err
	}
	dev := make([][]float64, len(groups))
	for i, g := range groups {
		c := Quantile(sortedCopy(g), 0.5)
		if center == CenterMean {
			c = stat.Mean(g, nil)
		}
		dev[i] = make([]float64, len(g))
		for j, v := range g {
			dev[i][j] = math.Abs(v - c)
		}
	}
	return OneWayANOVA(dev...)
}

// KruskalWallis performs the rank-based one-way test with tie correction.
func KruskalWallis(groups ...[]float64) (HTestResult, error) {
	n, err := checkGroups("kruskal-wallis", groups, 1)
	if err != nil {
		return HTestResult{}, err
	}
	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	ranks := Rank(all)
	fn := float64(n)

	var h float64
	off := 0
	for _, g := range groups {
		rs := floats.Sum(ranks[off : off+len(g)])
		h += rs * rs / float64(len(g))
		off += len(g)
	}
	h = 12/(fn*(fn+1))*h - 3*(fn+1)

	c := 1 - tieTerm(all)/(fn*fn*fn-fn)
	if c == 0 {
		return HTestResult{}, fmt.Errorf("kruskal-wallis: all values tied: %w", ErrInsufficientData)
	}
	h /= c
	df := len(groups) - 1
	return HTestResult{H: h, DF: df, P: distuv.ChiSquared{K: float64(df)}.Survival(h)}, nil
}
