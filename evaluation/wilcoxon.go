package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// WilcoxonResult holds a two-sided one-sample Wilcoxon signed-rank test.
type WilcoxonResult struct {
	// N counts the non-zero differences that entered the test.
	N int `json:"n"`
	// W is the smaller of the positive and negative rank sums.
	W     float64 `json:"w"`
	P     float64 `json:"p"`
	Exact bool    `json:"exact"`
	// Z is the normal quantile matching P; R = Z / sqrt(N).
	Z float64 `json:"z"`
	R float64 `json:"r"`
}

const wilcoxonExactMaxN = 50

// Wilcoxon tests whether the distribution of x is symmetric about mu.
// Zero differences are discarded. The exact null distribution is used for
// small samples without ties or zeros; otherwise the normal approximation with
// tie and continuity correction.
func Wilcoxon(x []float64, mu float64) (WilcoxonResult, error) {
	var d []float64
	zeros := 0
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if diff := v - mu; diff != 0 {
			d = append(d, diff)
		} else {
			zeros++
		}
	}
	n := len(d)
	if n == 0 {
		return WilcoxonResult{}, fmt.Errorf("wilcoxon: all differences are zero: %w", ErrInsufficientData)
	}

	abs := make([]float64, n)
	for i, v := range d {
		abs[i] = math.Abs(v)
	}
	ranks := Rank(abs)
	var rPlus, rMinus float64
	for i, v := range d {
		if v > 0 {
			rPlus += ranks[i]
		} else {
			rMinus += ranks[i]
		}
	}
	w := math.Min(rPlus, rMinus)
	ties := TieSizes(abs)

	res := WilcoxonResult{N: n, W: w}
	if n <= wilcoxonExactMaxN && len(ties) == 0 && zeros == 0 {
		res.Exact = true
		res.P = math.Min(1, 2*signedRankCDF(n, int(w)))
	} else {
		fn := float64(n)
		mean := fn * (fn + 1) / 4
		v := fn * (fn + 1) * (2*fn + 1)
		for _, t := range ties {
			ft := float64(t)
			v -= 0.5 * ft * (ft*ft - 1)
		}
		se := math.Sqrt(v / 24)
		if se == 0 {
			return res, fmt.Errorf("wilcoxon: zero variance: %w", ErrInsufficientData)
		}
		corr := 0.5 * sign(w-mean)
		z := (w - mean - corr) / se
		res.P = math.Min(1, 2*distuv.UnitNormal.Survival(math.Abs(z)))
	}
	res.Z = ZFromP(res.P)
	res.R = res.Z / math.Sqrt(float64(n))
	return res, nil
}

// ZFromP converts a two-sided p-value into the matching standard normal quantile.
func ZFromP(p float64) float64 {
	return -distuv.UnitNormal.Quantile(p / 2)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// signedRankCDF returns P(W+ <= w) under the null for n untied ranks.
func signedRankCDF(n, w int) float64 {
	max := n * (n + 1) / 2
	if w >= max {
		return 1
	}
	counts := make([]float64, max+1)
	counts[0] = 1
	for k := 1; k <= n; k++ {
		for s := max; s >= k; s-- {
			counts[s] += counts[s-k]
		}
	}
	var c float64
	for s := 0; s <= w; s++ {
		c += counts[s]
	}
	return c / math.Pow(2, float64(n))
}
