package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ShapiroResult holds the Shapiro-Wilk statistic and its p-value.
type ShapiroResult struct {
	N int     `json:"n"`
	W float64 `json:"w"`
	P float64 `json:"p"`
}

// Normal reports whether normality is not rejected at alpha.
func (r ShapiroResult) Normal(alpha float64) bool { return r.P > alpha }

// ShapiroWilk tests the null hypothesis that data was drawn from a normal
// distribution, using Royston's approximation of the coefficients and of the
// null distribution of W. Valid for 3 <= n <= 5000.
func ShapiroWilk(data []float64) (ShapiroResult, error) {
	n := len(data)
	if n < 3 {
		return ShapiroResult{N: n}, fmt.Errorf("shapiro-wilk needs at least 3 values, got %d: %w", n, ErrInsufficientData)
	}
	x := sortedCopy(data)
	if x[n-1]-x[0] < 1e-12 {
		return ShapiroResult{N: n}, fmt.Errorf("shapiro-wilk on constant data: %w", ErrInsufficientData)
	}

	a := shapiroCoefficients(n)
	mean := floats.Sum(x) / float64(n)
	var num, ss float64
	for i, v := range x {
		num += a[i] * v
		d := v - mean
		ss += d * d
	}
	w := num * num / ss
	if w > 1 {
		w = 1
	}
	return ShapiroResult{N: n, W: w, P: shapiroP(w, n)}, nil
}

func poly(c []float64, x float64) float64 {
	r := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		r = r*x + c[i]
	}
	return r
}

var (
	swC1 = []float64{0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.5440, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
	swG  = []float64{-2.273, 0.459}
)

// shapiroCoefficients returns the antisymmetric weights a_1..a_n applied to
// the ascending order statistics.
func shapiroCoefficients(n int) []float64 {
	a := make([]float64, n)
	if n == 3 {
		a[0], a[2] = -math.Sqrt(0.5), math.Sqrt(0.5)
		return a
	}

	fn := float64(n)
	m := make([]float64, n)
	var mm float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (fn + 0.25))
		mm += m[i] * m[i]
	}
	u := 1 / math.Sqrt(fn)
	an := m[n-1]/math.Sqrt(mm) + poly(swC1, u)

	if n > 5 {
		an1 := m[n-2]/math.Sqrt(mm) + poly(swC2, u)
		eps := (mm - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
		for i := 2; i < n-2; i++ {
			a[i] = m[i] / math.Sqrt(eps)
		}
		a[1], a[n-2] = -an1, an1
	} else {
		eps := (mm - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
		for i := 1; i < n-1; i++ {
			a[i] = m[i] / math.Sqrt(eps)
		}
	}
	a[0], a[n-1] = -an, an
	return a
}

func shapiroP(w float64, n int) float64 {
	fn := float64(n)
	switch {
	case n == 3:
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return math.Max(0, math.Min(1, p))
	case n <= 11:
		gamma := poly(swG, fn)
		if 1-w <= 0 {
			return 1
		}
		w1 := -math.Log(gamma - math.Log1p(-w))
		mu := poly(swC3, fn)
		sigma := math.Exp(poly(swC4, fn))
		return distuv.UnitNormal.Survival((w1 - mu) / sigma)
	default:
		if 1-w <= 0 {
			return 1
		}
		ln := math.Log(fn)
		mu := poly(swC5, ln)
		sigma := math.Exp(poly(swC6, ln))
		return distuv.UnitNormal.Survival((math.Log1p(-w) - mu) / sigma)
	}
}
