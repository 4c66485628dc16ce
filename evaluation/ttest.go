package evaluation

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTestResult holds a two-sample Welch t-test.
type TTestResult struct {
	T    float64            `json:"t"`
	DF   float64            `json:"df"`
	P    float64            `json:"p"`
	Diff float64            `json:"diff"`
	CI   ConfidenceInterval `json:"ci"`
}

// welchSE returns the unpooled standard error and Welch-Satterthwaite
// degrees of freedom of the difference of means.
func welchSE(x, y []float64) (se, df float64) {
	nx, ny := float64(len(x)), float64(len(y))
	vx := stat.Variance(x, nil) / nx
	vy := stat.Variance(y, nil) / ny
	se = math.Sqrt(vx + vy)
	df = (vx + vy) * (vx + vy) / (vx*vx/(nx-1) + vy*vy/(ny-1))
	return se, df
}

// WelchTTest compares the means of x and y without assuming equal variances.
func WelchTTest(x, y []float64, level float64) (TTestResult, error) {
	if len(x) < 2 || len(y) < 2 {
		return TTestResult{}, fmt.Errorf("welch t-test needs 2 values per group: %w", ErrInsufficientData)
	}
	res, err := stats.TwoSampleWelchTTest(stats.Sample{Xs: x}, stats.Sample{Xs: y}, stats.LocationDiffers)
	if err != nil {
		return TTestResult{}, fmt.Errorf("welch t-test: %w", err)
	}
	se, df := welchSE(x, y)
	diff := stat.Mean(x, nil) - stat.Mean(y, nil)
	crit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(1 - (1-level)/2)
	return TTestResult{
		T:    res.T,
		DF:   res.DoF,
		P:    res.P,
		Diff: diff,
		CI:   ConfidenceInterval{Level: level, LowerBound: diff - crit*se, UpperBound: diff + crit*se},
	}, nil
}

// MannWhitneyResult holds a two-sided Mann-Whitney U test.
type MannWhitneyResult struct {
	U float64 `json:"u"`
	P float64 `json:"p"`
}

// MannWhitney performs the two-sided Mann-Whitney U test.
func MannWhitney(x, y []float64) (MannWhitneyResult, error) {
	res, err := stats.MannWhitneyUTest(x, y, stats.LocationDiffers)
	if err != nil {
		return MannWhitneyResult{}, fmt.Errorf("mann-whitney: %w", err)
	}
	return MannWhitneyResult{U: res.U, P: res.P}, nil
}

// TOSTResult holds a two one-sided tests equivalence test on the raw mean
// difference.
type TOSTResult struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	TLow  float64 `json:"tLow"`
	THigh float64 `json:"tHigh"`
	PLow  float64 `json:"pLow"`
	PHigh float64 `json:"pHigh"`
	DF    float64 `json:"df"`
	// P is the larger of the two one-sided p-values.
	P float64 `json:"p"`
}

// Equivalent reports whether both one-sided nulls are rejected at alpha.
func (r TOSTResult) Equivalent(alpha float64) bool { return r.P < alpha }

// TOST tests whether mean(x)-mean(y) lies within (low, high), using Welch
// standard errors.
func TOST(x, y []float64, low, high float64) (TOSTResult, error) {
	if len(x) < 2 || len(y) < 2 {
		return TOSTResult{}, fmt.Errorf("tost needs 2 values per group: %w", ErrInsufficientData)
	}
	se, df := welchSE(x, y)
	if se == 0 {
		return TOSTResult{}, fmt.Errorf("tost with zero variance: %w", ErrInsufficientData)
	}
	diff := stat.Mean(x, nil) - stat.Mean(y, nil)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	r := TOSTResult{
		Low:   low,
		High:  high,
		TLow:  (diff - low) / se,
		THigh: (diff - high) / se,
		DF:    df,
	}
	r.PLow = t.Survival(r.TLow)
	r.PHigh = t.CDF(r.THigh)
	r.P = math.Max(r.PLow, r.PHigh)
	return r, nil
}

// BayesFactorT returns the JZS Bayes factor BF10 for an independent-samples
// t statistic with group sizes nx, ny and Cauchy prior scale r.
func BayesFactorT(t float64, nx, ny int, r float64) float64 {
	n := float64(nx) * float64(ny) / float64(nx+ny)
	df := float64(nx + ny - 2)
	r2 := r * r

	integrand := func(g float64) float64 {
		if g <= 0 {
			return 0
		}
		return math.Pow(1+n*g*r2, -0.5) *
			math.Pow(1+t*t/((1+n*g*r2)*df), -(df+1)/2) *
			math.Pow(2*math.Pi, -0.5) * math.Pow(g, -1.5) * math.Exp(-1/(2*g))
	}
	// Map g in (0, inf) onto x in (0, 1).
	mapped := func(x float64) float64 {
		if x >= 1 {
			return 0
		}
		g := x / (1 - x)
		return integrand(g) / ((1 - x) * (1 - x))
	}
	integral := quad.Fixed(mapped, 0, 1, 2000, quad.Legendre{}, 0)
	h0 := math.Pow(1+t*t/df, -(df+1)/2)
	return integral / h0
}
