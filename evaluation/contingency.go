package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/combin"
	"gonum.org/v1/gonum/stat/distuv"
)

// ContingencyResult is the outcome of an independence test on a count table.
type ContingencyResult struct {
	Test     string      `json:"test"`
	Stat     float64     `json:"stat"`
	DF       int         `json:"df"`
	P        float64     `json:"p"`
	Expected [][]float64 `json:"expected"`
	// CramersV is NaN when the exact test was used.
	CramersV float64 `json:"cramersV"`
}

const (
	TestChiSquare = "chi-square"
	TestFisher    = "fisher-exact"
)

// ExpectedCounts returns row*col/N for every cell of table.
func ExpectedCounts(table [][]float64) ([][]float64, float64) {
	rows := make([]float64, len(table))
	cols := make([]float64, len(table[0]))
	var n float64
	for i, row := range table {
		for j, v := range row {
			rows[i] += v
			cols[j] += v
			n += v
		}
	}
	exp := make([][]float64, len(table))
	for i := range table {
		exp[i] = make([]float64, len(cols))
		for j := range cols {
			exp[i][j] = rows[i] * cols[j] / n
		}
	}
	return exp, n
}

// ChiSquare performs Pearson's chi-square test of independence. Yates'
// continuity correction is applied when the table has one degree of freedom.
func ChiSquare(table [][]float64) (ContingencyResult, error) {
	if len(table) < 2 || len(table[0]) < 2 {
		return ContingencyResult{}, fmt.Errorf("chi-square needs at least a 2x2 table: %w", ErrInsufficientData)
	}
	exp, n := ExpectedCounts(table)
	for _, row := range exp {
		for _, e := range row {
			if e == 0 {
				return ContingencyResult{}, fmt.Errorf("chi-square: expected frequency of zero: %w", ErrInsufficientData)
			}
		}
	}
	df := (len(table) - 1) * (len(table[0]) - 1)

	var chi2 float64
	for i, row := range table {
		for j, obs := range row {
			diff := obs - exp[i][j]
			if df == 1 {
				diff = math.Copysign(math.Max(0, math.Abs(diff)-0.5), diff)
			}
			chi2 += diff * diff / exp[i][j]
		}
	}
	minDim := math.Min(float64(len(table)), float64(len(table[0]))) - 1
	return ContingencyResult{
		Test:     TestChiSquare,
		Stat:     chi2,
		DF:       df,
		P:        distuv.ChiSquared{K: float64(df)}.Survival(chi2),
		Expected: exp,
		CramersV: math.Sqrt(chi2 / (n * minDim)),
	}, nil
}

// FisherExact performs the two-sided Fisher exact test on a 2x2 table,
// summing the probabilities of all tables no more likely than the observed one.
func FisherExact(table [][]float64) (float64, error) {
	if len(table) != 2 || len(table[0]) != 2 || len(table[1]) != 2 {
		return math.NaN(), fmt.Errorf("fisher exact test needs a 2x2 table")
	}
	a, b := table[0][0], table[0][1]
	c, d := table[1][0], table[1][1]
	row1, row2 := a+b, c+d
	col1 := a + c
	if row1 == 0 || row2 == 0 || col1 == 0 || b+d == 0 {
		return 1, nil
	}

	logDenom := combin.LogGeneralizedBinomial(row1+row2, col1)
	pmf := func(x float64) float64 {
		return math.Exp(combin.LogGeneralizedBinomial(row1, x) +
			combin.LogGeneralizedBinomial(row2, col1-x) - logDenom)
	}
	observed := pmf(a)
	lo := math.Max(0, col1-row2)
	hi := math.Min(col1, row1)
	var p float64
	for x := lo; x <= hi; x++ {
		if px := pmf(x); px <= observed*(1+1e-7) {
			p += px
		}
	}
	return math.Min(1, p), nil
}

// IndependenceTest runs the chi-square test, falling back to Fisher's exact
// test on 2x2 tables whenever an expected count is below minExpected.
func IndependenceTest(table [][]float64, minExpected float64) (ContingencyResult, error) {
	if len(table) < 2 || len(table[0]) < 2 {
		return ContingencyResult{}, fmt.Errorf("independence test needs at least a 2x2 table: %w", ErrInsufficientData)
	}
	exp, _ := ExpectedCounts(table)
	small := false
	for _, row := range exp {
		for _, e := range row {
			if e < minExpected || math.IsNaN(e) {
				small = true
			}
		}
	}
	if small && len(table) == 2 && len(table[0]) == 2 {
		p, err := FisherExact(table)
		if err != nil {
			return ContingencyResult{}, err
		}
		return ContingencyResult{
			Test:     TestFisher,
			Stat:     math.NaN(),
			DF:       1,
			P:        p,
			Expected: exp,
			CramersV: math.NaN(),
		}, nil
	}
	return ChiSquare(table)
}
