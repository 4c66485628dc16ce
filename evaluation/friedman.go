package evaluation

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// FriedmanResult holds the Friedman statistic for an n x k block design.
type FriedmanResult struct {
	N    int     `json:"n"`
	K    int     `json:"k"`
	Chi2 float64 `json:"chi2"`
	P    float64 `json:"p"`
	// MonteCarlo is set when P was estimated by within-block permutation.
	MonteCarlo bool `json:"monteCarlo"`
	Perms      int  `json:"perms,omitempty"`
}

// W returns Kendall's coefficient of concordance.
func (r FriedmanResult) W() float64 { return KendallsW(r.Chi2, r.N, r.K) }

// Ties summarises how many blocks contain tied values.
type Ties struct {
	Rows    int     `json:"rows"`
	Tied    int     `json:"tied"`
	Percent float64 `json:"percent"`
}

// TieStats counts the rows of data with at least one tie.
func TieStats(data [][]float64) Ties {
	t := Ties{Rows: len(data)}
	for _, row := range data {
		if len(TieSizes(row)) > 0 {
			t.Tied++
		}
	}
	if t.Rows > 0 {
		t.Percent = 100 * float64(t.Tied) / float64(t.Rows)
	}
	return t
}

func checkBlocks(data [][]float64) (n, k int, err error) {
	n = len(data)
	if n < 2 {
		return 0, 0, fmt.Errorf("friedman needs at least 2 blocks, got %d: %w", n, ErrInsufficientData)
	}
	k = len(data[0])
	if k < 3 {
		return 0, 0, fmt.Errorf("friedman needs at least 3 treatments, got %d: %w", k, ErrInsufficientData)
	}
	for i, row := range data {
		if len(row) != k {
			return 0, 0, fmt.Errorf("friedman: row %d has %d values, want %d", i, len(row), k)
		}
	}
	return n, k, nil
}

// friedmanStat computes the statistic divided by the tie correction, which
// does not change under within-row permutation.
func friedmanStat(data [][]float64, correction float64) float64 {
	n, k := len(data), len(data[0])
	colSums := make([]float64, k)
	for _, row := range data {
		for j, r := range Rank(row) {
			colSums[j] += r
		}
	}
	var ss float64
	for _, s := range colSums {
		ss += s * s
	}
	fn, fk := float64(n), float64(k)
	chi2 := 12/(fn*fk*(fk+1))*ss - 3*fn*(fk+1)
	return chi2 / correction
}

func friedmanCorrection(data [][]float64) float64 {
	n, k := float64(len(data)), float64(len(data[0]))
	var ties float64
	for _, row := range data {
		ties += tieTerm(row)
	}
	return 1 - ties/(n*k*(k*k-1))
}

// Friedman performs the Friedman rank test on data, one row per block.
func Friedman(data [][]float64) (FriedmanResult, error) {
	n, k, err := checkBlocks(data)
	if err != nil {
		return FriedmanResult{}, err
	}
	c := friedmanCorrection(data)
	if c <= 0 {
		return FriedmanResult{N: n, K: k}, fmt.Errorf("friedman: every block fully tied: %w", ErrInsufficientData)
	}
	chi2 := friedmanStat(data, c)
	return FriedmanResult{
		N:    n,
		K:    k,
		Chi2: chi2,
		P:    distuv.ChiSquared{K: float64(k - 1)}.Survival(chi2),
	}, nil
}

// FriedmanMonteCarlo estimates the Friedman p-value by permuting values
// within each block. The estimate is (b+1)/(perms+1) where b counts
// permutations at least as extreme as the observed statistic.
func FriedmanMonteCarlo(ctx context.Context, data [][]float64, perms int, rng *rand.Rand) (FriedmanResult, error) {
	res, err := Friedman(data)
	if err != nil {
		return res, err
	}
	if perms <= 0 {
		return res, fmt.Errorf("friedman monte carlo: perms must be positive, got %d", perms)
	}

	c := friedmanCorrection(data)
	work := make([][]float64, len(data))
	for i, row := range data {
		work[i] = append([]float64(nil), row...)
	}
	tol := 1e-9 * math.Max(1, math.Abs(res.Chi2))
	extreme := 0
	for p := 0; p < perms; p++ {
		if p%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		for _, row := range work {
			rng.Shuffle(len(row), func(a, b int) { row[a], row[b] = row[b], row[a] })
		}
		if friedmanStat(work, c) >= res.Chi2-tol {
			extreme++
		}
	}
	res.P = float64(extreme+1) / float64(perms+1)
	res.MonteCarlo = true
	res.Perms = perms
	return res, nil
}

// PairwiseResult is one cell of a post-hoc comparison matrix.
type PairwiseResult struct {
	A string  `json:"a"`
	B string  `json:"b"`
	Z float64 `json:"z"`
	P float64 `json:"p"`
}

// Dunn performs Dunn's post-hoc test on pooled ranks of the groups, with tie
// correction. Returned p-values are adjusted with method across all
// k(k-1)/2 pairs, in the order (0,1), (0,2), ..., (k-2,k-1).
func Dunn(names []string, groups [][]float64, method string) ([]PairwiseResult, error) {
	if len(names) != len(groups) {
		return nil, fmt.Errorf("dunn: %d names for %d groups", len(names), len(groups))
	}
	n, err := checkGroups("dunn", groups, 1)
	if err != nil {
		return nil, err
	}
	var all []float64
	for _, g := range groups {
		all = append(all, g...)
	}
	ranks := Rank(all)
	meanRanks := make([]float64, len(groups))
	off := 0
	for i, g := range groups {
		meanRanks[i] = floats.Sum(ranks[off:off+len(g)]) / float64(len(g))
		off += len(g)
	}

	fn := float64(n)
	a := fn * (fn + 1) / 12
	ties := tieTerm(all) / (12 * (fn - 1))

	var out []PairwiseResult
	var raw []float64
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			b := 1/float64(len(groups[i])) + 1/float64(len(groups[j]))
			se := math.Sqrt((a - ties) * b)
			z := math.Abs(meanRanks[i]-meanRanks[j]) / se
			p := 2 * distuv.UnitNormal.Survival(z)
			if se == 0 {
				z, p = 0, 1
			}
			out = append(out, PairwiseResult{A: names[i], B: names[j], Z: z, P: p})
			raw = append(raw, p)
		}
	}
	for i, p := range Adjust(method, raw) {
		out[i].P = p
	}
	return out, nil
}
