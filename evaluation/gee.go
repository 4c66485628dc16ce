package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GEECoef is one fitted coefficient with robust inference.
type GEECoef struct {
	Name string             `json:"name"`
	Coef float64            `json:"coef"`
	SE   float64            `json:"se"`
	Z    float64            `json:"z"`
	P    float64            `json:"p"`
	CI   ConfidenceInterval `json:"ci"`
}

// GEEResult is a fitted binomial GEE with exchangeable working correlation.
type GEEResult struct {
	Coefs      []GEECoef `json:"coefs"`
	Alpha      float64   `json:"alpha"`
	Scale      float64   `json:"scale"`
	N          int       `json:"n"`
	Clusters   int       `json:"clusters"`
	MaxCluster int       `json:"maxCluster"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
}

// GEEOptions controls the fitting loop.
type GEEOptions struct {
	MaxIter int
	// Tol bounds the norm of the score at convergence.
	Tol   float64
	Level float64
}

func (o GEEOptions) withDefaults() GEEOptions {
	if o.MaxIter <= 0 {
		o.MaxIter = 60
	}
	if o.Tol <= 0 {
		o.Tol = 1e-6
	}
	if o.Level <= 0 {
		o.Level = 0.95
	}
	return o
}

type geeModel struct {
	x        *mat.Dense
	y        []float64
	clusters [][]int
	p        int
}

// GEELogit fits a logistic GEE of y on the columns of x, with observations
// grouped into clusters by groups and an exchangeable working correlation.
// Standard errors come from the robust sandwich covariance.
func GEELogit(y []float64, x *mat.Dense, names []string, groups []int, opts GEEOptions) (GEEResult, error) {
	opts = opts.withDefaults()
	n, p := x.Dims()
	if len(y) != n || len(groups) != n {
		return GEEResult{}, fmt.Errorf("gee: %d rows in design, %d outcomes, %d group labels", n, len(y), len(groups))
	}
	if len(names) != p {
		return GEEResult{}, fmt.Errorf("gee: %d names for %d columns", len(names), p)
	}
	if n <= p {
		return GEEResult{}, fmt.Errorf("gee: %d observations for %d parameters: %w", n, p, ErrInsufficientData)
	}

	m := &geeModel{x: x, y: y, p: p}
	seen := make(map[int]int)
	for i, g := range groups {
		c, ok := seen[g]
		if !ok {
			c = len(m.clusters)
			seen[g] = c
			m.clusters = append(m.clusters, nil)
		}
		m.clusters[c] = append(m.clusters[c], i)
	}
	maxCluster := 0
	for _, c := range m.clusters {
		maxCluster = max(maxCluster, len(c))
	}

	beta := make([]float64, p)
	// Independence start: plain logistic regression by Newton steps.
	for it := 0; it < 100; it++ {
		b, u, _, err := m.score(beta, 0)
		if err != nil {
			return GEEResult{}, err
		}
		step, err := solve(b, u)
		if err != nil {
			return GEEResult{}, err
		}
		for j := range beta {
			beta[j] += step[j]
		}
		if norm(step) < 1e-10 {
			break
		}
	}

	res := GEEResult{N: n, Clusters: len(m.clusters), MaxCluster: maxCluster}
	alpha := 0.0
	updates := 0
	for it := 0; it < opts.MaxIter; it++ {
		b, u, _, err := m.score(beta, alpha)
		if err != nil {
			return GEEResult{}, err
		}
		step, err := solve(b, u)
		if err != nil {
			return GEEResult{}, err
		}
		for j := range beta {
			beta[j] += step[j]
			if math.IsNaN(beta[j]) || math.IsInf(beta[j], 0) {
				return GEEResult{}, fmt.Errorf("gee: coefficient %s diverged: %w", names[j], ErrNotConverged)
			}
		}
		res.Iterations = it + 1
		if norm(u) < opts.Tol && updates > 0 {
			res.Converged = true
			break
		}
		alpha, res.Scale = m.exchangeable(beta, maxCluster)
		updates++
	}
	res.Alpha = alpha

	b, _, meat, err := m.score(beta, alpha)
	if err != nil {
		return GEEResult{}, err
	}
	var binv mat.Dense
	if err := binv.Inverse(b); err != nil {
		return GEEResult{}, fmt.Errorf("gee: bread matrix: %w", ErrSingular)
	}
	var cov mat.Dense
	cov.Product(&binv, meat, &binv)

	crit := distuv.UnitNormal.Quantile(1 - (1-opts.Level)/2)
	for j := 0; j < p; j++ {
		se := math.Sqrt(cov.At(j, j))
		z := beta[j] / se
		res.Coefs = append(res.Coefs, GEECoef{
			Name: names[j],
			Coef: beta[j],
			SE:   se,
			Z:    z,
			P:    2 * distuv.UnitNormal.Survival(math.Abs(z)),
			CI:   ConfidenceInterval{Level: opts.Level, LowerBound: beta[j] - crit*se, UpperBound: beta[j] + crit*se},
		})
	}
	return res, nil
}

func (m *geeModel) mean(beta []float64, i int) float64 {
	var eta float64
	for j := 0; j < m.p; j++ {
		eta += m.x.At(i, j) * beta[j]
	}
	mu := 1 / (1 + math.Exp(-eta))
	return math.Min(math.Max(mu, 1e-10), 1-1e-10)
}

// score accumulates the bread D'V^-1 D, the score D'V^-1 r and the robust
// meat sum of per-cluster score outer products. With an exchangeable
// correlation R^-1 = (I - c J)/(1-alpha), c = alpha/(1+(m-1)alpha), so no
// per-cluster inversion is needed.
func (m *geeModel) score(beta []float64, alpha float64) (*mat.Dense, []float64, *mat.Dense, error) {
	p := m.p
	bread := mat.NewDense(p, p, nil)
	meat := mat.NewDense(p, p, nil)
	u := make([]float64, p)

	dt := make([]float64, p)
	for _, idx := range m.clusters {
		size := float64(len(idx))
		c := alpha / (1 + (size-1)*alpha)
		sumD := make([]float64, p)
		var sumR float64
		ddt := mat.NewDense(p, p, nil)
		dr := make([]float64, p)
		for _, i := range idx {
			mu := m.mean(beta, i)
			v := mu * (1 - mu)
			s := math.Sqrt(v)
			r := (m.y[i] - mu) / s
			for j := 0; j < p; j++ {
				// D = v * x, scaled by 1/sqrt(v).
				dt[j] = m.x.At(i, j) * s
				sumD[j] += dt[j]
				dr[j] += dt[j] * r
			}
			sumR += r
			for a := 0; a < p; a++ {
				for b := 0; b < p; b++ {
					ddt.Set(a, b, ddt.At(a, b)+dt[a]*dt[b])
				}
			}
		}
		g := make([]float64, p)
		for a := 0; a < p; a++ {
			g[a] = (dr[a] - c*sumD[a]*sumR) / (1 - alpha)
			u[a] += g[a]
			for b := 0; b < p; b++ {
				bread.Set(a, b, bread.At(a, b)+(ddt.At(a, b)-c*sumD[a]*sumD[b])/(1-alpha))
			}
		}
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				meat.Set(a, b, meat.At(a, b)+g[a]*g[b])
			}
		}
	}
	for _, v := range u {
		if math.IsNaN(v) {
			return nil, nil, nil, fmt.Errorf("gee: score is not finite: %w", ErrNotConverged)
		}
	}
	return bread, u, meat, nil
}

// exchangeable estimates the common within-cluster correlation and the
// dispersion from Pearson residuals.
func (m *geeModel) exchangeable(beta []float64, maxCluster int) (alpha, scale float64) {
	var pairSum, pairs float64
	n := 0
	for _, idx := range m.clusters {
		r := make([]float64, len(idx))
		for k, i := range idx {
			mu := m.mean(beta, i)
			r[k] = (m.y[i] - mu) / math.Sqrt(mu*(1-mu))
			scale += r[k] * r[k]
		}
		for a := 0; a < len(r); a++ {
			for b := 0; b < a; b++ {
				pairSum += r[a] * r[b]
			}
		}
		pairs += float64(len(r)*(len(r)-1)) / 2
		n += len(idx)
	}
	scale /= float64(n - m.p)
	if pairs-float64(m.p) <= 0 || scale == 0 {
		return 0, scale
	}
	alpha = pairSum / scale / (pairs - float64(m.p))

	// Keep the working correlation positive definite.
	lower := -0.999
	if maxCluster > 1 {
		lower = -1/float64(maxCluster-1) + 1e-6
	}
	return math.Min(math.Max(alpha, lower), 0.999), scale
}

func solve(a *mat.Dense, b []float64) ([]float64, error) {
	var x mat.VecDense
	// gonum reports a condition number above its tolerance as an error too.
	if err := x.SolveVec(a, mat.NewVecDense(len(b), b)); err != nil {
		return nil, fmt.Errorf("gee: %v: %w", err, ErrSingular)
	}
	return x.RawVector().Data, nil
}

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
