package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// clusteredDesign builds 8 clusters of 6 binary outcomes with a
// cluster-level covariate. ones gives the number of successes per cluster.
func clusteredDesign(ones []int, covariate []float64) ([]float64, *mat.Dense, []int) {
	var y []float64
	var x []float64
	var groups []int
	for c, k := range ones {
		for j := 0; j < 6; j++ {
			v := 0.0
			if j < k {
				v = 1
			}
			y = append(y, v)
			x = append(x, 1, covariate[c])
			groups = append(groups, 100+c)
		}
	}
	return y, mat.NewDense(len(y), 2, x), groups
}

func TestGEELogitSaturated(t *testing.T) {
	// Control clusters: 6 of 24 successes; treated clusters: 12 of 24.
	y, x, groups := clusteredDesign(
		[]int{1, 2, 1, 2, 3, 4, 2, 3},
		[]float64{0, 0, 0, 0, 1, 1, 1, 1},
	)
	res, err := GEELogit(y, x, []string{"Intercept", "treated"}, groups, GEEOptions{})
	require.NoError(t, err)

	require.Len(t, res.Coefs, 2)
	// With a cluster-level covariate and equal cluster sizes the fit
	// reproduces the group log-odds whatever the working correlation.
	assert.InDelta(t, math.Log(0.25/0.75), res.Coefs[0].Coef, 1e-5)
	assert.InDelta(t, math.Log(3), res.Coefs[1].Coef, 1e-5)
	assert.True(t, res.Converged)
	assert.Equal(t, 8, res.Clusters)
	assert.Equal(t, 6, res.MaxCluster)
	assert.Equal(t, 48, res.N)

	for _, c := range res.Coefs {
		assert.Greater(t, c.SE, 0.0)
		assert.InDelta(t, 2*(1-normalCDF(math.Abs(c.Z))), c.P, 1e-9)
		assert.Less(t, c.CI.LowerBound, c.Coef)
		assert.Greater(t, c.CI.UpperBound, c.Coef)
	}
	assert.Less(t, res.Alpha, 1.0)
}

func TestGEELogitSingular(t *testing.T) {
	y, _, groups := clusteredDesign([]int{1, 2, 3, 4}, []float64{0, 0, 1, 1})
	n := len(y)
	// Duplicated column makes the normal equations singular.
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, 1)
	}
	_, err := GEELogit(y, x, []string{"a", "b"}, groups, GEEOptions{})
	assert.ErrorIs(t, err, ErrSingular)
}

func TestGEELogitShapeErrors(t *testing.T) {
	y, x, groups := clusteredDesign([]int{1, 2}, []float64{0, 1})
	_, err := GEELogit(y[:3], x, []string{"a", "b"}, groups, GEEOptions{})
	assert.Error(t, err)
	_, err = GEELogit(y, x, []string{"a"}, groups, GEEOptions{})
	assert.Error(t, err)
}

func normalCDF(z float64) float64 { return 0.5 * math.Erfc(-z/math.Sqrt2) }
