package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeGroups = [][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}

func TestOneWayANOVA(t *testing.T) {
	r, err := OneWayANOVA(threeGroups...)
	require.NoError(t, err)

	// SSb = 3*(9+0+9) = 54, SSw = 6, F = 27 / 1
	assert.InDelta(t, 27.0, r.F, 1e-12)
	assert.Equal(t, 2.0, r.DF1)
	assert.Equal(t, 6.0, r.DF2)
	assert.InDelta(t, 0.001, r.P, 1e-9) // (1 + 2F/6)^-3
	assert.InDelta(t, 0.9, r.EtaSquared, 1e-12)
}

func TestWelchANOVA(t *testing.T) {
	r, err := WelchANOVA(threeGroups...)
	require.NoError(t, err)

	// Equal variances and sizes: A = 27, B = 1/6, df2 = 8 / (3 * 2/3)
	assert.InDelta(t, 27/(7.0/6), r.F, 1e-9)
	assert.InDelta(t, 2.0, r.DF1, 1e-12)
	assert.InDelta(t, 4.0, r.DF2, 1e-12)
	assert.InDelta(t, 0.0063275, r.P, 1e-6)
	assert.InDelta(t, 0.9, r.EtaSquared, 1e-12)

	_, err = WelchANOVA([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestLevene(t *testing.T) {
	groups := [][]float64{{1, 2, 3}, {2, 4, 6}}

	// Deviations from medians: {1,0,1} and {2,0,2}.
	r, err := Levene(CenterMedian, groups...)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, r.F, 1e-12)
	assert.Equal(t, 1.0, r.DF1)
	assert.Equal(t, 4.0, r.DF2)

	// Means equal medians here.
	m, err := Levene(CenterMean, groups...)
	require.NoError(t, err)
	assert.InDelta(t, r.F, m.F, 1e-12)
}

func TestKruskalWallis(t *testing.T) {
	r, err := KruskalWallis([]float64{1, 3, 5, 7, 9}, []float64{2, 4, 6, 8, 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.2727273, r.H, 1e-6)
	assert.Equal(t, 1, r.DF)
	assert.InDelta(t, 0.6015081, r.P, 1e-6)

	_, err = KruskalWallis([]float64{2, 2}, []float64{2, 2})
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = KruskalWallis([]float64{2, 2})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEffectSizes(t *testing.T) {
	assert.InDelta(t, 2.0/3, CliffsDelta([]float64{1, 2, 3}, []float64{1, 1, 1}), 1e-12)
	assert.InDelta(t, -2.0/3, CliffsDelta([]float64{1, 1, 1}, []float64{1, 2, 3}), 1e-12)
	assert.Equal(t, "large", CliffsMagnitude(2.0/3))
	assert.Equal(t, "negligible", CliffsMagnitude(-0.1))
	assert.Equal(t, "small", CliffsMagnitude(0.2))
	assert.Equal(t, "medium", CliffsMagnitude(-0.4))

	assert.InDelta(t, -1.0, CohensD([]float64{1, 2, 3}, []float64{2, 3, 4}), 1e-12)
	assert.InDelta(t, 0.8125, KendallsW(6.5, 4, 3), 1e-12)
}
