package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairedMeanDiffDeterministic(t *testing.T) {
	a := []float64{3, 5, 2, 6, 4, 5, 7, 3, 4, 6}
	b := []float64{1, 2, 2, 3, 1, 2, 4, 1, 2, 2}
	ctx := context.Background()

	for _, method := range []BootstrapMethod{BootstrapPercentile, BootstrapBCa} {
		t.Run(string(method), func(t *testing.T) {
			r1, err := PairedMeanDiff(ctx, a, b, 2000, 0.95, method, NewRand(2025))
			require.NoError(t, err)
			r2, err := PairedMeanDiff(ctx, a, b, 2000, 0.95, method, NewRand(2025))
			require.NoError(t, err)

			assert.Equal(t, r1, r2)
			assert.InDelta(t, 2.5, r1.Estimate, 1e-12)
			assert.Equal(t, method, r1.Method)
			assert.LessOrEqual(t, r1.CI.LowerBound, r1.Estimate)
			assert.GreaterOrEqual(t, r1.CI.UpperBound, r1.Estimate)
			assert.True(t, r1.CI.Excludes(0))
		})
	}
}

func TestPairedMeanDiffNoEffect(t *testing.T) {
	a := []float64{1, -1, 2, -2, 0, 1, -1, 0}
	b := make([]float64, len(a))
	r, err := PairedMeanDiff(context.Background(), a, b, 2000, 0.95, BootstrapBCa, NewRand(7))
	require.NoError(t, err)
	assert.False(t, r.CI.Excludes(0))
}

func TestPairedMeanDiffDegenerate(t *testing.T) {
	a := []float64{2, 2, 2}
	b := []float64{1, 1, 1}
	r, err := PairedMeanDiff(context.Background(), a, b, 100, 0.95, BootstrapBCa, NewRand(1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.CI.LowerBound)
	assert.Equal(t, 1.0, r.CI.UpperBound)

	_, err = PairedMeanDiff(context.Background(), []float64{1}, []float64{1}, 100, 0.95, BootstrapBCa, NewRand(1))
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = PairedMeanDiff(context.Background(), a, []float64{1}, 100, 0.95, BootstrapBCa, NewRand(1))
	assert.Error(t, err)
}

func TestParseBootstrapMethod(t *testing.T) {
	m, err := ParseBootstrapMethod("BCa")
	require.NoError(t, err)
	assert.Equal(t, BootstrapBCa, m)
	_, err = ParseBootstrapMethod("studentized")
	assert.Error(t, err)
}
