package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var blocks = [][]float64{
	{1, 2, 3},
	{1, 2, 3},
	{1, 3, 2},
	{1, 2, 3},
}

func TestFriedman(t *testing.T) {
	r, err := Friedman(blocks)
	require.NoError(t, err)

	// Column rank sums 4, 9, 11: 12/(4*3*4)*218 - 48
	assert.InDelta(t, 6.5, r.Chi2, 1e-12)
	assert.InDelta(t, 0.0387742, r.P, 1e-6)
	assert.InDelta(t, 0.8125, r.W(), 1e-12)
	assert.False(t, r.MonteCarlo)
}

func TestFriedmanTieCorrection(t *testing.T) {
	tied := [][]float64{
		{1, 1, 3},
		{1, 2, 3},
		{2, 2, 3},
	}
	r, err := Friedman(tied)
	require.NoError(t, err)

	// Rank sums 4, 5, 9 -> 12/36*122 - 36 = 4.6667; correction 1 - 12/72
	assert.InDelta(t, (122.0/3-36)/(1-12.0/72), r.Chi2, 1e-9)

	ties := TieStats(tied)
	assert.Equal(t, 3, ties.Rows)
	assert.Equal(t, 2, ties.Tied)
	assert.InDelta(t, 200.0/3, ties.Percent, 1e-9)
}

func TestFriedmanDegenerate(t *testing.T) {
	_, err := Friedman([][]float64{{1, 1, 1}, {2, 2, 2}})
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = Friedman([][]float64{{1, 2}, {2, 1}})
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = Friedman([][]float64{{1, 2, 3}, {2, 1}})
	assert.Error(t, err)
}

func TestFriedmanMonteCarlo(t *testing.T) {
	ctx := context.Background()
	a, err := FriedmanMonteCarlo(ctx, blocks, 2000, NewRand(2025))
	require.NoError(t, err)
	b, err := FriedmanMonteCarlo(ctx, blocks, 2000, NewRand(2025))
	require.NoError(t, err)

	assert.True(t, a.MonteCarlo)
	assert.Equal(t, 2000, a.Perms)
	assert.Equal(t, a.P, b.P, "same seed must give the same estimate")
	assert.Equal(t, 6.5, a.Chi2)
	// Exact permutation p-value is 54/1296.
	assert.InDelta(t, 54.0/1296, a.P, 0.015)
	assert.Greater(t, a.P, 0.0)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = FriedmanMonteCarlo(cancelled, blocks, 10, NewRand(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDunn(t *testing.T) {
	res, err := Dunn([]string{"a", "b", "c"}, threeGroups, "bonferroni")
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.Equal(t, "a", res[0].A)
	assert.Equal(t, "b", res[0].B)
	assert.InDelta(t, 1.3416408, res[0].Z, 1e-6)
	assert.InDelta(t, 0.5391375, res[0].P, 1e-6)
	assert.Equal(t, "c", res[1].B)
	assert.InDelta(t, 0.0218711, res[1].P, 1e-6)
	assert.InDelta(t, res[0].P, res[2].P, 1e-12)

	_, err = Dunn([]string{"a"}, threeGroups, "bonferroni")
	assert.Error(t, err)
}
