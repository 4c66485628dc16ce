package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChiSquareYates(t *testing.T) {
	r, err := ChiSquare([][]float64{{10, 20}, {20, 10}})
	require.NoError(t, err)

	// Every expected count is 15; |O-E| = 5 corrected to 4.5.
	assert.Equal(t, TestChiSquare, r.Test)
	assert.InDelta(t, 5.4, r.Stat, 1e-12)
	assert.Equal(t, 1, r.DF)
	assert.InDelta(t, 0.0201368, r.P, 1e-6)
	assert.InDelta(t, 0.3, r.CramersV, 1e-12)
	assert.Equal(t, [][]float64{{15, 15}, {15, 15}}, r.Expected)
}

func TestChiSquareLargerTableUncorrected(t *testing.T) {
	r, err := ChiSquare([][]float64{{10, 10, 10}, {10, 10, 10}})
	require.NoError(t, err)
	assert.Equal(t, 2, r.DF)
	assert.InDelta(t, 0, r.Stat, 1e-12)
	assert.InDelta(t, 1, r.P, 1e-12)
}

func TestChiSquareZeroExpected(t *testing.T) {
	_, err := ChiSquare([][]float64{{0, 5}, {0, 7}})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFisherExact(t *testing.T) {
	tests := []struct {
		name  string
		table [][]float64
		p     float64
	}{
		// Tables with a=3..9 have weights 120,1260,3780,4200,1800,270,10 over 11440.
		{name: "skewed", table: [][]float64{{8, 2}, {1, 5}}, p: 400.0 / 11440},
		{name: "balanced", table: [][]float64{{3, 3}, {3, 3}}, p: 1},
		{name: "empty row", table: [][]float64{{0, 0}, {3, 4}}, p: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FisherExact(tt.table)
			require.NoError(t, err)
			assert.InDelta(t, tt.p, p, 1e-9)
		})
	}

	_, err := FisherExact([][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.Error(t, err)
}

func TestIndependenceTestFallsBackToFisher(t *testing.T) {
	r, err := IndependenceTest([][]float64{{8, 2}, {1, 5}}, 5)
	require.NoError(t, err)
	assert.Equal(t, TestFisher, r.Test)
	assert.InDelta(t, 400.0/11440, r.P, 1e-9)
	assert.True(t, math.IsNaN(r.CramersV))

	r, err = IndependenceTest([][]float64{{10, 20}, {20, 10}}, 5)
	require.NoError(t, err)
	assert.Equal(t, TestChiSquare, r.Test)
	assert.InDelta(t, 0.3, r.CramersV, 1e-12)

	// A zero column would break chi-square; the exact test copes.
	r, err = IndependenceTest([][]float64{{0, 5}, {0, 7}}, 5)
	require.NoError(t, err)
	assert.Equal(t, TestFisher, r.Test)
	assert.Equal(t, 1.0, r.P)
}
