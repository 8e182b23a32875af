package safety

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/adapters/models"
	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/internal/parsetree"
)

func TestPasses(t *testing.T) {
	inf := math.Inf(1)
	cases := []struct {
		name string
		cmp  parsetree.Comparison
		iv   bounds.Interval
		want bool
	}{
		{"upper below zero", parsetree.LessEqualZero, bounds.Interval{Lower: -inf, Upper: -0.01}, true},
		{"upper at zero", parsetree.LessEqualZero, bounds.Interval{Lower: -inf, Upper: 0}, true},
		{"upper above zero", parsetree.LessEqualZero, bounds.Interval{Lower: -inf, Upper: 0.01}, false},
		{"unbounded", parsetree.LessEqualZero, bounds.Interval{Lower: -inf, Upper: inf}, false},
		{"equality inside tolerance", parsetree.EqualZero, bounds.Interval{Lower: -1e-10, Upper: 1e-10}, true},
		{"equality too wide", parsetree.EqualZero, bounds.Interval{Lower: -0.1, Upper: 1e-10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Passes(tc.cmp, tc.iv, DefaultTolerance))
		})
	}
}

func regression(t *testing.T) *dataset.Dataset {
	t.Helper()
	n := 100
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		x := float64(i) / float64(n)
		X[i] = []float64{x}
		// deterministic residuals in {-0.1, 0, 0.1}
		y[i] = 1 + 2*x + 0.1*float64(i%3-1)
	}
	d, err := dataset.NewSupervised(dataset.Meta{}, X, y, nil)
	require.NoError(t, err)
	return d
}

func tree(t *testing.T, c string) *parsetree.Tree {
	t.Helper()
	tr, err := parsetree.New(c)
	require.NoError(t, err)
	return tr
}

func TestRun(t *testing.T) {
	data := regression(t)
	theta := []float64{1, 2}
	for _, parallel := range []bool{false, true} {
		tester := NewTester(models.LinearRegression{},
			[]*parsetree.Tree{tree(t, "Mean_Squared_Error <= 0.05"), tree(t, "Mean_Squared_Error <= 0.001")},
			WithParallel(parallel))
		res, err := tester.Run(context.Background(), data, theta)
		require.NoError(t, err)
		assert.False(t, res.Passed)
		require.Len(t, res.Constraints, 2)
		assert.True(t, res.Constraints[0].Passed)
		assert.False(t, res.Constraints[1].Passed)
		assert.Equal(t, "Mean_Squared_Error <= 0.05", res.Constraints[0].Constraint)

		// 67 of 100 residuals are +-0.1, so the mean squared error is 0.0067
		require.True(t, res.Constraints[0].HasValue)
		assert.InDelta(t, 0.0067-0.05, res.Constraints[0].Value, 1e-9)
		assert.InDelta(t, 0.0067-0.001, res.Constraints[1].Value, 1e-9)
		assert.LessOrEqual(t, res.Constraints[1].Value, res.Constraints[1].Bound.Upper)
	}
}

func TestRunLeavesValueUndefinedForManualLeaves(t *testing.T) {
	tr, err := parsetree.New("Mean_Squared_Error <= 0.05",
		parsetree.WithManualBound("Mean_Squared_Error", 0, 0.01))
	require.NoError(t, err)

	res, err := NewTester(models.LinearRegression{}, []*parsetree.Tree{tr}).Run(context.Background(), regression(t), []float64{1, 2})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.False(t, res.Constraints[0].HasValue)
}

func TestRunIsDeterministic(t *testing.T) {
	data := regression(t)
	tester := NewTester(models.LinearRegression{}, []*parsetree.Tree{tree(t, "abs(Mean_Error) <= 0.05")})
	a, err := tester.Run(context.Background(), data, []float64{1, 2})
	require.NoError(t, err)
	b, err := tester.Run(context.Background(), data, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.True(t, a.Passed)
}

func TestRunReportsComputationErrors(t *testing.T) {
	tester := NewTester(models.LinearRegression{}, []*parsetree.Tree{tree(t, "FPR <= 0.1")})
	_, err := tester.Run(context.Background(), regression(t), []float64{1, 2})
	assert.ErrorIs(t, err, core.ErrUnsupportedStatistic)
}
