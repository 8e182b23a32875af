package optimize

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/ports"
)

func quadratic() ports.Problem {
	return ports.Problem{
		Func: func(x []float64) float64 {
			return (x[0]-3)*(x[0]-3) + 2*(x[1]+1)*(x[1]+1)
		},
		Grad: func(grad, x []float64) {
			grad[0] = 2 * (x[0] - 3)
			grad[1] = 4 * (x[1] + 1)
		},
	}
}

func TestMinimizeQuadratic(t *testing.T) {
	for _, m := range []string{MethodGradientDescent, MethodBFGS, MethodLBFGS, MethodCG, MethodNelderMead} {
		t.Run(m, func(t *testing.T) {
			res, err := NewGonum(nil).Minimize(context.Background(), quadratic(), []float64{0, 0},
				ports.Hyperparameters{Method: m, LearningRate: 0.1, MaxIterations: 2000})
			require.NoError(t, err)
			assert.InDelta(t, 3, res.Theta[0], 1e-2)
			assert.InDelta(t, -1, res.Theta[1], 1e-2)
			assert.NotEmpty(t, res.Status)
		})
	}
}

func TestMinimizeRejectsUnknownMethod(t *testing.T) {
	_, err := NewGonum(nil).Minimize(context.Background(), quadratic(), []float64{0, 0},
		ports.Hyperparameters{Method: "newton_raphson"})
	assert.Error(t, err)
}

func TestMinimizeNeedsGradient(t *testing.T) {
	p := quadratic()
	p.Grad = nil
	_, err := NewGonum(nil).Minimize(context.Background(), p, []float64{0, 0}, ports.Hyperparameters{Method: MethodBFGS})
	assert.Error(t, err)
}

func TestMinimizeStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGonum(nil).Minimize(ctx, quadratic(), []float64{0, 0}, ports.Hyperparameters{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinimizeReportsDivergence(t *testing.T) {
	p := ports.Problem{
		Func: func(x []float64) float64 { return math.NaN() },
		Grad: func(grad, x []float64) {
			for i := range grad {
				grad[i] = math.NaN()
			}
		},
	}
	_, err := NewGonum(nil).Minimize(context.Background(), p, []float64{1}, ports.Hyperparameters{Method: MethodBFGS})
	require.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	h := WithDefaults(ports.Hyperparameters{})
	assert.Equal(t, DefaultMethod, h.Method)
	assert.Equal(t, DefaultLearningRate, h.LearningRate)
	assert.Equal(t, DefaultMaxIterations, h.MaxIterations)
	assert.Equal(t, DefaultTolerance, h.Tolerance)
}
