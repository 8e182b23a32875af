package hyperparam

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/internal/testkit"
)

// passesWithSafety passes exactly when the safety split has at least min rows
func passesWithSafety(min int) TrialFunc {
	return func(_ context.Context, _ int, _, safe *dataset.Dataset) (bool, error) {
		return safe.Len() >= min, nil
	}
}

func TestBootstrapSizes(t *testing.T) {
	c, s := BootstrapSizes(100, 0.25)
	assert.Equal(t, 75, c)
	assert.Equal(t, 25, s)
}

func TestNewSearchValidates(t *testing.T) {
	_, err := NewSearch(Config{}, passesWithSafety(1), nil)
	assert.Error(t, err)
	_, err = NewSearch(Config{Fracs: []float64{1.2}}, passesWithSafety(1), nil)
	assert.Error(t, err)
	_, err = NewSearch(Config{Fracs: []float64{0.5}, Interval: "wilson"}, passesWithSafety(1), nil)
	assert.Error(t, err)
	_, err = NewSearch(Config{Fracs: []float64{0.5}}, nil, nil)
	assert.Error(t, err)

	s, err := NewSearch(Config{Fracs: []float64{0.2, 0.6, 0.4}}, passesWithSafety(1), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.4, 0.2}, s.cfg.Fracs)
	assert.Equal(t, DefaultTrials, s.cfg.Trials)
}

func TestEstimateProbPass(t *testing.T) {
	data := testkit.NewGenerator(1).Regression(100, 0.1, 0)

	var mu sync.Mutex
	sizes := map[[2]int]int{}
	trial := func(_ context.Context, _ int, cand, safe *dataset.Dataset) (bool, error) {
		mu.Lock()
		sizes[[2]int{cand.Len(), safe.Len()}]++
		mu.Unlock()
		return true, nil
	}
	s, err := NewSearch(Config{Fracs: []float64{0.5}, Trials: 20, Workers: 4, Interval: IntervalClopperPearson}, trial, nil)
	require.NoError(t, err)

	est, err := s.EstimateProbPass(context.Background(), data.Slice(0, 50), 0.5, 0.3, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est.ProbPass)
	assert.Equal(t, 20, est.Passed)
	assert.Equal(t, 1.0, est.Upper)
	assert.Greater(t, est.Lower, 0.8)
	assert.Equal(t, map[[2]int]int{{70, 30}: 20}, sizes)
}

func TestEstimateProbPassTTest(t *testing.T) {
	data := testkit.NewGenerator(1).Regression(100, 0.1, 0)
	alternate := func(_ context.Context, i int, _, _ *dataset.Dataset) (bool, error) {
		return i%2 == 0, nil
	}
	s, err := NewSearch(Config{Fracs: []float64{0.5}, Trials: 10, Interval: IntervalTTest}, alternate, nil)
	require.NoError(t, err)

	est, err := s.EstimateProbPass(context.Background(), data, 0.5, 0.5, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, est.ProbPass, 1e-12)
	assert.Less(t, est.Lower, 0.5)
	assert.Greater(t, est.Upper, 0.5)
	assert.InDelta(t, 0.5-est.Lower, est.Upper-0.5, 1e-12)
	// population spread of ten alternating outcomes is 0.5
	assert.InDelta(t, 0.5+0.5/math.Sqrt(10)*bounds.TInv(0.9, 9), est.Upper, 1e-12)
}

func TestEstimateProbPassPooled(t *testing.T) {
	data := testkit.NewGenerator(2).Regression(60, 0.1, 0)
	s, err := NewSearch(Config{Fracs: []float64{0.5}, Trials: 5, Pooled: true}, passesWithSafety(1), nil)
	require.NoError(t, err)

	est, err := s.EstimateProbPass(context.Background(), data, 0.5, 0.5, 60)
	require.NoError(t, err)
	assert.Equal(t, 1.0, est.ProbPass)
}

func TestEstimateProbPassPropagatesErrors(t *testing.T) {
	data := testkit.NewGenerator(1).Regression(20, 0.1, 0)
	boom := errors.New("boom")
	s, err := NewSearch(Config{Fracs: []float64{0.5}, Trials: 4, Workers: 2}, func(context.Context, int, *dataset.Dataset, *dataset.Dataset) (bool, error) {
		return false, boom
	}, nil)
	require.NoError(t, err)

	_, err = s.EstimateProbPass(context.Background(), data, 0.5, 0.5, 20)
	assert.ErrorIs(t, err, boom)

	_, err = s.EstimateProbPass(context.Background(), data, 0.5, 0.01, 20)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestFindBestFracSafety(t *testing.T) {
	data := testkit.NewGenerator(3).Regression(100, 0.1, 0)

	for _, iv := range []IntervalType{IntervalNone, IntervalTTest, IntervalClopperPearson} {
		t.Run(string(iv)+"_interval", func(t *testing.T) {
			s, err := NewSearch(Config{
				Fracs:    []float64{0.2, 0.4, 0.6},
				Trials:   20,
				Workers:  4,
				Interval: iv,
				Seed:     9,
			}, passesWithSafety(30), nil)
			require.NoError(t, err)

			sel, err := s.FindBestFracSafety(context.Background(), data)
			require.NoError(t, err)
			// 0.4 still leaves 40 safety rows; 0.2 leaves 20 and never passes
			assert.Equal(t, 0.4, sel.Frac)
			assert.Equal(t, 60, sel.Candidate.Len())
			assert.Equal(t, 40, sel.Safety.Len())
			require.Len(t, sel.Estimates, 4)
			last := sel.Estimates[3]
			assert.Equal(t, 0.2, last.EstFrac)
			assert.Equal(t, 0.0, last.ProbPass)
		})
	}
}

func TestFindBestFracSafetySkipsTinyCandidates(t *testing.T) {
	data := testkit.NewGenerator(3).Regression(6, 0.1, 0)
	s, err := NewSearch(Config{Fracs: []float64{0.9}, Trials: 2}, passesWithSafety(1), nil)
	require.NoError(t, err)

	_, err = s.FindBestFracSafety(context.Background(), data)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestFindBestFracSafetyCancelled(t *testing.T) {
	data := testkit.NewGenerator(3).Regression(100, 0.1, 0)
	s, err := NewSearch(Config{Fracs: []float64{0.6, 0.3}, Trials: 4}, func(ctx context.Context, _ int, _, _ *dataset.Dataset) (bool, error) {
		return false, ctx.Err()
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.FindBestFracSafety(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}
