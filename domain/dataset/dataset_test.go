package dataset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/domain/core"
)

func groups() *Dataset {
	meta := Meta{SubRegime: SubRegimeClassification, SensitiveNames: []string{"M", "F"}}
	d, err := NewSupervised(meta,
		[][]float64{{0}, {1}, {2}, {3}},
		[]float64{0, 1, 0, 1},
		[][]float64{{1, 0}, {0, 1}, {1, 0}, {0, 1}})
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewSupervisedValidation(t *testing.T) {
	_, err := NewSupervised(Meta{}, [][]float64{{1}}, []float64{1, 2}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	_, err = NewSupervised(Meta{}, [][]float64{{1}, {1, 2}}, []float64{1, 2}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	_, err = NewSupervised(Meta{SensitiveNames: []string{"M"}}, [][]float64{{1}}, []float64{1}, [][]float64{{1, 0}})
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	_, err = NewSupervised(Meta{Regime: RegimeRL}, nil, nil, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	d, err := NewSupervised(Meta{}, [][]float64{{1, 2}}, []float64{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, RegimeSupervised, d.Meta.Regime)
	assert.Equal(t, 2, d.NumFeatures())
}

func TestNewEpisodic(t *testing.T) {
	ep := Episode{Observations: []int{0, 1}, Actions: []int{1, 0}, Rewards: []float64{1, 1}, ActionProbs: []float64{0.5, 0.5}}
	d, err := NewEpisodic(Meta{}, []Episode{ep, ep}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 1.0, d.Meta.Gamma)

	bad := ep
	bad.ActionProbs = []float64{0.5, 0}
	_, err = NewEpisodic(Meta{}, []Episode{bad}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDataset)
}

func TestDiscountedReturn(t *testing.T) {
	assert.InDelta(t, 1+0.5+0.25, DiscountedReturn([]float64{1, 1, 1}, 0.5), 1e-12)
}

func TestMask(t *testing.T) {
	d := groups()

	m, err := d.Mask([]Condition{{Column: "M", Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, m.Labels)
	assert.Equal(t, [][]float64{{0}, {2}}, m.Features)

	same, err := d.Mask(nil)
	require.NoError(t, err)
	assert.Same(t, d, same)

	none, err := d.Mask([]Condition{{Column: "M", Value: 1}, {Column: "F", Value: 1}})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())

	_, err = d.Mask([]Condition{{Column: "X", Value: 1}})
	assert.ErrorIs(t, err, core.ErrInvalidDataset)
}

func TestConditionsKey(t *testing.T) {
	key := ConditionsKey([]Condition{{Column: "M", Value: 1}, {Column: "age", Value: 2}})
	assert.Equal(t, "M,age=2", key)

	conds := []Condition{{Column: "age", Value: 2}, {Column: "M", Value: 1}}
	assert.Equal(t, key, ConditionsKey(conds))
	assert.Equal(t, "age", conds[0].Column, "input order is left alone")
}

func TestSubsetResampleAndBounds(t *testing.T) {
	d := groups()

	s := d.Slice(1, 3)
	assert.Equal(t, []float64{1, 0}, s.Labels)
	assert.Equal(t, [][]float64{{0, 1}, {1, 0}}, s.Sensitive)

	r := d.Resample(rand.New(rand.NewSource(1)), 10)
	assert.Equal(t, 10, r.Len())

	lo, hi := d.LabelBounds()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	d.Meta.LabelRange = []float64{-1, 2}
	lo, hi = d.LabelBounds()
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 2.0, hi)
}
