package experiment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/adapters/models"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/internal/candidate"
	"goseldon/internal/errors"
	"goseldon/internal/hyperparam"
)

const fairLoans = `
name: fair_loans
dataset:
  path: loans.csv
  meta:
    regime: supervised_learning
    sub_regime: classification
    label_name: default
    sensitive_names: [M, F]
model:
  kind: logistic_regression
constraints:
  - "abs((PR | [M]) - (PR | [F])) <= 0.15"
  - "FPR <= 0.2"
deltas: [0.05, 0.1]
primary: logistic_loss
frac_safety: 0.5
shuffle: true
seed: 3
bound_method: hoeffding
barrier: hinge2
optimizer:
  method: bfgs
  max_iterations: 100
search:
  fracs: [0.3, 0.5, 0.7]
  trials: 20
  workers: 4
  interval: clopper-pearson
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fairLoans), 0o600))

	exp, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fair_loans", exp.Name)
	assert.Equal(t, filepath.Join(dir, "loans.csv"), exp.Dataset.Path)
	assert.Equal(t, dataset.SubRegimeClassification, exp.Dataset.Meta.SubRegime)
	assert.Equal(t, []string{"M", "F"}, exp.Dataset.Meta.SensitiveNames)

	spec, err := exp.Spec()
	require.NoError(t, err)
	assert.Equal(t, bounds.Hoeffding, spec.BoundMethod)
	assert.Equal(t, candidate.HingeSquare, spec.Barrier)
	assert.Equal(t, []float64{0.05, 0.1}, spec.Deltas)
	assert.Equal(t, "bfgs", spec.Hyper.Method)
	assert.Equal(t, 100, spec.Hyper.MaxIterations)
	assert.Equal(t, int64(3), spec.Seed)

	provider, err := exp.Provider()
	require.NoError(t, err)
	assert.Equal(t, models.LogisticRegression{}.Name(), provider.Name())

	search, err := exp.SearchConfig()
	require.NoError(t, err)
	assert.Equal(t, hyperparam.IntervalClopperPearson, search.Interval)
	assert.Equal(t, 20, search.Trials)
	assert.Equal(t, int64(3), search.Seed)
}

func TestParseRejectsInvalidExperiments(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing constraints", "name: x\ndataset: {path: d.csv}\nmodel: {kind: linear_regression}\nprimary: Mean_Squared_Error\n"},
		{"unknown model", "name: x\ndataset: {path: d.csv}\nmodel: {kind: forest}\nconstraints: [\"Mean_Error <= 1\"]\nprimary: Mean_Squared_Error\n"},
		{"unknown key", "name: x\ndataset: {path: d.csv}\nmodel: {kind: linear_regression}\nconstraints: [\"Mean_Error <= 1\"]\nprimary: Mean_Squared_Error\nsafety: 0.4\n"},
		{"bad delta", "name: x\ndataset: {path: d.csv}\nmodel: {kind: linear_regression}\nconstraints: [\"Mean_Error <= 1\"]\nprimary: Mean_Squared_Error\ndelta: 2\n"},
		{"bad search frac", "name: x\ndataset: {path: d.csv}\nmodel: {kind: linear_regression}\nconstraints: [\"Mean_Error <= 1\"]\nprimary: Mean_Squared_Error\nsearch: {fracs: [1.5]}\n"},
		{"not yaml", "{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, errors.CodeValidationError, errors.CodeFor(err))
		})
	}
}

func TestLoadErrorsAreCoded(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeFor(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationError, errors.CodeFor(err))
	assert.Contains(t, err.Error(), path)
}

func TestSearchConfigRequiresSection(t *testing.T) {
	exp, err := Parse([]byte("name: x\ndataset: {path: d.csv}\nmodel: {kind: linear_regression}\nconstraints: [\"Mean_Error <= 1\"]\nprimary: Mean_Squared_Error\n"))
	require.NoError(t, err)
	_, err = exp.SearchConfig()
	assert.Error(t, err)
}
