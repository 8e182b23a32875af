package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/adapters/models"
	"goseldon/adapters/optimize"
	"goseldon/domain/core"
	"goseldon/domain/run"
	"goseldon/internal/hyperparam"
	"goseldon/internal/testkit"
	"goseldon/ports"
)

func fprSpec(seed int64) Spec {
	return Spec{
		Name:        "fpr_cap",
		Constraints: []string{"FPR - 0.2 <= 0"},
		Delta:       0.05,
		Primary:     "ACC",
		Maximize:    true,
		FracSafety:  0.6,
		Shuffle:     true,
		Seed:        seed,
		Hyper:       optimize.WithDefaults(ports.Hyperparameters{}),
	}
}

func TestAlgorithmPassesWhenTrueRateIsSafe(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		data := testkit.NewGenerator(seed).Classification(testkit.DefaultClassificationConfig())

		repo := testkit.NewInMemoryRunRepository()
		alg := NewAlgorithm(testkit.RecordedClassifier{}, optimize.NewGonum(nil), WithRunRepository(repo))

		out, err := alg.Run(context.Background(), fprSpec(seed), data)
		require.NoError(t, err)
		assert.True(t, out.Passed, "seed %d", seed)
		assert.NotNil(t, out.Solution)
		assert.Equal(t, run.FailureNone, out.Record.Failure)
		require.Len(t, out.Record.Constraints, 1)
		assert.Less(t, out.Record.Constraints[0].Upper.Float(), 0.0)
		// the recorded rate is near 0.05, so FPR - 0.2 is near -0.15
		value := out.Record.Constraints[0].Value
		require.NotNil(t, value)
		assert.InDelta(t, -0.15, *value, 0.05)
		assert.LessOrEqual(t, *value, out.Record.Constraints[0].Upper.Float())
		assert.Equal(t, 800, out.Split.CandidateSize)
		assert.Equal(t, 1200, out.Split.SafetySize)

		saved, err := repo.GetRun(context.Background(), out.Record.ID)
		require.NoError(t, err)
		assert.True(t, saved.Passed)
	}
}

func TestAlgorithmFailsWhenTrueRateIsUnsafe(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		cfg := testkit.DefaultClassificationConfig()
		cfg.FPR = 0.5
		data := testkit.NewGenerator(seed).Classification(cfg)

		alg := NewAlgorithm(testkit.RecordedClassifier{}, optimize.NewGonum(nil))
		out, err := alg.Run(context.Background(), fprSpec(seed), data)
		require.NoError(t, err)
		assert.False(t, out.Passed, "seed %d", seed)
		assert.Nil(t, out.Solution)
		assert.Equal(t, run.FailureConstraint, out.Record.Failure)
		assert.Contains(t, out.Record.Reason, "FPR")
	}
}

func TestAlgorithmReportsCandidateFailure(t *testing.T) {
	data := testkit.NewGenerator(3).Classification(testkit.DefaultClassificationConfig())
	spec := fprSpec(3)
	spec.Primary = "Mean_Squared_Error"

	repo := testkit.NewInMemoryRunRepository()
	alg := NewAlgorithm(testkit.RecordedClassifier{}, optimize.NewGonum(nil), WithRunRepository(repo))
	out, err := alg.Run(context.Background(), spec, data)
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.Equal(t, run.FailureComputation, out.Record.Failure)
	assert.Nil(t, out.Safety, "safety test must not run without a candidate")
	assert.Contains(t, out.Record.Reason, "candidate selection")

	runs, err := repo.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestAlgorithmSetupErrors(t *testing.T) {
	data := testkit.NewGenerator(1).Classification(testkit.DefaultClassificationConfig())
	alg := NewAlgorithm(testkit.RecordedClassifier{}, optimize.NewGonum(nil))

	spec := fprSpec(1)
	spec.Constraints = []string{"FPR <"}
	_, err := alg.Run(context.Background(), spec, data)
	assert.True(t, core.IsParseError(err))

	spec = fprSpec(1)
	spec.Constraints = nil
	_, err = alg.Run(context.Background(), spec, data)
	assert.Error(t, err)

	spec = fprSpec(1)
	spec.InitialTheta = []float64{1, 2, 3}
	out, err := alg.Run(context.Background(), spec, data)
	require.NoError(t, err)
	assert.Equal(t, run.FailureComputation, out.Record.Failure)
}

func TestAlgorithmCancelled(t *testing.T) {
	data := testkit.NewGenerator(1).Classification(testkit.DefaultClassificationConfig())
	alg := NewAlgorithm(testkit.RecordedClassifier{}, optimize.NewGonum(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := alg.Run(ctx, fprSpec(1), data)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAlgorithmLogisticRegression(t *testing.T) {
	data := testkit.NewGenerator(11).Classification(testkit.DefaultClassificationConfig())
	spec := Spec{
		Name:        "logistic",
		Constraints: []string{"FPR <= 0.6", "abs((PR | [M]) - (PR | [F])) <= 0.4"},
		Delta:       0.05,
		Primary:     "logistic_loss",
		FracSafety:  0.5,
		Shuffle:     true,
		Seed:        11,
		Parallel:    true,
		Hyper: ports.Hyperparameters{
			Method:        optimize.MethodBFGS,
			MaxIterations: 200,
			Tolerance:     1e-8,
		},
	}
	out, err := NewAlgorithm(models.LogisticRegression{}, optimize.NewGonum(nil)).Run(context.Background(), spec, data)
	require.NoError(t, err)
	require.NotNil(t, out.Candidate)
	assert.True(t, out.Passed, out.Record.Reason)
	assert.Len(t, out.Solution, 3)
	// the recorded decision is strongly predictive of the label
	assert.Greater(t, out.Solution[1], 0.0)
}

func TestAlgorithmTrialDrivesSafetyFractionSearch(t *testing.T) {
	cfg := testkit.DefaultClassificationConfig()
	cfg.N = 600
	data := testkit.NewGenerator(5).Classification(cfg)

	repo := testkit.NewInMemoryRunRepository()
	alg := NewAlgorithm(testkit.RecordedClassifier{}, optimize.NewGonum(nil), WithRunRepository(repo))
	trial, err := alg.Trial(fprSpec(5), data.Meta)
	require.NoError(t, err)

	search, err := hyperparam.NewSearch(hyperparam.Config{
		Fracs:   []float64{0.3, 0.6},
		Trials:  8,
		Workers: 4,
		Seed:    5,
	}, trial, nil)
	require.NoError(t, err)
	sel, err := search.FindBestFracSafety(context.Background(), data)
	require.NoError(t, err)
	require.NotEmpty(t, sel.Estimates)
	assert.Equal(t, 1.0, sel.Estimates[0].ProbPass)

	runs, err := repo.ListRuns(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "trial runs are not recorded")

	bad := fprSpec(5)
	bad.Constraints = []string{"FPR <"}
	_, err = alg.Trial(bad, data.Meta)
	assert.True(t, core.IsParseError(err))
}
