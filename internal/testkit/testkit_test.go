package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/domain/core"
	"goseldon/domain/run"
)

func TestInMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRunRepository()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []core.RunID
	for i := 0; i < 3; i++ {
		rec := run.NewRecord("exp", int64(i))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.SaveRun(ctx, rec))
		ids = append(ids, rec.ID)
	}

	got, err := repo.GetRun(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seed)

	_, err = repo.GetRun(ctx, core.NewRunID())
	assert.ErrorIs(t, err, core.ErrRunNotFound)

	runs, err := repo.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	runs, err = repo.ListRuns(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestClassificationRates(t *testing.T) {
	cfg := DefaultClassificationConfig()
	cfg.N = 20000
	data := NewGenerator(7).Classification(cfg)
	require.Equal(t, cfg.N, data.Len())

	fpr, _, err := RecordedClassifier{}.EvaluateStatistic(context.Background(), "FPR", data, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, cfg.FPR, fpr, 0.01)

	tpr, _, err := RecordedClassifier{}.EvaluateStatistic(context.Background(), "TPR", data, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, cfg.TPR, tpr, 0.02)

	_, _, err = RecordedClassifier{}.EvaluateStatistic(context.Background(), "MED_MF", data, nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedStatistic)
}

func TestGeneratorsAreReproducible(t *testing.T) {
	a := NewGenerator(3).Regression(50, 0.1, 0.5)
	b := NewGenerator(3).Regression(50, 0.1, 0.5)
	assert.Equal(t, a.Labels, b.Labels)

	eps := NewGenerator(3).Episodes(10, 3, 2, 4)
	require.Equal(t, 10, eps.Len())
	for _, ep := range eps.Episodes {
		require.NoError(t, ep.Validate())
		assert.Len(t, ep.Rewards, 4)
	}
}
