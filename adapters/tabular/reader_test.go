package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadSupervisedCSV(t *testing.T) {
	path := writeFile(t, "data.csv", "x1,x2,M,F,y\n1,2,1,0,0\n3,4,0,1,1\n 5 ,6,1,0,1\n")
	meta := dataset.Meta{LabelName: "y", SensitiveNames: []string{"M", "F"}, SubRegime: dataset.SubRegimeClassification}

	data, err := NewReader(nil).Read(context.Background(), path, meta)
	require.NoError(t, err)
	assert.Equal(t, 3, data.Len())
	assert.Equal(t, []string{"x1", "x2"}, data.Meta.FeatureNames)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, data.Features)
	assert.Equal(t, []float64{0, 1, 1}, data.Labels)
	assert.Equal(t, []float64{0, 1}, data.Sensitive[1])
	assert.Equal(t, dataset.RegimeSupervised, data.Meta.Regime)
}

func TestReadSupervisedErrors(t *testing.T) {
	r := NewReader(nil)
	ctx := context.Background()

	path := writeFile(t, "bad.csv", "x,y\n1,abc\n")
	_, err := r.Read(ctx, path, dataset.Meta{LabelName: "y"})
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	path = writeFile(t, "header.csv", "x,y\n")
	_, err = r.Read(ctx, path, dataset.Meta{LabelName: "y"})
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	path = writeFile(t, "ok.csv", "x,y\n1,2\n")
	_, err = r.Read(ctx, path, dataset.Meta{LabelName: "z"})
	assert.ErrorIs(t, err, core.ErrInvalidDataset)
	_, err = r.Read(ctx, path, dataset.Meta{})
	assert.ErrorIs(t, err, core.ErrInvalidDataset)

	_, err = r.Read(ctx, writeFile(t, "data.parquet", "x"), dataset.Meta{LabelName: "y"})
	assert.Error(t, err)
	_, err = r.Read(ctx, filepath.Join(t.TempDir(), "missing.csv"), dataset.Meta{LabelName: "y"})
	assert.Error(t, err)
}

func TestReadEpisodesCSV(t *testing.T) {
	path := writeFile(t, "episodes.csv",
		"episode,observation,action,reward,action_prob\n"+
			"0,0,1,1,0.5\n0,1,0,0,0.5\n"+
			"1,2,1,1,0.5\n")
	data, err := NewReader(nil).Read(context.Background(), path, dataset.Meta{Regime: dataset.RegimeRL})
	require.NoError(t, err)
	require.Equal(t, 2, data.Len())
	assert.Equal(t, []int{0, 1}, data.Episodes[0].Observations)
	assert.Equal(t, []float64{1, 0}, data.Episodes[0].Rewards)
	assert.Equal(t, []int{1}, data.Episodes[1].Actions)
	assert.Equal(t, 1.0, data.Meta.Gamma)
}

func TestReadExcel(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"x", "y"},
		{1.5, 2},
		{2.5, 4},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	data, err := NewReader(nil).Read(context.Background(), path, dataset.Meta{LabelName: "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5}, {2.5}}, data.Features)
	assert.Equal(t, []float64{2, 4}, data.Labels)
}
