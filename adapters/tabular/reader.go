// Package tabular loads datasets from CSV and Excel files.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/ports"
)

// Column names of the long episode format: one row per step, rows of an
// episode contiguous
const (
	ColEpisode     = "episode"
	ColObservation = "observation"
	ColAction      = "action"
	ColReward      = "reward"
	ColActionProb  = "action_prob"
)

// Table is a header plus string cells
type Table struct {
	Headers []string
	Rows    [][]string
}

// Reader reads CSV and XLSX files into datasets
type Reader struct {
	// Sheet is the worksheet read from XLSX files; empty means the first one
	Sheet string
	log   *zap.Logger
}

var _ ports.DatasetReader = (*Reader)(nil)

// NewReader creates a reader
func NewReader(logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{log: logger.With(zap.String("component", "tabular_reader"))}
}

// Read loads path and interprets its columns according to meta
func (r *Reader) Read(ctx context.Context, path string, meta dataset.Meta) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, err := r.ReadTable(path)
	if err != nil {
		return nil, err
	}
	if meta.Regime == dataset.RegimeRL {
		return Episodes(table, meta)
	}
	return Supervised(table, meta)
}

// ReadTable reads the raw cells of a CSV or XLSX file
func (r *Reader) ReadTable(path string) (*Table, error) {
	start := time.Now()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dataset file: %w", err)
	}

	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = r.readExcel(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s needs a header row and at least one data row", core.ErrInvalidDataset, path)
	}

	table := processRows(rows)
	r.log.Debug("table read",
		zap.String("path", path),
		zap.Int("columns", len(table.Headers)),
		zap.Int("rows", len(table.Rows)),
		zap.Duration("elapsed", time.Since(start)))
	return table, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *Reader) readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func processRows(rows [][]string) *Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	out := &Table{Headers: headers}
	for _, row := range rows[1:] {
		cells := make([]string, len(headers))
		for j := range headers {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

func (t *Table) column(name string) (int, error) {
	for i, h := range t.Headers {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: column %q not found", core.ErrInvalidDataset, name)
}

func (t *Table) columns(names []string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		idx, err := t.column(n)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func (t *Table) float(row, col int) (float64, error) {
	v, err := strconv.ParseFloat(t.Rows[row][col], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row %d column %q: %v", core.ErrInvalidDataset, row+2, t.Headers[col], err)
	}
	return v, nil
}

// Supervised builds a supervised dataset. Without explicit feature names
// every column that is neither the label nor sensitive is a feature.
func Supervised(t *Table, meta dataset.Meta) (*dataset.Dataset, error) {
	if meta.LabelName == "" {
		return nil, fmt.Errorf("%w: no label column configured", core.ErrInvalidDataset)
	}
	labelCol, err := t.column(meta.LabelName)
	if err != nil {
		return nil, err
	}
	sensCols, err := t.columns(meta.SensitiveNames)
	if err != nil {
		return nil, err
	}
	if len(meta.FeatureNames) == 0 {
		skip := map[string]bool{meta.LabelName: true}
		for _, s := range meta.SensitiveNames {
			skip[s] = true
		}
		for _, h := range t.Headers {
			if !skip[h] {
				meta.FeatureNames = append(meta.FeatureNames, h)
			}
		}
	}
	featCols, err := t.columns(meta.FeatureNames)
	if err != nil {
		return nil, err
	}

	n := len(t.Rows)
	features := make([][]float64, n)
	labels := make([]float64, n)
	var sensitive [][]float64
	if len(sensCols) > 0 {
		sensitive = make([][]float64, n)
	}
	for i := range t.Rows {
		if labels[i], err = t.float(i, labelCol); err != nil {
			return nil, err
		}
		features[i] = make([]float64, len(featCols))
		for j, c := range featCols {
			if features[i][j], err = t.float(i, c); err != nil {
				return nil, err
			}
		}
		if sensitive != nil {
			sensitive[i] = make([]float64, len(sensCols))
			for j, c := range sensCols {
				if sensitive[i][j], err = t.float(i, c); err != nil {
					return nil, err
				}
			}
		}
	}
	return dataset.NewSupervised(meta, features, labels, sensitive)
}

// Episodes builds an RL dataset from the long step format. Sensitive
// columns are read from the first step of each episode.
func Episodes(t *Table, meta dataset.Meta) (*dataset.Dataset, error) {
	cols, err := t.columns([]string{ColEpisode, ColObservation, ColAction, ColReward, ColActionProb})
	if err != nil {
		return nil, err
	}
	sensCols, err := t.columns(meta.SensitiveNames)
	if err != nil {
		return nil, err
	}

	var episodes []dataset.Episode
	var sensitive [][]float64
	current := ""
	for i, row := range t.Rows {
		if id := row[cols[0]]; id != current || len(episodes) == 0 {
			current = id
			episodes = append(episodes, dataset.Episode{})
			if len(sensCols) > 0 {
				s := make([]float64, len(sensCols))
				for j, c := range sensCols {
					if s[j], err = t.float(i, c); err != nil {
						return nil, err
					}
				}
				sensitive = append(sensitive, s)
			}
		}
		ep := &episodes[len(episodes)-1]
		vals := make([]float64, 4)
		for j, c := range cols[1:] {
			if vals[j], err = t.float(i, c); err != nil {
				return nil, err
			}
		}
		ep.Observations = append(ep.Observations, int(vals[0]))
		ep.Actions = append(ep.Actions, int(vals[1]))
		ep.Rewards = append(ep.Rewards, vals[2])
		ep.ActionProbs = append(ep.ActionProbs, vals[3])
	}
	return dataset.NewEpisodic(meta, episodes, sensitive)
}
