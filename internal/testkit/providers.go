package testkit

import (
	"context"

	"github.com/montanaflynn/stats"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/ports"
)

// RecordedClassifier serves classification statistics of the decisions
// recorded in the first feature column, so their true rates are known. Its
// single parameter does not change the decisions.
type RecordedClassifier struct{}

var _ ports.StatisticProvider = RecordedClassifier{}

func (RecordedClassifier) Name() string { return "recorded_classifier" }

func (RecordedClassifier) NumParams(*dataset.Dataset) int { return 1 }

func (RecordedClassifier) Predict(_ []float64, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, x := range features {
		out[i] = x[0]
	}
	return out, nil
}

func (c RecordedClassifier) EvaluateStatistic(_ context.Context, name string, data *dataset.Dataset, _ []float64) (float64, []float64, error) {
	var samples []float64
	for i, x := range data.Features {
		d, y := x[0], data.Labels[i]
		switch name {
		case "FPR":
			if y == 0 {
				samples = append(samples, d)
			}
		case "TPR":
			if y == 1 {
				samples = append(samples, d)
			}
		case "PR":
			samples = append(samples, d)
		case "ACC":
			if d == y {
				samples = append(samples, 1)
			} else {
				samples = append(samples, 0)
			}
		default:
			return 0, nil, core.NewUnsupportedStatisticError(c.Name(), name)
		}
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return 0, nil, err
	}
	return mean, samples, nil
}

func (RecordedClassifier) Gradient(context.Context, string, *dataset.Dataset, []float64) ([]float64, error) {
	return []float64{0}, nil
}
