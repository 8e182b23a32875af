// Package models holds reference StatisticProvider implementations: linear
// and logistic regression over tabular data, and a tabular softmax policy
// evaluated off-policy on episodes.
package models

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/ports"
)

// LinearRegression predicts theta[0] + theta[1:]·x
type LinearRegression struct{}

var (
	_ ports.StatisticProvider = LinearRegression{}
	_ ports.InitialSolver     = LinearRegression{}
)

func (LinearRegression) Name() string { return "linear_regression" }

func (LinearRegression) NumParams(data *dataset.Dataset) int { return data.NumFeatures() + 1 }

func (LinearRegression) Predict(theta []float64, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, x := range features {
		if len(x)+1 != len(theta) {
			return nil, fmt.Errorf("row %d has %d features for %d parameters", i, len(x), len(theta))
		}
		out[i] = theta[0] + floats.Dot(theta[1:], x)
	}
	return out, nil
}

func (m LinearRegression) EvaluateStatistic(_ context.Context, name string, data *dataset.Dataset, theta []float64) (float64, []float64, error) {
	pred, err := m.Predict(theta, data.Features)
	if err != nil {
		return 0, nil, err
	}
	samples := make([]float64, len(pred))
	switch name {
	case "Mean_Squared_Error", "Squared_Error":
		for i, p := range pred {
			d := p - data.Labels[i]
			samples[i] = d * d
		}
	case "Mean_Error":
		for i, p := range pred {
			samples[i] = p - data.Labels[i]
		}
	default:
		return 0, nil, core.NewUnsupportedStatisticError(m.Name(), name)
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return 0, nil, err
	}
	return mean, samples, nil
}

func (m LinearRegression) Gradient(_ context.Context, name string, data *dataset.Dataset, theta []float64) ([]float64, error) {
	pred, err := m.Predict(theta, data.Features)
	if err != nil {
		return nil, err
	}
	n := float64(len(pred))
	if n == 0 {
		return nil, fmt.Errorf("no datapoints")
	}
	grad := make([]float64, len(theta))
	for i, p := range pred {
		var w float64
		switch name {
		case "Mean_Squared_Error", "Squared_Error":
			w = 2 * (p - data.Labels[i]) / n
		case "Mean_Error":
			w = 1 / n
		default:
			return nil, core.NewUnsupportedStatisticError(m.Name(), name)
		}
		grad[0] += w
		floats.AddScaled(grad[1:], w, data.Features[i])
	}
	return grad, nil
}

// InitialSolution is the ordinary least squares fit
func (LinearRegression) InitialSolution(_ context.Context, data *dataset.Dataset) ([]float64, error) {
	n, d := data.Len(), data.NumFeatures()
	if n <= d {
		return nil, fmt.Errorf("%w: %d rows for %d parameters", core.ErrInsufficientData, n, d+1)
	}
	a := mat.NewDense(n, d+1, nil)
	for i, x := range data.Features {
		a.Set(i, 0, 1)
		for j, v := range x {
			a.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, append([]float64(nil), data.Labels...))
	var theta mat.VecDense
	if err := theta.SolveVec(a, y); err != nil {
		return nil, fmt.Errorf("least squares: %w", err)
	}
	return mat.Col(nil, 0, &theta), nil
}
