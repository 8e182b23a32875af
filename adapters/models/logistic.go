package models

import (
	"context"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/ports"
)

// LogisticRegression is a binary classifier with p = sigmoid(theta[0] +
// theta[1:]·x). Rates are soft: each row contributes its predicted
// probability rather than a thresholded decision, which keeps them
// differentiable.
type LogisticRegression struct{}

var (
	_ ports.StatisticProvider = LogisticRegression{}
	_ ports.InitialSolver     = LogisticRegression{}
	_ ports.RangeProvider     = LogisticRegression{}
)

// rowRule selects rows by label and maps a probability to a sample
type rowRule struct {
	// label is 0 or 1 to restrict rows, -1 for all rows
	label float64
	// positive counts p, otherwise 1-p
	positive bool
}

var rateRules = map[string]rowRule{
	"PR":  {label: -1, positive: true},
	"NR":  {label: -1, positive: false},
	"FPR": {label: 0, positive: true},
	"TNR": {label: 0, positive: false},
	"TPR": {label: 1, positive: true},
	"FNR": {label: 1, positive: false},
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func (LogisticRegression) Name() string { return "logistic_regression" }

func (LogisticRegression) NumParams(data *dataset.Dataset) int { return data.NumFeatures() + 1 }

// Predict returns the probability of the positive class
func (LogisticRegression) Predict(theta []float64, features [][]float64) ([]float64, error) {
	out := make([]float64, len(features))
	for i, x := range features {
		if len(x)+1 != len(theta) {
			return nil, fmt.Errorf("row %d has %d features for %d parameters", i, len(x), len(theta))
		}
		out[i] = sigmoid(theta[0] + floats.Dot(theta[1:], x))
	}
	return out, nil
}

// StatisticRange reports [0,1] for rates and accuracy
func (LogisticRegression) StatisticRange(name string) (float64, float64, bool) {
	if _, ok := rateRules[name]; ok || name == "ACC" {
		return 0, 1, true
	}
	return 0, 0, false
}

func (m LogisticRegression) EvaluateStatistic(_ context.Context, name string, data *dataset.Dataset, theta []float64) (float64, []float64, error) {
	p, err := m.Predict(theta, data.Features)
	if err != nil {
		return 0, nil, err
	}
	var samples []float64
	if rule, ok := rateRules[name]; ok {
		for i, pi := range p {
			if rule.label >= 0 && data.Labels[i] != rule.label {
				continue
			}
			if rule.positive {
				samples = append(samples, pi)
			} else {
				samples = append(samples, 1-pi)
			}
		}
		if len(samples) == 0 {
			return 0, nil, fmt.Errorf("%s needs rows with label %g", name, rule.label)
		}
	} else {
		samples = make([]float64, len(p))
		switch name {
		case "ACC":
			for i, pi := range p {
				y := data.Labels[i]
				samples[i] = y*pi + (1-y)*(1-pi)
			}
		case "logistic_loss":
			for i, pi := range p {
				samples[i] = logLoss(pi, data.Labels[i])
			}
		default:
			return 0, nil, core.NewUnsupportedStatisticError(m.Name(), name)
		}
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return 0, nil, err
	}
	return mean, samples, nil
}

func logLoss(p, y float64) float64 {
	const eps = 1e-12
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

func (m LogisticRegression) Gradient(_ context.Context, name string, data *dataset.Dataset, theta []float64) ([]float64, error) {
	p, err := m.Predict(theta, data.Features)
	if err != nil {
		return nil, err
	}
	grad := make([]float64, len(theta))
	count := 0
	for i, pi := range p {
		y := data.Labels[i]
		dp := pi * (1 - pi)
		var w float64
		if rule, ok := rateRules[name]; ok {
			if rule.label >= 0 && y != rule.label {
				continue
			}
			w = dp
			if !rule.positive {
				w = -dp
			}
		} else {
			switch name {
			case "ACC":
				w = (2*y - 1) * dp
			case "logistic_loss":
				w = pi - y
			default:
				return nil, core.NewUnsupportedStatisticError(m.Name(), name)
			}
		}
		count++
		grad[0] += w
		floats.AddScaled(grad[1:], w, data.Features[i])
	}
	if count == 0 {
		return nil, fmt.Errorf("%s has no contributing rows", name)
	}
	floats.Scale(1/float64(count), grad)
	return grad, nil
}

// InitialSolution starts from the zero vector (p = 0.5 everywhere)
func (m LogisticRegression) InitialSolution(_ context.Context, data *dataset.Dataset) ([]float64, error) {
	return make([]float64, m.NumParams(data)), nil
}
