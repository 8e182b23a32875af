package models

import (
	"context"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/ports"
)

// SoftmaxPolicy is a tabular policy: theta holds one row of action
// preferences per observation and pi(a|o) = softmax(theta[o])[a]. Its
// statistics are importance-sampling estimates of the new policy's return
// from episodes collected by a behavior policy.
type SoftmaxPolicy struct {
	Observations int
	Actions      int
}

var _ ports.StatisticProvider = SoftmaxPolicy{}

// NewSoftmaxPolicy sizes the parameter table
func NewSoftmaxPolicy(observations, actions int) (SoftmaxPolicy, error) {
	if observations < 1 || actions < 2 {
		return SoftmaxPolicy{}, fmt.Errorf("softmax policy needs at least 1 observation and 2 actions, got %d and %d", observations, actions)
	}
	return SoftmaxPolicy{Observations: observations, Actions: actions}, nil
}

func (SoftmaxPolicy) Name() string { return "softmax_policy" }

func (p SoftmaxPolicy) NumParams(*dataset.Dataset) int { return p.Observations * p.Actions }

// Predict is not defined for a policy
func (p SoftmaxPolicy) Predict([]float64, [][]float64) ([]float64, error) {
	return nil, fmt.Errorf("%s does not predict labels", p.Name())
}

// Probability returns pi(a|o)
func (p SoftmaxPolicy) Probability(theta []float64, obs, action int) (float64, error) {
	if obs < 0 || obs >= p.Observations || action < 0 || action >= p.Actions {
		return 0, fmt.Errorf("observation %d / action %d outside the %dx%d table", obs, action, p.Observations, p.Actions)
	}
	row := theta[obs*p.Actions : (obs+1)*p.Actions]
	m := floats.Max(row)
	sum := 0.0
	for _, v := range row {
		sum += math.Exp(v - m)
	}
	return math.Exp(row[action]-m) / sum, nil
}

// ratios returns the per-step importance weights pi_new/pi_b of an episode
func (p SoftmaxPolicy) ratios(theta []float64, ep dataset.Episode) ([]float64, error) {
	out := make([]float64, len(ep.Actions))
	for t := range ep.Actions {
		pn, err := p.Probability(theta, ep.Observations[t], ep.Actions[t])
		if err != nil {
			return nil, err
		}
		out[t] = pn / ep.ActionProbs[t]
	}
	return out, nil
}

func (p SoftmaxPolicy) EvaluateStatistic(_ context.Context, name string, data *dataset.Dataset, theta []float64) (float64, []float64, error) {
	samples, err := p.samples(name, data, theta)
	if err != nil {
		return 0, nil, err
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return 0, nil, err
	}
	return mean, samples, nil
}

func (p SoftmaxPolicy) samples(name string, data *dataset.Dataset, theta []float64) ([]float64, error) {
	if len(theta) != p.NumParams(data) {
		return nil, fmt.Errorf("theta has %d entries, policy table needs %d", len(theta), p.NumParams(data))
	}
	if len(data.Episodes) == 0 {
		return nil, fmt.Errorf("no episodes")
	}
	gamma := data.Meta.Gamma
	out := make([]float64, len(data.Episodes))
	switch name {
	case "J_pi_new_IS", "J_pi_new_WIS":
		weights := make([]float64, len(data.Episodes))
		for i, ep := range data.Episodes {
			r, err := p.ratios(theta, ep)
			if err != nil {
				return nil, err
			}
			weights[i] = floats.Prod(r)
			out[i] = weights[i] * dataset.DiscountedReturn(ep.Rewards, gamma)
		}
		if name == "J_pi_new_WIS" {
			total := floats.Sum(weights)
			if total == 0 {
				return nil, fmt.Errorf("all importance weights are zero")
			}
			floats.Scale(float64(len(out))/total, out)
		}
	case "J_pi_new_PDIS":
		for i, ep := range data.Episodes {
			r, err := p.ratios(theta, ep)
			if err != nil {
				return nil, err
			}
			rho, discount := 1.0, 1.0
			for t, reward := range ep.Rewards {
				rho *= r[t]
				out[i] += discount * rho * reward
				discount *= gamma
			}
		}
	default:
		return nil, core.NewUnsupportedStatisticError(p.Name(), name)
	}
	return out, nil
}

// Gradient differentiates the estimate numerically
func (p SoftmaxPolicy) Gradient(ctx context.Context, name string, data *dataset.Dataset, theta []float64) ([]float64, error) {
	if _, err := p.samples(name, data, theta); err != nil {
		return nil, err
	}
	grad := fd.Gradient(nil, func(x []float64) float64 {
		v, _, err := p.EvaluateStatistic(ctx, name, data, x)
		if err != nil {
			return math.NaN()
		}
		return v
	}, theta, &fd.Settings{Formula: fd.Central})
	return grad, nil
}
