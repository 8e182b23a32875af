// Package testkit generates synthetic datasets with known ground truth and
// provides in-memory fakes for tests.
package testkit

import (
	"math"
	"math/rand"

	"goseldon/domain/dataset"
)

// ClassificationConfig configures the classification generator
type ClassificationConfig struct {
	N int `json:"n"`
	// FPR is the true false positive rate of the recorded decisions
	FPR float64 `json:"fpr"`
	// TPR is the true true positive rate of the recorded decisions
	TPR float64 `json:"tpr"`
	// PositiveRate is the share of label 1
	PositiveRate float64 `json:"positive_rate"`
	// GroupRate is the share of rows with sensitive attribute M = 1
	GroupRate float64 `json:"group_rate"`
}

// DefaultClassificationConfig returns a balanced problem
func DefaultClassificationConfig() ClassificationConfig {
	return ClassificationConfig{
		N:            2000,
		FPR:          0.05,
		TPR:          0.8,
		PositiveRate: 0.5,
		GroupRate:    0.5,
	}
}

// Generator draws synthetic datasets from a seeded source
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Classification returns rows whose first feature is a recorded 0/1
// decision with the configured error rates, followed by one noisy feature
// correlated with the label. Sensitive columns are M and F (= 1 - M).
func (g *Generator) Classification(cfg ClassificationConfig) *dataset.Dataset {
	X := make([][]float64, cfg.N)
	y := make([]float64, cfg.N)
	S := make([][]float64, cfg.N)
	for i := 0; i < cfg.N; i++ {
		label := bernoulli(g.rng, cfg.PositiveRate)
		rate := cfg.FPR
		if label == 1 {
			rate = cfg.TPR
		}
		X[i] = []float64{bernoulli(g.rng, rate), label + g.rng.NormFloat64()}
		y[i] = label
		m := bernoulli(g.rng, cfg.GroupRate)
		S[i] = []float64{m, 1 - m}
	}
	return &dataset.Dataset{
		Meta: dataset.Meta{
			Regime:         dataset.RegimeSupervised,
			SubRegime:      dataset.SubRegimeClassification,
			FeatureNames:   []string{"decision", "signal"},
			LabelName:      "label",
			SensitiveNames: []string{"M", "F"},
		},
		Features:  X,
		Labels:    y,
		Sensitive: S,
	}
}

// Regression returns y = 1 + 2x + noise with x uniform in [0,1). Group M
// rows get an extra offset so group-dependent error can be exercised.
func (g *Generator) Regression(n int, noise, groupOffset float64) *dataset.Dataset {
	X := make([][]float64, n)
	y := make([]float64, n)
	S := make([][]float64, n)
	for i := 0; i < n; i++ {
		x := g.rng.Float64()
		m := bernoulli(g.rng, 0.5)
		X[i] = []float64{x}
		y[i] = 1 + 2*x + groupOffset*m + noise*g.rng.NormFloat64()
		S[i] = []float64{m, 1 - m}
	}
	return &dataset.Dataset{
		Meta: dataset.Meta{
			Regime:         dataset.RegimeSupervised,
			SubRegime:      dataset.SubRegimeRegression,
			FeatureNames:   []string{"x"},
			LabelName:      "y",
			SensitiveNames: []string{"M", "F"},
		},
		Features:  X,
		Labels:    y,
		Sensitive: S,
	}
}

// Episodes simulates a uniform random behavior policy on a chain of
// observations where action 1 earns reward 1 and action 0 earns nothing
func (g *Generator) Episodes(n, observations, actions, length int) *dataset.Dataset {
	eps := make([]dataset.Episode, n)
	prob := 1 / float64(actions)
	for i := range eps {
		ep := dataset.Episode{}
		obs := g.rng.Intn(observations)
		for t := 0; t < length; t++ {
			a := g.rng.Intn(actions)
			reward := 0.0
			if a == 1 {
				reward = 1
			}
			ep.Observations = append(ep.Observations, obs)
			ep.Actions = append(ep.Actions, a)
			ep.Rewards = append(ep.Rewards, reward)
			ep.ActionProbs = append(ep.ActionProbs, prob)
			obs = (obs + 1) % observations
		}
		eps[i] = ep
	}
	return &dataset.Dataset{
		Meta:     dataset.Meta{Regime: dataset.RegimeRL, SubRegime: dataset.SubRegimeAll, Gamma: 1},
		Episodes: eps,
	}
}

func bernoulli(rng *rand.Rand, p float64) float64 {
	if rng.Float64() < p {
		return 1
	}
	return 0
}

// Logit is the inverse of the logistic function
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
