package ports

import (
	"context"

	"goseldon/domain/dataset"
)

// StatisticProvider is the model-side contract consumed by the constraint
// engine. Implementations compute behavioral statistics of a parameter
// vector on an already-masked dataset.
type StatisticProvider interface {
	// Name identifies the provider in errors and logs
	Name() string

	// EvaluateStatistic returns the point estimate and the per-sample vector
	// whose mean is that estimate. Unknown names fail with
	// core.ErrUnsupportedStatistic.
	EvaluateStatistic(ctx context.Context, name string, data *dataset.Dataset, theta []float64) (float64, []float64, error)

	// Gradient returns d(statistic)/d(theta)
	Gradient(ctx context.Context, name string, data *dataset.Dataset, theta []float64) ([]float64, error)

	// Predict returns the model output for each feature row
	Predict(theta []float64, features [][]float64) ([]float64, error)

	// NumParams is the length of theta for a dataset
	NumParams(data *dataset.Dataset) int
}

// InitialSolver is implemented by providers that can propose a starting
// parameter vector (for example a least-squares fit).
type InitialSolver interface {
	InitialSolution(ctx context.Context, data *dataset.Dataset) ([]float64, error)
}

// RangeProvider is implemented by providers that know the support of a
// statistic's per-sample values; range-based bounds need it.
type RangeProvider interface {
	StatisticRange(name string) (lo, hi float64, ok bool)
}
