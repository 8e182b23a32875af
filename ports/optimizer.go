package ports

import "context"

// Problem is an unconstrained minimisation problem over a parameter vector
type Problem struct {
	Func func(theta []float64) float64
	// Grad writes the gradient at theta into grad
	Grad func(grad, theta []float64)
}

// Hyperparameters tune an Optimizer run
type Hyperparameters struct {
	Method        string  `json:"method" yaml:"method"`
	LearningRate  float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations"`
	Tolerance     float64 `json:"tolerance" yaml:"tolerance"`
	Verbose       bool    `json:"verbose" yaml:"verbose"`
}

// OptimizeResult is the outcome of a minimisation
type OptimizeResult struct {
	Theta       []float64
	Value       float64
	Iterations  int
	Evaluations int
	Status      string
}

// Optimizer minimises a Problem starting at theta0
type Optimizer interface {
	Minimize(ctx context.Context, problem Problem, theta0 []float64, hyper Hyperparameters) (*OptimizeResult, error)
}
