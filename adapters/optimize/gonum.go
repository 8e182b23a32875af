// Package optimize adapts gonum's optimize package to ports.Optimizer.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	gonumopt "gonum.org/v1/gonum/optimize"

	"goseldon/domain/core"
	"goseldon/ports"
)

// Supported method names
const (
	MethodGradientDescent = "gradient_descent"
	MethodBFGS            = "bfgs"
	MethodLBFGS           = "lbfgs"
	MethodCG              = "cg"
	MethodNelderMead      = "nelder_mead"
)

// Defaults applied to zero-valued hyperparameters
const (
	DefaultMethod        = MethodGradientDescent
	DefaultLearningRate  = 0.05
	DefaultMaxIterations = 500
	DefaultTolerance     = 1e-8
)

// Gonum minimises problems with one of gonum's local methods
type Gonum struct {
	log *zap.Logger
}

// NewGonum creates the adapter; a nil logger discards output
func NewGonum(logger *zap.Logger) *Gonum {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gonum{log: logger.With(zap.String("component", "optimizer"))}
}

var _ ports.Optimizer = (*Gonum)(nil)

// WithDefaults fills zero-valued fields
func WithDefaults(h ports.Hyperparameters) ports.Hyperparameters {
	if h.Method == "" {
		h.Method = DefaultMethod
	}
	if h.LearningRate <= 0 {
		h.LearningRate = DefaultLearningRate
	}
	if h.MaxIterations <= 0 {
		h.MaxIterations = DefaultMaxIterations
	}
	if h.Tolerance <= 0 {
		h.Tolerance = DefaultTolerance
	}
	return h
}

func method(h ports.Hyperparameters) (gonumopt.Method, error) {
	switch h.Method {
	case MethodGradientDescent:
		return &gonumopt.GradientDescent{
			StepSizer: &gonumopt.ConstantStepSize{Size: h.LearningRate},
		}, nil
	case MethodBFGS:
		return &gonumopt.BFGS{}, nil
	case MethodLBFGS:
		return &gonumopt.LBFGS{}, nil
	case MethodCG:
		return &gonumopt.CG{}, nil
	case MethodNelderMead:
		return &gonumopt.NelderMead{}, nil
	}
	return nil, fmt.Errorf("unknown optimizer method %q", h.Method)
}

// Minimize runs the configured method from theta0. Running out of
// iterations or failing to make progress is not an error: the best location
// found is returned. A non-finite result is an optimizer divergence.
func (g *Gonum) Minimize(ctx context.Context, problem ports.Problem, theta0 []float64, hyper ports.Hyperparameters) (*ports.OptimizeResult, error) {
	hyper = WithDefaults(hyper)
	m, err := method(hyper)
	if err != nil {
		return nil, err
	}
	if problem.Func == nil {
		return nil, fmt.Errorf("problem has no objective")
	}
	if problem.Grad == nil && hyper.Method != MethodNelderMead {
		return nil, fmt.Errorf("method %s needs a gradient", hyper.Method)
	}

	rec := &recorder{ctx: ctx, log: g.log, verbose: hyper.Verbose}
	settings := &gonumopt.Settings{
		MajorIterations: hyper.MaxIterations,
		Converger: &gonumopt.FunctionConverge{
			Absolute:   hyper.Tolerance,
			Iterations: 20,
		},
		Recorder: rec,
	}
	res, err := gonumopt.Minimize(gonumopt.Problem{Func: problem.Func, Grad: problem.Grad}, theta0, settings, m)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if res == nil {
		return nil, fmt.Errorf("optimizer %s: %w", hyper.Method, err)
	}
	if math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, core.NewDivergenceError("objective is %v after %d iterations", res.F, res.MajorIterations)
	}
	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, core.NewDivergenceError("parameters are not finite after %d iterations", res.MajorIterations)
		}
	}
	if err != nil && !benign(err) {
		return nil, fmt.Errorf("optimizer %s: %w", hyper.Method, err)
	}

	out := &ports.OptimizeResult{
		Theta:       append([]float64(nil), res.X...),
		Value:       res.F,
		Iterations:  res.MajorIterations,
		Evaluations: res.FuncEvaluations,
		Status:      res.Status.String(),
	}
	g.log.Debug("optimization finished",
		zap.String("method", hyper.Method),
		zap.Float64("value", out.Value),
		zap.Int("iterations", out.Iterations),
		zap.String("status", out.Status))
	return out, nil
}

// benign errors still leave a usable best location
func benign(err error) bool {
	return errors.Is(err, gonumopt.ErrNoProgress) ||
		errors.Is(err, gonumopt.ErrLinesearcherFailure)
}

// recorder stops the run when ctx is done and logs iterations when verbose
type recorder struct {
	ctx     context.Context
	log     *zap.Logger
	verbose bool
}

func (r *recorder) Init() error { return r.ctx.Err() }

func (r *recorder) Record(loc *gonumopt.Location, op gonumopt.Operation, stats *gonumopt.Stats) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if r.verbose && op == gonumopt.MajorIteration {
		r.log.Info("iteration",
			zap.Int("iteration", stats.MajorIterations),
			zap.Float64("objective", loc.F))
	}
	return nil
}
