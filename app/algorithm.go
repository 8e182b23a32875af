package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"goseldon/domain/dataset"
	"goseldon/domain/run"
	"goseldon/internal/bounds"
	"goseldon/internal/candidate"
	"goseldon/internal/hyperparam"
	"goseldon/internal/parsetree"
	"goseldon/internal/safety"
	"goseldon/internal/split"
	"goseldon/ports"
)

// Spec describes one constrained learning problem
type Spec struct {
	Name        string
	Constraints []string
	// Deltas gives each constraint its own failure probability; missing
	// entries use Delta
	Deltas []float64
	Delta  float64

	Primary  string
	Maximize bool

	FracSafety float64
	Shuffle    bool
	Stratify   string
	Seed       int64

	BoundMethod bounds.Method
	Inflation   float64
	Tolerance   float64

	Barrier  candidate.Barrier
	Parallel bool
	Hyper    ports.Hyperparameters

	InitialTheta []float64
}

// Outcome is the result of one run. Solution is nil unless Passed.
type Outcome struct {
	Passed    bool
	Solution  []float64
	Record    *run.Record
	Candidate *candidate.Result
	Safety    *safety.Result
	Split     split.Statistics
}

// Algorithm runs candidate selection followed by the safety test
type Algorithm struct {
	provider  ports.StatisticProvider
	optimizer ports.Optimizer
	runs      ports.RunRepository
	log       *zap.Logger
}

// AlgorithmOption configures an Algorithm
type AlgorithmOption func(*Algorithm)

// WithRunRepository records every run
func WithRunRepository(r ports.RunRepository) AlgorithmOption {
	return func(a *Algorithm) { a.runs = r }
}

// WithLogger attaches a logger
func WithLogger(l *zap.Logger) AlgorithmOption {
	return func(a *Algorithm) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAlgorithm wires the driver
func NewAlgorithm(provider ports.StatisticProvider, optimizer ports.Optimizer, opts ...AlgorithmOption) *Algorithm {
	a := &Algorithm{provider: provider, optimizer: optimizer, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With(zap.String("component", "algorithm"))
	return a
}

// BuildTrees parses every constraint of spec for the dataset's regime
func BuildTrees(spec Spec, meta dataset.Meta) ([]*parsetree.Tree, error) {
	if len(spec.Constraints) == 0 {
		return nil, fmt.Errorf("no constraints")
	}
	out := make([]*parsetree.Tree, len(spec.Constraints))
	for i, c := range spec.Constraints {
		delta := spec.Delta
		if i < len(spec.Deltas) && spec.Deltas[i] > 0 {
			delta = spec.Deltas[i]
		}
		opts := []parsetree.Option{
			parsetree.WithRegime(meta.Regime, meta.SubRegime),
			parsetree.WithSeed(spec.Seed),
		}
		if delta > 0 {
			opts = append(opts, parsetree.WithDelta(delta))
		}
		if spec.BoundMethod != "" {
			opts = append(opts, parsetree.WithBoundMethod(spec.BoundMethod))
		}
		tree, err := parsetree.New(c, opts...)
		if err != nil {
			return nil, err
		}
		out[i] = tree
	}
	return out, nil
}

// Run splits data and runs the algorithm. Setup problems (bad constraints,
// unusable split) are returned as errors; failures of the guarantee and
// computation faults during the run are reported in the Outcome.
func (a *Algorithm) Run(ctx context.Context, spec Spec, data *dataset.Dataset) (*Outcome, error) {
	parts, err := split.NewPartitionerWithSeed(spec.Seed).Partition(data, split.Config{
		FracSafety: spec.FracSafety,
		Shuffle:    spec.Shuffle,
		Stratify:   spec.Stratify,
	})
	if err != nil {
		return nil, err
	}
	out, err := a.RunSplit(ctx, spec, parts.Candidate, parts.Safety)
	if out != nil {
		out.Split = parts.Stats
	}
	return out, err
}

// RunSplit runs the algorithm on an existing candidate/safety split
func (a *Algorithm) RunSplit(ctx context.Context, spec Spec, cand, safe *dataset.Dataset) (*Outcome, error) {
	trees, err := BuildTrees(spec, cand.Meta)
	if err != nil {
		return nil, err
	}
	return a.runTrees(ctx, spec, trees, cand, safe)
}

// Trial parses the constraints once and returns a bootstrap trial for the
// safety fraction search. Every call works on its own clones of the trees,
// so trials may run concurrently. Trial runs are not recorded.
func (a *Algorithm) Trial(spec Spec, meta dataset.Meta) (hyperparam.TrialFunc, error) {
	trees, err := BuildTrees(spec, meta)
	if err != nil {
		return nil, err
	}
	quiet := &Algorithm{provider: a.provider, optimizer: a.optimizer, log: a.log}
	return func(ctx context.Context, _ int, cand, safe *dataset.Dataset) (bool, error) {
		own := make([]*parsetree.Tree, len(trees))
		for i, t := range trees {
			own[i] = t.Clone()
		}
		out, err := quiet.runTrees(ctx, spec, own, cand, safe)
		if err != nil {
			return false, err
		}
		return out.Passed, nil
	}, nil
}

func (a *Algorithm) runTrees(ctx context.Context, spec Spec, trees []*parsetree.Tree, cand, safe *dataset.Dataset) (*Outcome, error) {
	started := time.Now()
	rec := run.NewRecord(spec.Name, spec.Seed)
	rec.NCandidate, rec.NSafety = cand.Len(), safe.Len()
	out := &Outcome{Record: rec}

	log := a.log.With(zap.String("run_id", rec.ID.String()), zap.String("experiment", spec.Name))
	log.Info("run started", zap.Int("n_candidate", cand.Len()), zap.Int("n_safety", safe.Len()))

	theta0, err := a.initialTheta(ctx, spec, cand)
	if err == nil {
		selector := candidate.NewSelector(a.provider, a.optimizer, trees, candidate.Config{
			Primary:   spec.Primary,
			Maximize:  spec.Maximize,
			Barrier:   spec.Barrier,
			NSafety:   safe.Len(),
			Inflation: spec.Inflation,
			Parallel:  spec.Parallel,
			Hyper:     spec.Hyper,
		}, log)
		out.Candidate, err = selector.Select(ctx, cand, theta0)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// the safety test is skipped when no candidate exists
		rec.Failure = run.FailureComputation
		rec.Reason = fmt.Sprintf("candidate selection: %v", err)
		log.Warn("candidate selection failed", zap.Error(err))
		return a.finish(ctx, out, started)
	}
	rec.Candidate = out.Candidate.Theta

	tester := safety.NewTester(a.provider, trees,
		safety.WithTolerance(spec.Tolerance),
		safety.WithParallel(spec.Parallel),
		safety.WithLogger(log))
	result, err := tester.Run(ctx, safe, out.Candidate.Theta)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		rec.Failure = run.FailureComputation
		rec.Reason = fmt.Sprintf("safety test: %v", err)
		log.Warn("safety test could not be computed", zap.Error(err))
		return a.finish(ctx, out, started)
	}
	out.Safety = result
	for _, c := range result.Constraints {
		report := run.ConstraintReport{
			Constraint: c.Constraint,
			Comparison: string(c.Comparison),
			Lower:      run.Bound(c.Bound.Lower),
			Upper:      run.Bound(c.Bound.Upper),
			Passed:     c.Passed,
		}
		if c.HasValue {
			v := c.Value
			report.Value = &v
		}
		rec.Constraints = append(rec.Constraints, report)
	}
	if result.Passed {
		out.Passed = true
		out.Solution = out.Candidate.Theta
		rec.Passed = true
		rec.Solution = out.Solution
	} else {
		rec.Failure = run.FailureConstraint
		rec.Reason = failedConstraints(result)
	}
	return a.finish(ctx, out, started)
}

func (a *Algorithm) finish(ctx context.Context, out *Outcome, started time.Time) (*Outcome, error) {
	rec := out.Record
	rec.Duration = time.Since(started)
	a.log.Info("run finished",
		zap.String("run_id", rec.ID.String()),
		zap.Bool("passed", rec.Passed),
		zap.String("failure", string(rec.Failure)),
		zap.Duration("duration", rec.Duration))
	if a.runs != nil {
		if err := a.runs.SaveRun(ctx, rec); err != nil {
			return out, fmt.Errorf("save run %s: %w", rec.ID, err)
		}
	}
	return out, nil
}

func (a *Algorithm) initialTheta(ctx context.Context, spec Spec, cand *dataset.Dataset) ([]float64, error) {
	if len(spec.InitialTheta) > 0 {
		if n := a.provider.NumParams(cand); len(spec.InitialTheta) != n {
			return nil, fmt.Errorf("initial solution has %d parameters, %s needs %d", len(spec.InitialTheta), a.provider.Name(), n)
		}
		return append([]float64(nil), spec.InitialTheta...), nil
	}
	if solver, ok := a.provider.(ports.InitialSolver); ok {
		theta, err := solver.InitialSolution(ctx, cand)
		if err == nil {
			return theta, nil
		}
		a.log.Debug("initial solver failed, starting from zero", zap.Error(err))
	}
	return make([]float64, a.provider.NumParams(cand)), nil
}

func failedConstraints(r *safety.Result) string {
	var failed []string
	for _, c := range r.Constraints {
		if !c.Passed {
			failed = append(failed, c.Constraint)
		}
	}
	return fmt.Sprintf("%d constraint(s) failed the safety test: %q", len(failed), failed)
}
