// Package safety runs the high-confidence test of a candidate on the held
// out safety split.
package safety

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/internal/parsetree"
	"goseldon/ports"
)

// DefaultTolerance is the slack allowed around zero for == constraints
const DefaultTolerance = 1e-9

// ConstraintResult is the outcome for one constraint
type ConstraintResult struct {
	Constraint string
	Comparison parsetree.Comparison
	Bound      bounds.Interval
	Passed     bool
	// Value is the point estimate of the normalised expression on the
	// safety split; HasValue is false when it is undefined there.
	Value      float64
	HasValue   bool
}

// Result aggregates every constraint; Passed iff all passed
type Result struct {
	Passed      bool
	Constraints []ConstraintResult
}

// Tester computes compute-mode bounds of each tree on the safety split
type Tester struct {
	provider  ports.StatisticProvider
	trees     []*parsetree.Tree
	tolerance float64
	parallel  bool
	log       *zap.Logger
}

// Option configures a Tester
type Option func(*Tester)

// WithTolerance sets the == 0 slack
func WithTolerance(tol float64) Option {
	return func(t *Tester) { t.tolerance = tol }
}

// WithParallel evaluates trees concurrently
func WithParallel(parallel bool) Option {
	return func(t *Tester) { t.parallel = parallel }
}

// WithLogger attaches a logger
func WithLogger(l *zap.Logger) Option {
	return func(t *Tester) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTester creates a safety tester over trees
func NewTester(provider ports.StatisticProvider, trees []*parsetree.Tree, opts ...Option) *Tester {
	t := &Tester{
		provider:  provider,
		trees:     trees,
		tolerance: DefaultTolerance,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(zap.String("component", "safety_test"))
	return t
}

// Passes applies the pass rule of a comparison to a root interval
func Passes(cmp parsetree.Comparison, iv bounds.Interval, tol float64) bool {
	if cmp == parsetree.EqualZero {
		return iv.Lower >= -tol && iv.Upper <= tol
	}
	return iv.Upper <= 0
}

// Run tests theta on data. A failing constraint is an outcome, not an
// error; errors mean a bound could not be computed.
func (t *Tester) Run(ctx context.Context, data *dataset.Dataset, theta []float64) (*Result, error) {
	results := make([]ConstraintResult, len(t.trees))
	run := func(i int) error {
		tree := t.trees[i]
		tree.Reset()
		pass := parsetree.Pass{
			Mode:     bounds.Compute,
			Data:     data,
			Theta:    theta,
			Provider: t.provider,
		}
		iv, err := tree.PropagateBounds(ctx, pass)
		if err != nil {
			return fmt.Errorf("constraint %q: %w", tree.Constraint(), err)
		}
		results[i] = ConstraintResult{
			Constraint: tree.Constraint(),
			Comparison: tree.Comparison(),
			Bound:      iv,
			Passed:     Passes(tree.Comparison(), iv, t.tolerance),
		}
		// the point value is diagnostic only and never decides the test
		v, err := tree.Evaluate(ctx, pass)
		switch {
		case err != nil:
			t.log.Debug("no point value", zap.String("constraint", tree.Constraint()), zap.Error(err))
		case !math.IsNaN(v) && !math.IsInf(v, 0):
			results[i].Value, results[i].HasValue = v, true
		}
		return nil
	}

	if t.parallel {
		g, _ := errgroup.WithContext(ctx)
		for i := range t.trees {
			i := i
			g.Go(func() error { return run(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range t.trees {
			if err := run(i); err != nil {
				return nil, err
			}
		}
	}

	out := &Result{Passed: true, Constraints: results}
	for _, r := range results {
		if !r.Passed {
			out.Passed = false
		}
		t.log.Debug("constraint tested",
			zap.String("constraint", r.Constraint),
			zap.Float64("lower", r.Bound.Lower),
			zap.Float64("upper", r.Bound.Upper),
			zap.Bool("passed", r.Passed))
	}
	return out, nil
}
