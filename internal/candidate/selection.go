// Package candidate searches the candidate split for a parameter vector that
// optimises the primary objective while the predicted high-confidence bounds
// of every constraint hold.
package candidate

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/internal/parsetree"
	"goseldon/ports"
)

// Config tunes candidate selection
type Config struct {
	// Primary is the statistic optimised, e.g. Mean_Squared_Error
	Primary string
	// Maximize the primary statistic instead of minimising it
	Maximize bool

	Barrier   Barrier
	Weight    float64
	Sharpness float64

	// NSafety is the size of the safety split bounds are predicted for
	NSafety   int
	Inflation float64
	// Parallel evaluates constraint trees concurrently
	Parallel bool
	// FDStep is the finite-difference step of the penalty gradient
	FDStep float64

	Hyper ports.Hyperparameters
}

// Result is the selected candidate
type Result struct {
	Theta      []float64
	Objective  float64
	Primary    float64
	Penalty    float64
	Bounds     []bounds.Interval
	Iterations int
	Status     string
}

// Selector runs candidate selection. It owns its trees for the duration of
// Select and must not be shared between goroutines.
type Selector struct {
	provider  ports.StatisticProvider
	optimizer ports.Optimizer
	trees     []*parsetree.Tree
	cfg       Config
	log       *zap.Logger
}

// NewSelector wires a selector
func NewSelector(provider ports.StatisticProvider, optimizer ports.Optimizer, trees []*parsetree.Tree, cfg Config, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Barrier == "" {
		cfg.Barrier = Softplus
	}
	if cfg.Weight <= 0 {
		cfg.Weight = DefaultWeight
	}
	if cfg.Sharpness <= 0 {
		cfg.Sharpness = DefaultSharpness
	}
	if cfg.FDStep <= 0 {
		cfg.FDStep = 1e-6
	}
	return &Selector{
		provider:  provider,
		optimizer: optimizer,
		trees:     trees,
		cfg:       cfg,
		log:       logger.With(zap.String("component", "candidate_selection")),
	}
}

// objective is one evaluation context; errors raised inside the optimizer's
// callbacks are kept here because the callbacks cannot return them
type objective struct {
	s    *Selector
	ctx  context.Context
	data *dataset.Dataset

	mu      sync.Mutex
	lastErr error
}

func (o *objective) record(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}

// Select minimises -sense*primary + sum of barrier penalties from theta0
func (s *Selector) Select(ctx context.Context, data *dataset.Dataset, theta0 []float64) (*Result, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("%w: empty candidate split", core.ErrInsufficientData)
	}
	if s.cfg.Primary == "" {
		return nil, fmt.Errorf("no primary objective configured")
	}
	o := &objective{s: s, ctx: ctx, data: data}

	start, err := o.evaluate(theta0)
	if err != nil {
		return nil, err
	}
	s.log.Debug("starting candidate selection",
		zap.Int("datapoints", data.Len()),
		zap.Int("constraints", len(s.trees)),
		zap.Float64("objective", start.Objective))

	problem := ports.Problem{
		Func: func(theta []float64) float64 {
			r, err := o.evaluate(theta)
			if err != nil {
				o.record(err)
				return math.Inf(1)
			}
			return r.Objective
		},
		Grad: func(grad, theta []float64) {
			g, err := o.gradient(theta)
			if err != nil {
				o.record(err)
				for i := range grad {
					grad[i] = math.NaN()
				}
				return
			}
			copy(grad, g)
		},
	}
	res, err := s.optimizer.Minimize(ctx, problem, theta0, s.cfg.Hyper)
	if err != nil {
		o.mu.Lock()
		last := o.lastErr
		o.mu.Unlock()
		if last != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w (last objective error: %w)", err, last)
		}
		return nil, err
	}

	final, err := o.evaluate(res.Theta)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(final.Objective) || math.IsInf(final.Objective, 0) {
		return nil, core.NewDivergenceError("objective %v at the selected candidate", final.Objective)
	}
	final.Iterations = res.Iterations
	final.Status = res.Status
	s.log.Info("candidate selected",
		zap.Float64("primary", final.Primary),
		zap.Float64("penalty", final.Penalty),
		zap.Int("iterations", final.Iterations),
		zap.String("status", final.Status))
	return final, nil
}

func (o *objective) sense() float64 {
	if o.s.cfg.Maximize {
		return 1
	}
	return -1
}

func (o *objective) evaluate(theta []float64) (*Result, error) {
	primary, _, err := o.s.provider.EvaluateStatistic(o.ctx, o.s.cfg.Primary, o.data, theta)
	if err != nil {
		return nil, err
	}
	ivs, err := o.bounds(theta)
	if err != nil {
		return nil, err
	}
	penalty := o.penalty(ivs)
	return &Result{
		Theta:     append([]float64(nil), theta...),
		Objective: -o.sense()*primary + penalty,
		Primary:   primary,
		Penalty:   penalty,
		Bounds:    ivs,
	}, nil
}

// bounds propagates predicted bounds of every tree at theta
func (o *objective) bounds(theta []float64) ([]bounds.Interval, error) {
	out := make([]bounds.Interval, len(o.s.trees))
	pass := func(i int) error {
		t := o.s.trees[i]
		t.Reset()
		iv, err := t.PropagateBounds(o.ctx, parsetree.Pass{
			Mode:      bounds.Predict,
			Data:      o.data,
			Theta:     theta,
			Provider:  o.s.provider,
			NSafety:   o.s.cfg.NSafety,
			Inflation: o.s.cfg.Inflation,
		})
		if err != nil {
			return fmt.Errorf("constraint %q: %w", t.Constraint(), err)
		}
		out[i] = iv
		return nil
	}

	if !o.s.cfg.Parallel || len(o.s.trees) < 2 {
		for i := range o.s.trees {
			if err := pass(i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	var g errgroup.Group
	for i := range o.s.trees {
		i := i
		g.Go(func() error { return pass(i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *objective) penalty(ivs []bounds.Interval) float64 {
	total := 0.0
	for i, iv := range ivs {
		total += o.s.cfg.Barrier.Penalty(Violation(o.s.trees[i].Comparison(), iv), o.s.cfg.Weight, o.s.cfg.Sharpness)
	}
	return total
}

// Violation is positive when iv does not satisfy the comparison with zero
func Violation(cmp parsetree.Comparison, iv bounds.Interval) float64 {
	if cmp == parsetree.EqualZero {
		return math.Max(iv.Upper, -iv.Lower)
	}
	return iv.Upper
}

// gradient is the analytic primary gradient plus a central-difference
// gradient of the penalty
func (o *objective) gradient(theta []float64) ([]float64, error) {
	grad, err := o.s.provider.Gradient(o.ctx, o.s.cfg.Primary, o.data, theta)
	if err != nil {
		return nil, err
	}
	if len(grad) != len(theta) {
		return nil, fmt.Errorf("%s gradient has %d entries for %d parameters", o.s.cfg.Primary, len(grad), len(theta))
	}
	out := make([]float64, len(theta))
	for i, g := range grad {
		out[i] = -o.sense() * g
	}
	if len(o.s.trees) == 0 {
		return out, nil
	}

	var penaltyErr error
	pg := fd.Gradient(nil, func(x []float64) float64 {
		ivs, err := o.bounds(x)
		if err != nil {
			penaltyErr = err
			return math.NaN()
		}
		return o.penalty(ivs)
	}, theta, &fd.Settings{Formula: fd.Central, Step: o.s.cfg.FDStep})
	if penaltyErr != nil {
		return nil, penaltyErr
	}
	for i, v := range pg {
		out[i] += v
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, core.NewDivergenceError("gradient component %d is %v", i, out[i])
		}
	}
	return out, nil
}
