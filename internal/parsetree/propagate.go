package parsetree

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/ports"
)

// Pass is one evaluation of the tree on a data split at a parameter vector
type Pass struct {
	Mode     bounds.Mode
	Data     *dataset.Dataset
	Theta    []float64
	Provider ports.StatisticProvider
	// NSafety is the size of the safety split that predicted bounds are
	// sized for. Zero sizes bounds for the data at hand.
	NSafety int
	// Inflation widens predicted bounds; zero means bounds.DefaultInflation
	Inflation float64
}

// baseEntry is the shared cache of all occurrences of one leaf
type baseEntry struct {
	name      string
	kind      NodeKind
	statistic string
	conds     []dataset.Condition
	method    bounds.Method
	manual    bounds.Interval

	willLower  bool
	willUpper  bool
	deltaLower float64
	deltaUpper float64
	nodes      []*Node

	// split-level
	masked *dataset.Dataset
	pairA  *dataset.Dataset
	pairB  *dataset.Dataset

	// value-level
	theta     []float64
	samples   []float64
	value     float64
	hasValue  bool
	bound     bounds.Interval
	boundMode bounds.Mode
	hasBound  bool
}

func (e *baseEntry) clearValues() {
	e.theta = nil
	e.samples = nil
	e.value, e.hasValue = 0, false
	e.bound, e.hasBound = bounds.Unbounded(), false
}

func (e *baseEntry) clearSplit() {
	e.masked, e.pairA, e.pairB = nil, nil, nil
	e.clearValues()
}

// PropagateBounds computes the root interval for the pass. Sides that are
// not needed stay infinite.
func (t *Tree) PropagateBounds(ctx context.Context, pass Pass) (bounds.Interval, error) {
	if err := t.begin(pass); err != nil {
		return bounds.Unbounded(), err
	}
	if err := t.propagate(ctx, t.root, pass); err != nil {
		return bounds.Unbounded(), err
	}
	t.log.Debug("propagated bounds",
		zap.String("constraint", t.constraint),
		zap.Stringer("mode", pass.Mode),
		zap.Float64("lower", t.root.Lower),
		zap.Float64("upper", t.root.Upper))
	return t.root.Bound(), nil
}

// begin validates the pass and drops caches that no longer apply
func (t *Tree) begin(pass Pass) error {
	if pass.Provider == nil {
		return fmt.Errorf("no statistic provider")
	}
	if pass.Data == nil || pass.Data.Len() == 0 {
		return fmt.Errorf("%w: empty data split", core.ErrInsufficientData)
	}
	if pass.Data != t.preparedFor {
		for _, e := range t.entries {
			e.clearSplit()
		}
		t.preparedFor = pass.Data
	}
	for _, e := range t.entries {
		if e.hasValue && !sameTheta(e.theta, pass.Theta) {
			e.clearValues()
		}
	}
	return nil
}

func sameTheta(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Tree) propagate(ctx context.Context, n *Node, pass Pass) error {
	switch {
	case n.Kind == ConstantNode:
		n.Lower, n.Upper = n.Value, n.Value
		return nil
	case n.IsBase():
		e := t.entries[n.Name]
		if err := t.boundEntry(ctx, e, pass); err != nil {
			return err
		}
		n.Lower, n.Upper = e.bound.Lower, e.bound.Upper
		n.Value, n.HasValue = e.value, e.hasValue
		return nil
	}

	var a, b bounds.Interval
	if err := t.propagate(ctx, n.Left, pass); err != nil {
		return err
	}
	a = n.Left.Bound()
	if n.Right != nil {
		if err := t.propagate(ctx, n.Right, pass); err != nil {
			return err
		}
		b = n.Right.Bound()
	}
	iv, err := Apply(n.Op, a, b)
	if err != nil {
		return core.NewBoundError(fmt.Sprintf("node %d (%s)", n.Index, n.Name), "%v", err)
	}
	n.Lower, n.Upper = iv.Lower, iv.Upper
	return nil
}

func (t *Tree) boundEntry(ctx context.Context, e *baseEntry, pass Pass) error {
	if e.hasBound && e.boundMode == pass.Mode {
		return nil
	}
	if e.method == bounds.Manual {
		e.bound, e.boundMode, e.hasBound = e.manual, pass.Mode, true
		return nil
	}
	if err := t.sampleEntry(ctx, e, pass); err != nil {
		return err
	}

	datasize := len(e.samples)
	if pass.Mode == bounds.Predict && pass.NSafety > 0 {
		datasize = int(math.Round(float64(len(e.samples)) / float64(pass.Data.Len()) * float64(pass.NSafety)))
	}

	var iv bounds.Interval
	var err error
	if e.kind == CVaRBaseNode {
		iv, err = t.cvarBound(e, pass, datasize)
	} else {
		req := bounds.Request{
			Samples:    e.samples,
			Datasize:   datasize,
			DeltaLower: e.deltaLower,
			DeltaUpper: e.deltaUpper,
			WantLower:  e.willLower,
			WantUpper:  e.willUpper,
			Inflation:  pass.Inflation,
		}
		if rp, ok := pass.Provider.(ports.RangeProvider); ok {
			req.RangeLo, req.RangeHi, req.HasRange = rp.StatisticRange(e.statistic)
		}
		iv, err = bounds.Calculate(e.method, pass.Mode, req)
	}
	if err != nil {
		return core.NewBoundError(e.name, "%v", err)
	}
	e.bound, e.boundMode, e.hasBound = iv, pass.Mode, true
	return nil
}

func (t *Tree) cvarBound(e *baseEntry, pass Pass, datasize int) (bounds.Interval, error) {
	preds, err := pass.Provider.Predict(pass.Theta, e.masked.Features)
	if err != nil {
		return bounds.Unbounded(), err
	}
	yLo, yHi := e.masked.LabelBounds()
	pLo, _ := stats.Min(preds)
	pHi, _ := stats.Max(preds)
	b := math.Max((pHi-yLo)*(pHi-yLo), (yHi-pLo)*(yHi-pLo))
	if maxZ, _ := stats.Max(e.samples); maxZ > b {
		b = maxZ
	}
	return bounds.CalculateCVaR(pass.Mode, bounds.CVaRRequest{
		Samples:    e.samples,
		Datasize:   datasize,
		Alpha:      t.cfg.cvarAlpha,
		A:          0,
		B:          b,
		DeltaLower: e.deltaLower,
		DeltaUpper: e.deltaUpper,
		WantLower:  e.willLower,
		WantUpper:  e.willUpper,
		Inflation:  pass.Inflation,
	})
}

// sampleEntry fills the per-sample vector and point estimate of a leaf
func (t *Tree) sampleEntry(ctx context.Context, e *baseEntry, pass Pass) error {
	if e.hasValue {
		return nil
	}
	if err := t.prepareEntry(e, pass.Data); err != nil {
		return err
	}

	switch e.kind {
	case BaseNode:
		value, samples, err := pass.Provider.EvaluateStatistic(ctx, e.statistic, e.masked, pass.Theta)
		if err != nil {
			if errors.Is(err, core.ErrUnsupportedStatistic) {
				return err
			}
			return core.NewBoundError(e.name, "%v", err)
		}
		e.value, e.samples = value, samples
	case MEDBaseNode:
		samples, err := medSamples(pass.Provider, pass.Theta, e.pairA, e.pairB)
		if err != nil {
			return core.NewBoundError(e.name, "%v", err)
		}
		e.samples = samples
		e.value, _ = stats.Mean(samples)
	case CVaRBaseNode:
		preds, err := pass.Provider.Predict(pass.Theta, e.masked.Features)
		if err != nil {
			return core.NewBoundError(e.name, "%v", err)
		}
		samples := make([]float64, len(preds))
		for i, p := range preds {
			d := p - e.masked.Labels[i]
			samples[i] = d * d
		}
		e.samples = samples
		if e.value, err = bounds.CVaR(samples, t.cfg.cvarAlpha); err != nil {
			return core.NewBoundError(e.name, "%v", err)
		}
	}
	if len(e.samples) == 0 {
		return core.NewBoundError(e.name, "no samples")
	}
	e.theta = append([]float64(nil), pass.Theta...)
	e.hasValue = true
	return nil
}

// prepareEntry masks or pairs the split once per data split
func (t *Tree) prepareEntry(e *baseEntry, data *dataset.Dataset) error {
	switch e.kind {
	case MEDBaseNode:
		if e.pairA != nil {
			return nil
		}
		if data.Meta.Regime == dataset.RegimeRL {
			return core.NewBoundError(e.name, "needs a supervised dataset")
		}
		a, b, err := pairGroups(data, t.cfg.seed)
		if err != nil {
			return core.NewBoundError(e.name, "%v", err)
		}
		e.pairA, e.pairB = a, b
	default:
		if e.masked != nil {
			return nil
		}
		if e.kind == CVaRBaseNode && data.Meta.Regime == dataset.RegimeRL {
			return core.NewBoundError(e.name, "needs a supervised dataset")
		}
		masked, err := data.Mask(e.conds)
		if err != nil {
			return core.NewBoundError(e.name, "%v", err)
		}
		if masked.Len() == 0 {
			return core.NewBoundError(e.name, "mask selects no datapoints")
		}
		e.masked = masked
	}
	return nil
}

// pairGroups splits rows on the first sensitive column (1 versus anything
// else) and downsamples the larger group to the size of the smaller one
func pairGroups(data *dataset.Dataset, seed int64) (*dataset.Dataset, *dataset.Dataset, error) {
	if len(data.Meta.SensitiveNames) == 0 {
		return nil, nil, fmt.Errorf("dataset has no sensitive attributes")
	}
	var ia, ib []int
	for i, row := range data.Sensitive {
		if row[0] == 1 {
			ia = append(ia, i)
		} else {
			ib = append(ib, i)
		}
	}
	if len(ia) == 0 || len(ib) == 0 {
		return nil, nil, fmt.Errorf("both groups of %q must be non-empty (got %d and %d)",
			data.Meta.SensitiveNames[0], len(ia), len(ib))
	}
	rng := rand.New(rand.NewSource(seed))
	n := len(ia)
	if len(ib) < n {
		n = len(ib)
	}
	ia, ib = downsample(rng, ia, n), downsample(rng, ib, n)
	return data.Subset(ia), data.Subset(ib), nil
}

func downsample(rng *rand.Rand, idx []int, n int) []int {
	if len(idx) == n {
		return idx
	}
	out := make([]int, n)
	for i, j := range rng.Perm(len(idx))[:n] {
		out[i] = idx[j]
	}
	return out
}

// medSamples differences the prediction errors of paired rows
func medSamples(p ports.StatisticProvider, theta []float64, a, b *dataset.Dataset) ([]float64, error) {
	predA, err := p.Predict(theta, a.Features)
	if err != nil {
		return nil, err
	}
	predB, err := p.Predict(theta, b.Features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(predA))
	for i := range out {
		out[i] = (predA[i] - a.Labels[i]) - (predB[i] - b.Labels[i])
	}
	return out, nil
}
