// Package parsetree parses behavioral constraints such as
// "abs((FPR | [M]) - (FPR | [F])) - 0.1 <= 0" into trees whose leaves are
// statistics of a model, and propagates high-confidence bounds from the
// leaves to the root.
//
// A Tree is not safe for concurrent use. Use Clone to obtain an independent
// copy per goroutine.
package parsetree

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
)

// DefaultDelta is the failure probability used when none is configured
const DefaultDelta = 0.05

// DefaultCVaRAlpha is the tail fraction of CVaRSQE leaves
const DefaultCVaRAlpha = 0.1

type options struct {
	delta       float64
	regime      dataset.Regime
	subRegime   dataset.SubRegime
	statistics  []string
	method      bounds.Method
	leafMethods map[string]bounds.Method
	manual      map[string]bounds.Interval
	allocator   DeltaAllocator
	seed        int64
	cvarAlpha   float64
	logger      *zap.Logger
}

// Option configures a Tree
type Option func(*options)

// WithDelta sets the total failure probability of the constraint
func WithDelta(delta float64) Option {
	return func(o *options) { o.delta = delta }
}

// WithRegime restricts the accepted statistics to a regime's measure functions
func WithRegime(regime dataset.Regime, sub dataset.SubRegime) Option {
	return func(o *options) { o.regime, o.subRegime = regime, sub }
}

// WithStatistics accepts extra statistic names served by a custom provider
func WithStatistics(names ...string) Option {
	return func(o *options) { o.statistics = append(o.statistics, names...) }
}

// WithBoundMethod sets the default bound method of every leaf
func WithBoundMethod(m bounds.Method) Option {
	return func(o *options) { o.method = m }
}

// WithLeafBoundMethod overrides the bound method of one leaf. key is either
// the full leaf name ("FPR | [M]") or a bare statistic name.
func WithLeafBoundMethod(key string, m bounds.Method) Option {
	return func(o *options) {
		if o.leafMethods == nil {
			o.leafMethods = make(map[string]bounds.Method)
		}
		o.leafMethods[key] = m
	}
}

// WithManualBound fixes a leaf's bound; the leaf is never sampled and
// consumes no delta
func WithManualBound(key string, lower, upper float64) Option {
	return func(o *options) {
		if o.manual == nil {
			o.manual = make(map[string]bounds.Interval)
		}
		o.manual[key] = bounds.Interval{Lower: lower, Upper: upper}
	}
}

// WithDeltaAllocator replaces the default EqualSplit
func WithDeltaAllocator(a DeltaAllocator) Option {
	return func(o *options) { o.allocator = a }
}

// WithSeed seeds the row pairing of MED_MF leaves
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithCVaRAlpha sets the tail fraction of CVaRSQE leaves
func WithCVaRAlpha(alpha float64) Option {
	return func(o *options) { o.cvarAlpha = alpha }
}

// WithLogger attaches a logger; nil disables logging
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Tree is a parsed, normalised constraint `root <= 0` or `root == 0`
type Tree struct {
	constraint string
	comparison Comparison
	root       *Node
	opts       []Option
	cfg        options
	log        *zap.Logger

	entries map[string]*baseEntry
	order   []string

	// split-level state
	preparedFor *dataset.Dataset
}

// New parses constraint and prepares its leaves
func New(constraint string, opts ...Option) (*Tree, error) {
	cfg := options{
		delta:     DefaultDelta,
		method:    bounds.TTest,
		allocator: EqualSplit{},
		cvarAlpha: DefaultCVaRAlpha,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !(cfg.delta > 0 && cfg.delta < 1) {
		return nil, fmt.Errorf("delta must be in (0,1), got %g", cfg.delta)
	}
	if !(cfg.cvarAlpha > 0 && cfg.cvarAlpha < 1) {
		return nil, fmt.Errorf("cvar alpha must be in (0,1), got %g", cfg.cvarAlpha)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	known := knownStatistics(cfg.regime, cfg.subRegime, cfg.statistics)
	root, cmp, err := parseConstraint(constraint, known)
	if err != nil {
		return nil, err
	}

	t := &Tree{
		constraint: constraint,
		comparison: cmp,
		root:       root,
		opts:       opts,
		cfg:        cfg,
		log:        cfg.logger.With(zap.String("component", "parsetree")),
		entries:    make(map[string]*baseEntry),
	}
	assignDirections(root, cmp == EqualZero, true)
	index := 0
	t.walk(root, func(n *Node) {
		n.Index = index
		index++
	})
	if err := t.buildEntries(); err != nil {
		return nil, err
	}
	if err := t.allocateDelta(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNew is New for constraints known to be valid
func MustNew(constraint string, opts ...Option) *Tree {
	t, err := New(constraint, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children() {
		t.walk(c, fn)
	}
}

func (t *Tree) buildEntries() error {
	var err error
	t.walk(t.root, func(n *Node) {
		if err != nil || !n.IsBase() {
			return
		}
		e, ok := t.entries[n.Name]
		if !ok {
			e = &baseEntry{
				name:      n.Name,
				kind:      n.Kind,
				statistic: n.Statistic,
				conds:     n.Conditions,
				method:    t.methodFor(n),
			}
			if iv, ok := t.manualFor(n); ok {
				e.method = bounds.Manual
				e.manual = iv
			} else if e.method == bounds.Manual {
				err = core.NewParseError(t.constraint, -1, "leaf %q uses manual bounds but none were given", n.Name)
				return
			}
			if e.kind != BaseNode && e.method == bounds.Hoeffding {
				err = core.NewParseError(t.constraint, -1, "leaf %q does not support the hoeffding bound", n.Name)
				return
			}
			t.entries[n.Name] = e
			t.order = append(t.order, n.Name)
		}
		e.willLower = e.willLower || n.WillLower
		e.willUpper = e.willUpper || n.WillUpper
		e.nodes = append(e.nodes, n)
		n.Method = e.method
	})
	return err
}

func (t *Tree) methodFor(n *Node) bounds.Method {
	if m, ok := t.cfg.leafMethods[n.Name]; ok {
		return m
	}
	if m, ok := t.cfg.leafMethods[n.Statistic]; ok {
		return m
	}
	return t.cfg.method
}

func (t *Tree) manualFor(n *Node) (bounds.Interval, bool) {
	if iv, ok := t.cfg.manual[n.Name]; ok {
		return iv, true
	}
	iv, ok := t.cfg.manual[n.Statistic]
	return iv, ok
}

func (t *Tree) allocateDelta() error {
	var sampled []string
	for _, name := range t.order {
		if t.entries[name].method != bounds.Manual {
			sampled = append(sampled, name)
		}
	}
	shares, err := t.cfg.allocator.Allocate(t.cfg.delta, sampled)
	if err != nil {
		return err
	}
	if len(shares) != len(sampled) {
		return fmt.Errorf("delta allocator returned %d shares for %d leaves", len(shares), len(sampled))
	}
	for i, name := range sampled {
		e := t.entries[name]
		switch {
		case e.willLower && e.willUpper:
			e.deltaLower, e.deltaUpper = shares[i]/2, shares[i]/2
		case e.willLower:
			e.deltaLower = shares[i]
		default:
			e.deltaUpper = shares[i]
		}
		for _, n := range e.nodes {
			n.DeltaLower, n.DeltaUpper = e.deltaLower, e.deltaUpper
		}
	}
	return nil
}

// Constraint returns the source string
func (t *Tree) Constraint() string { return t.constraint }

// Comparison reports whether the root must be <= 0 or == 0
func (t *Tree) Comparison() Comparison { return t.comparison }

// Root returns the normalised root node
func (t *Tree) Root() *Node { return t.root }

// Delta returns the total failure probability
func (t *Tree) Delta() float64 { return t.cfg.delta }

// Nodes returns every node in pre-order
func (t *Tree) Nodes() []*Node {
	var out []*Node
	t.walk(t.root, func(n *Node) { out = append(out, n) })
	return out
}

// Leaf describes one unique statistic leaf
type Leaf struct {
	Name       string
	Statistic  string
	Kind       NodeKind
	Conditions []dataset.Condition
	Method     bounds.Method
	WillLower  bool
	WillUpper  bool
	DeltaLower float64
	DeltaUpper float64
	Lower      float64
	Upper      float64
}

// Leaves lists unique statistic leaves in order of first appearance
func (t *Tree) Leaves() []Leaf {
	out := make([]Leaf, 0, len(t.order))
	for _, name := range t.order {
		e := t.entries[name]
		l := Leaf{
			Name:       e.name,
			Statistic:  e.statistic,
			Kind:       e.kind,
			Conditions: e.conds,
			Method:     e.method,
			WillLower:  e.willLower,
			WillUpper:  e.willUpper,
			DeltaLower: e.deltaLower,
			DeltaUpper: e.deltaUpper,
			Lower:      math.Inf(-1),
			Upper:      math.Inf(1),
		}
		if e.hasBound {
			l.Lower, l.Upper = e.bound.Lower, e.bound.Upper
		}
		out = append(out, l)
	}
	return out
}

// Reset clears every computed value and bound. Topology, directions, delta
// shares and split-level preparation are kept.
func (t *Tree) Reset() {
	t.walk(t.root, func(n *Node) { n.clear() })
	for _, e := range t.entries {
		e.clearValues()
	}
}

// Clone returns an independent tree for the same constraint and options
func (t *Tree) Clone() *Tree {
	c, err := New(t.constraint, t.opts...)
	if err != nil {
		// the same input parsed once already
		panic(fmt.Sprintf("parsetree: clone of %q failed: %v", t.constraint, err))
	}
	return c
}
