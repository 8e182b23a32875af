package parsetree

import (
	"context"
	"fmt"

	"goseldon/domain/core"
	"goseldon/internal/bounds"
)

// Evaluate computes the point value of the normalised expression, using the
// leaves' point estimates. Pass.Mode is ignored.
func (t *Tree) Evaluate(ctx context.Context, pass Pass) (float64, error) {
	if err := t.begin(pass); err != nil {
		return 0, err
	}
	return t.evaluate(ctx, t.root, pass)
}

func (t *Tree) evaluate(ctx context.Context, n *Node, pass Pass) (float64, error) {
	switch {
	case n.Kind == ConstantNode:
		return n.Value, nil
	case n.IsBase():
		e := t.entries[n.Name]
		if e.method == bounds.Manual {
			return 0, core.NewBoundError(n.Name, "manual leaves have no point estimate")
		}
		if err := t.sampleEntry(ctx, e, pass); err != nil {
			return 0, err
		}
		n.Value, n.HasValue = e.value, true
		return e.value, nil
	}

	a, err := t.evaluate(ctx, n.Left, pass)
	if err != nil {
		return 0, err
	}
	var b float64
	if n.Right != nil {
		if b, err = t.evaluate(ctx, n.Right, pass); err != nil {
			return 0, err
		}
	}
	v, err := applyScalar(n.Op, a, b)
	if err != nil {
		return 0, core.NewBoundError(fmt.Sprintf("node %d (%s)", n.Index, n.Name), "%v", err)
	}
	n.Value, n.HasValue = v, true
	return v, nil
}
