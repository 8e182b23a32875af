package parsetree

import (
	"fmt"
	"math"
	"strings"
)

// Expression renders the normalised constraint in infix form
func (t *Tree) Expression() string {
	return infix(t.root) + " " + string(t.comparison) + " 0"
}

func infix(n *Node) string {
	switch n.Kind {
	case ConstantNode:
		return n.Name
	case InternalNode:
		info := operatorTable[n.Op]
		if info.infix {
			return "(" + infix(n.Left) + " " + info.symbol + " " + infix(n.Right) + ")"
		}
		args := make([]string, 0, 2)
		for _, c := range n.Children() {
			args = append(args, infix(c))
		}
		return info.symbol + "(" + strings.Join(args, ", ") + ")"
	}
	if len(n.Conditions) > 0 {
		return "(" + n.Name + ")"
	}
	return n.Name
}

// Render returns one line per node, indented by depth, with the node's
// index, name, current bound and (for leaves) delta shares. Sides that are
// not needed print as "_".
func (t *Tree) Render() string {
	var b strings.Builder
	t.render(&b, t.root, 0)
	return b.String()
}

func (t *Tree) render(b *strings.Builder, n *Node, depth int) {
	fmt.Fprintf(b, "%s[%d] %s  [%s, %s]", strings.Repeat("  ", depth), n.Index, n.Name,
		side(n.Lower, n.WillLower), side(n.Upper, n.WillUpper))
	if n.IsBase() {
		fmt.Fprintf(b, "  method=%s delta=(%s, %s)", n.Method,
			side(n.DeltaLower, n.WillLower), side(n.DeltaUpper, n.WillUpper))
	}
	b.WriteByte('\n')
	for _, c := range n.Children() {
		t.render(b, c, depth+1)
	}
}

func side(v float64, needed bool) string {
	switch {
	case !needed:
		return "_"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.4g", v)
}

func (t *Tree) String() string {
	return t.Expression()
}
