package parsetree

import (
	"math"
	"strconv"

	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
)

// NodeKind is the variant tag of a Node
type NodeKind int

const (
	ConstantNode NodeKind = iota
	BaseNode
	MEDBaseNode
	CVaRBaseNode
	InternalNode
)

func (k NodeKind) String() string {
	switch k {
	case ConstantNode:
		return "constant"
	case BaseNode:
		return "base"
	case MEDBaseNode:
		return "med_base"
	case CVaRBaseNode:
		return "cvar_base"
	case InternalNode:
		return "internal"
	}
	return "unknown"
}

// Node is one vertex of a constraint parse tree. Which fields are meaningful
// depends on Kind:
//
//	ConstantNode         Value
//	Base/MED/CVaR nodes  Statistic, Conditions, Method, DeltaLower, DeltaUpper
//	InternalNode         Op, Left, Right (Right is nil for unary operators)
//
// Lower and Upper hold the most recently propagated bound.
type Node struct {
	Kind  NodeKind
	Name  string
	Index int

	Lower float64
	Upper float64

	WillLower bool
	WillUpper bool

	Value    float64
	HasValue bool

	Op    Operator
	Left  *Node
	Right *Node

	Statistic  string
	Conditions []dataset.Condition
	Method     bounds.Method
	DeltaLower float64
	DeltaUpper float64
}

func newConstant(v float64) *Node {
	return &Node{
		Kind:     ConstantNode,
		Name:     formatNumber(v),
		Value:    v,
		HasValue: true,
		Lower:    v,
		Upper:    v,
	}
}

func newBase(kind NodeKind, statistic string, conds []dataset.Condition) *Node {
	if len(conds) > 0 {
		conds = dataset.SortConditions(conds)
	}
	n := &Node{Kind: kind, Statistic: statistic, Conditions: conds}
	n.Name = leafName(statistic, conds)
	n.clear()
	return n
}

func newInternal(op Operator, left, right *Node) *Node {
	n := &Node{Kind: InternalNode, Op: op, Left: left, Right: right, Name: op.Symbol()}
	n.clear()
	return n
}

// leafName is the canonical cache key of a statistic leaf
func leafName(statistic string, conds []dataset.Condition) string {
	if len(conds) == 0 {
		return statistic
	}
	return statistic + " | [" + dataset.ConditionsKey(conds) + "]"
}

// IsLeaf reports whether the node has no children
func (n *Node) IsLeaf() bool {
	return n.Kind != InternalNode
}

// IsBase reports whether the node is a sampled statistic
func (n *Node) IsBase() bool {
	return n.Kind == BaseNode || n.Kind == MEDBaseNode || n.Kind == CVaRBaseNode
}

// Children returns the operands of an internal node in order
func (n *Node) Children() []*Node {
	switch {
	case n.Kind != InternalNode:
		return nil
	case n.Right == nil:
		return []*Node{n.Left}
	default:
		return []*Node{n.Left, n.Right}
	}
}

// Bound returns the node's current interval
func (n *Node) Bound() bounds.Interval {
	return bounds.Interval{Lower: n.Lower, Upper: n.Upper}
}

// clear resets value-level state; constants keep their value
func (n *Node) clear() {
	if n.Kind == ConstantNode {
		n.Lower, n.Upper = n.Value, n.Value
		return
	}
	n.Lower, n.Upper = math.Inf(-1), math.Inf(1)
	n.Value, n.HasValue = 0, false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
