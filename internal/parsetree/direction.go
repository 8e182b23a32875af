package parsetree

// assignDirections marks which sides of each node's bound are needed to
// bound the root on the requested sides.
func assignDirections(n *Node, lower, upper bool) {
	n.WillLower, n.WillUpper = lower, upper
	if n.Kind != InternalNode {
		return
	}
	switch n.Op {
	case OpAdd, OpMin, OpMax:
		assignDirections(n.Left, lower, upper)
		assignDirections(n.Right, lower, upper)
	case OpSub:
		assignDirections(n.Left, lower, upper)
		assignDirections(n.Right, upper, lower)
	case OpExp:
		assignDirections(n.Left, lower, upper)
	case OpMult:
		switch {
		case n.Left.Kind == ConstantNode:
			l, u := bySign(n.Left.Value, lower, upper)
			assignDirections(n.Left, lower, upper)
			assignDirections(n.Right, l, u)
		case n.Right.Kind == ConstantNode:
			l, u := bySign(n.Right.Value, lower, upper)
			assignDirections(n.Left, l, u)
			assignDirections(n.Right, lower, upper)
		default:
			assignBoth(n)
		}
	case OpDiv:
		switch {
		case n.Right.Kind == ConstantNode:
			l, u := bySign(n.Right.Value, lower, upper)
			assignDirections(n.Left, l, u)
			assignDirections(n.Right, lower, upper)
		case n.Left.Kind == ConstantNode:
			// c/x is decreasing in x when c > 0 on either side of zero
			l, u := bySign(-n.Left.Value, lower, upper)
			assignDirections(n.Left, lower, upper)
			assignDirections(n.Right, l, u)
		default:
			assignBoth(n)
		}
	default:
		// abs, pow: the needed side of the child depends on where it lies
		assignBoth(n)
	}
}

func assignBoth(n *Node) {
	for _, c := range n.Children() {
		assignDirections(c, true, true)
	}
}

// bySign keeps the sides for a non-negative factor and swaps them otherwise
func bySign(c float64, lower, upper bool) (bool, bool) {
	if c < 0 {
		return upper, lower
	}
	return lower, upper
}
