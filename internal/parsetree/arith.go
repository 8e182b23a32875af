package parsetree

import (
	"fmt"
	"math"

	"goseldon/internal/bounds"
)

// Apply combines operand intervals under op. Unary operators ignore b.
func Apply(op Operator, a, b bounds.Interval) (bounds.Interval, error) {
	switch op {
	case OpAdd:
		return bounds.Interval{Lower: a.Lower + b.Lower, Upper: a.Upper + b.Upper}, nil
	case OpSub:
		return bounds.Interval{Lower: a.Lower - b.Upper, Upper: a.Upper - b.Lower}, nil
	case OpMult:
		return multiply(a, b), nil
	case OpDiv:
		if b.Lower <= 0 && b.Upper >= 0 {
			return bounds.Unbounded(), fmt.Errorf("divisor [%g, %g] contains zero", b.Lower, b.Upper)
		}
		return multiply(a, bounds.Interval{Lower: 1 / b.Upper, Upper: 1 / b.Lower}), nil
	case OpPow:
		return power(a, b)
	case OpExp:
		return bounds.Interval{Lower: math.Exp(a.Lower), Upper: math.Exp(a.Upper)}, nil
	case OpAbs:
		return absolute(a), nil
	case OpMin:
		return bounds.Interval{Lower: math.Min(a.Lower, b.Lower), Upper: math.Min(a.Upper, b.Upper)}, nil
	case OpMax:
		return bounds.Interval{Lower: math.Max(a.Lower, b.Lower), Upper: math.Max(a.Upper, b.Upper)}, nil
	}
	return bounds.Unbounded(), fmt.Errorf("unknown operator %v", op)
}

// mulExt treats 0*inf as 0, which is the limit for bounded quantities
func mulExt(x, y float64) float64 {
	if x == 0 || y == 0 {
		return 0
	}
	return x * y
}

func multiply(a, b bounds.Interval) bounds.Interval {
	c := [4]float64{
		mulExt(a.Lower, b.Lower),
		mulExt(a.Lower, b.Upper),
		mulExt(a.Upper, b.Lower),
		mulExt(a.Upper, b.Upper),
	}
	out := bounds.Interval{Lower: c[0], Upper: c[0]}
	for _, v := range c[1:] {
		out.Lower = math.Min(out.Lower, v)
		out.Upper = math.Max(out.Upper, v)
	}
	return out
}

func absolute(a bounds.Interval) bounds.Interval {
	switch {
	case a.Lower >= 0:
		return a
	case a.Upper <= 0:
		return bounds.Interval{Lower: -a.Upper, Upper: -a.Lower}
	default:
		return bounds.Interval{Lower: 0, Upper: math.Max(-a.Lower, a.Upper)}
	}
}

func power(base, exp bounds.Interval) (bounds.Interval, error) {
	if exp.Lower == exp.Upper {
		return powerPoint(base, exp.Lower)
	}
	if base.Lower <= 0 {
		return bounds.Unbounded(), fmt.Errorf("base [%g, %g] must be positive for an interval exponent", base.Lower, base.Upper)
	}
	c := [4]float64{
		math.Pow(base.Lower, exp.Lower),
		math.Pow(base.Lower, exp.Upper),
		math.Pow(base.Upper, exp.Lower),
		math.Pow(base.Upper, exp.Upper),
	}
	out := bounds.Interval{Lower: c[0], Upper: c[0]}
	for _, v := range c[1:] {
		if math.IsNaN(v) {
			return bounds.Unbounded(), fmt.Errorf("power is undefined on [%g, %g]", base.Lower, base.Upper)
		}
		out.Lower = math.Min(out.Lower, v)
		out.Upper = math.Max(out.Upper, v)
	}
	return out, nil
}

func powerPoint(base bounds.Interval, p float64) (bounds.Interval, error) {
	switch {
	case p == 0:
		return bounds.Interval{Lower: 1, Upper: 1}, nil
	case p < 0 && p == math.Trunc(p):
		if base.Lower <= 0 && base.Upper >= 0 {
			return bounds.Unbounded(), fmt.Errorf("negative power of [%g, %g] which contains zero", base.Lower, base.Upper)
		}
		pos, err := powerPoint(base, -p)
		if err != nil {
			return pos, err
		}
		return bounds.Interval{Lower: 1 / pos.Upper, Upper: 1 / pos.Lower}, nil
	case p == math.Trunc(p) && math.Mod(p, 2) == 0:
		a := absolute(base)
		return bounds.Interval{Lower: math.Pow(a.Lower, p), Upper: math.Pow(a.Upper, p)}, nil
	case p == math.Trunc(p):
		return bounds.Interval{Lower: math.Pow(base.Lower, p), Upper: math.Pow(base.Upper, p)}, nil
	}
	if base.Lower < 0 {
		return bounds.Unbounded(), fmt.Errorf("fractional power %g of [%g, %g] which may be negative", p, base.Lower, base.Upper)
	}
	if p > 0 {
		return bounds.Interval{Lower: math.Pow(base.Lower, p), Upper: math.Pow(base.Upper, p)}, nil
	}
	if base.Lower == 0 {
		return bounds.Unbounded(), fmt.Errorf("negative power %g of an interval touching zero", p)
	}
	return bounds.Interval{Lower: math.Pow(base.Upper, p), Upper: math.Pow(base.Lower, p)}, nil
}

// applyScalar is the point-value counterpart of Apply
func applyScalar(op Operator, a, b float64) (float64, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMult:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return math.NaN(), fmt.Errorf("division by zero")
		}
		return a / b, nil
	case OpPow:
		v := math.Pow(a, b)
		if math.IsNaN(v) {
			return v, fmt.Errorf("%g ** %g is undefined", a, b)
		}
		return v, nil
	case OpExp:
		return math.Exp(a), nil
	case OpAbs:
		return math.Abs(a), nil
	case OpMin:
		return math.Min(a, b), nil
	case OpMax:
		return math.Max(a, b), nil
	}
	return math.NaN(), fmt.Errorf("unknown operator %v", op)
}
