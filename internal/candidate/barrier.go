package candidate

import (
	"fmt"
	"math"
)

// Barrier turns a constraint violation (positive means violated) into a
// penalty added to the objective
type Barrier string

const (
	Softplus    Barrier = "softplus"
	HingeSquare Barrier = "hinge2"
	Hard        Barrier = "hard"
)

// Defaults for the barrier shape
const (
	DefaultWeight    = 100.0
	DefaultSharpness = 50.0
	// hardPenalty dominates any plausible primary objective
	hardPenalty = 1e5
	// maxViolation replaces infinite violations so the objective stays finite
	maxViolation = 1e6
)

// ParseBarrier validates a barrier name; empty means Softplus
func ParseBarrier(s string) (Barrier, error) {
	switch Barrier(s) {
	case "":
		return Softplus, nil
	case Softplus, HingeSquare, Hard:
		return Barrier(s), nil
	}
	return "", fmt.Errorf("unknown barrier %q", s)
}

// Penalty evaluates the barrier at violation v
func (b Barrier) Penalty(v, weight, sharpness float64) float64 {
	if math.IsInf(v, 1) || v > maxViolation {
		v = maxViolation
	}
	if math.IsInf(v, -1) || v < -maxViolation {
		v = -maxViolation
	}
	switch b {
	case HingeSquare:
		if v <= 0 {
			return 0
		}
		return weight * v * v
	case Hard:
		if v <= 0 {
			return 0
		}
		return hardPenalty + v
	default:
		return weight * softplus(sharpness*v) / sharpness
	}
}

// softplus is log(1+e^x) without overflow
func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}
