package parsetree

import "fmt"

// DeltaAllocator divides a tree's total delta among its unique sampled leaves
type DeltaAllocator interface {
	Allocate(total float64, leaves []string) ([]float64, error)
}

// EqualSplit gives each of k leaves total/k
type EqualSplit struct{}

func (EqualSplit) Allocate(total float64, leaves []string) ([]float64, error) {
	weights := make([]float64, len(leaves))
	for i := range weights {
		weights[i] = 1
	}
	return shares(total, weights)
}

// WeightedSplit divides delta proportionally to per-leaf weights. Leaves
// missing from Weights weigh 1.
type WeightedSplit struct {
	Weights map[string]float64
}

func (w WeightedSplit) Allocate(total float64, leaves []string) ([]float64, error) {
	weights := make([]float64, len(leaves))
	for i, name := range leaves {
		weights[i] = 1
		if v, ok := w.Weights[name]; ok {
			if v <= 0 {
				return nil, fmt.Errorf("weight for %q must be positive, got %g", name, v)
			}
			weights[i] = v
		}
	}
	return shares(total, weights)
}

// shares splits total proportionally; the last share absorbs the rounding
// remainder so the shares sum to total exactly
func shares(total float64, weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, nil
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	used := 0.0
	for i := 0; i < len(weights)-1; i++ {
		out[i] = total * weights[i] / sum
		used += out[i]
	}
	out[len(out)-1] = total - used
	return out, nil
}
