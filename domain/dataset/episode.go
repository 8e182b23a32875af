package dataset

import "fmt"

// Episode is one trajectory collected by a behavior policy over a tabular
// state space.
type Episode struct {
	Observations []int     `json:"observations"`
	Actions      []int     `json:"actions"`
	Rewards      []float64 `json:"rewards"`
	// ActionProbs is the behavior policy's probability of each chosen action.
	ActionProbs []float64 `json:"action_probs"`
}

// Validate checks that the per-step slices line up
func (e Episode) Validate() error {
	n := len(e.Actions)
	if len(e.Observations) != n || len(e.Rewards) != n || len(e.ActionProbs) != n {
		return fmt.Errorf("misaligned steps: obs=%d actions=%d rewards=%d probs=%d",
			len(e.Observations), n, len(e.Rewards), len(e.ActionProbs))
	}
	for t, p := range e.ActionProbs {
		if p <= 0 || p > 1 {
			return fmt.Errorf("behavior probability %g at step %d outside (0,1]", p, t)
		}
	}
	return nil
}

// DiscountedReturn sums rewards weighted by gamma^t
func DiscountedReturn(rewards []float64, gamma float64) float64 {
	total, weight := 0.0, 1.0
	for _, r := range rewards {
		total += weight * r
		weight *= gamma
	}
	return total
}
