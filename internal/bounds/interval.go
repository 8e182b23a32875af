package bounds

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Spread selects the standard deviation estimator of TTestMeanInterval
type Spread int

const (
	SampleSpread Spread = iota
	// PopulationSpread divides by n, as the bootstrap estimate of the
	// probability of passing does
	PopulationSpread
)

// TTestMeanInterval is the two-sided t interval on the mean of data, each side
// at level 1-delta.
func TTestMeanInterval(data []float64, delta float64, spread Spread) (Interval, error) {
	n := len(data)
	if n < 2 {
		return Unbounded(), fmt.Errorf("need at least 2 values, got %d", n)
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return Unbounded(), err
	}
	var std float64
	if spread == PopulationSpread {
		std, err = stats.StandardDeviationPopulation(data)
	} else {
		std, err = stats.StandardDeviationSample(data)
	}
	if err != nil {
		return Unbounded(), err
	}
	w := std / math.Sqrt(float64(n)) * TInv(1-delta, n-1)
	return Interval{Lower: mean - w, Upper: mean + w}, nil
}

// ClopperPearson is the exact 1-alpha binomial interval for k successes in n
// trials.
func ClopperPearson(k, n int, alpha float64) (Interval, error) {
	if n <= 0 || k < 0 || k > n {
		return Unbounded(), fmt.Errorf("invalid binomial counts k=%d n=%d", k, n)
	}
	out := Interval{Lower: 0, Upper: 1}
	if k > 0 {
		lo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		out.Lower = lo.Quantile(alpha / 2)
	}
	if k < n {
		hi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		out.Upper = hi.Quantile(1 - alpha/2)
	}
	return out, nil
}
