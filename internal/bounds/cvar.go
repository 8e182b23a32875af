package bounds

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// CVaRRequest bounds the conditional value at risk of a sample whose values
// are known to lie in [A, B]. CVaR_alpha is the mean of the upper alpha tail.
type CVaRRequest struct {
	Samples    []float64
	Datasize   int
	Alpha      float64
	A, B       float64
	DeltaLower float64
	DeltaUpper float64
	WantLower  bool
	WantUpper  bool
	Inflation  float64
}

// CVaR returns the empirical CVaR_alpha: the mean of values at or above the
// (1-alpha) percentile.
func CVaR(samples []float64, alpha float64) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("no samples")
	}
	varAlpha, err := stats.Percentile(samples, (1-alpha)*100)
	if err != nil {
		return 0, err
	}
	var tail []float64
	for _, z := range samples {
		if z >= varAlpha {
			tail = append(tail, z)
		}
	}
	if len(tail) == 0 {
		return stats.Max(samples)
	}
	return stats.Mean(tail)
}

// CalculateCVaR applies the order-statistic CVaR bounds of Thomas & Miller
// (2019, theorems 3 and 4). Predict mode scales the concentration term by
// the inflation factor.
func CalculateCVaR(mode Mode, req CVaRRequest) (Interval, error) {
	out := Unbounded()
	if len(req.Samples) == 0 {
		return out, fmt.Errorf("no samples")
	}
	if req.Datasize < 1 {
		return out, nil
	}
	if req.Alpha <= 0 || req.Alpha >= 1 {
		return out, fmt.Errorf("alpha %g outside (0,1)", req.Alpha)
	}
	scale := 1.0
	if mode == Predict {
		scale = req.Inflation
		if scale <= 0 {
			scale = DefaultInflation
		}
	}

	z := append([]float64(nil), req.Samples...)
	sort.Float64s(z)
	n := len(z)

	if req.WantUpper {
		if !(req.DeltaUpper > 0 && req.DeltaUpper <= 0.5) {
			return out, fmt.Errorf("CVaR upper delta %g outside (0,0.5]", req.DeltaUpper)
		}
		sqrtTerm := scale * math.Sqrt(math.Log(1/req.DeltaUpper)/(2*float64(req.Datasize)))
		extended := append(z, req.B)
		sum := 0.0
		for i := 0; i < n; i++ {
			term := math.Max(0, float64(i+1)/float64(n)-sqrtTerm-(1-req.Alpha))
			sum += (extended[i+1] - extended[i]) * term
		}
		out.Upper = extended[n] - sum/req.Alpha
	}

	if req.WantLower {
		if !(req.DeltaLower > 0 && req.DeltaLower < 1) {
			return out, fmt.Errorf("CVaR lower delta %g outside (0,1)", req.DeltaLower)
		}
		sqrtTerm := scale * math.Sqrt(math.Log(1/req.DeltaLower)/(2*float64(req.Datasize)))
		extended := append([]float64{req.A}, z...)
		sum := 0.0
		for i := 0; i < n; i++ {
			term := math.Max(0, math.Min(1, float64(i)/float64(n)+sqrtTerm)-(1-req.Alpha))
			sum += (extended[i+1] - extended[i]) * term
		}
		out.Lower = extended[n] - sum/req.Alpha
	}
	return out, nil
}
