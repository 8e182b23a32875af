// Package bounds implements the concentration inequalities used to turn a
// per-sample vector of a statistic into high-confidence bounds on its mean.
package bounds

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Method identifies a family of confidence bounds
type Method string

const (
	// TTest is Student's t bound on the mean; assumes approximate normality
	TTest Method = "ttest"
	// Hoeffding needs the per-sample range and is distribution-free
	Hoeffding Method = "hoeffding"
	// Manual bounds are fixed by the user and never sampled
	Manual Method = "manual"
)

// ParseMethod validates a method name
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case TTest, Hoeffding, Manual:
		return Method(s), nil
	case "":
		return TTest, nil
	}
	return "", fmt.Errorf("unknown bound method %q", s)
}

// Mode distinguishes the relaxed prediction used while optimising from the
// statistically valid computation of the safety test.
type Mode int

const (
	Predict Mode = iota
	Compute
)

func (m Mode) String() string {
	if m == Predict {
		return "predict"
	}
	return "compute"
}

const (
	// MinSamples below which no finite bound is reported
	MinSamples = 5
	// DefaultInflation widens predicted bounds so candidates are not
	// over-fitted to pass by a hair
	DefaultInflation = 2.0
)

// Request carries everything a bound computation needs
type Request struct {
	Samples []float64
	// Datasize is n in the width term: the true sample count when computing,
	// the predicted safety-split count when predicting
	Datasize   int
	DeltaLower float64
	DeltaUpper float64
	WantLower  bool
	WantUpper  bool
	Inflation  float64
	RangeLo    float64
	RangeHi    float64
	HasRange   bool
}

// Interval is a [Lower, Upper] pair on the extended reals
type Interval struct {
	Lower float64
	Upper float64
}

// Unbounded is [-inf, +inf]
func Unbounded() Interval {
	return Interval{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

// Calculate applies method in mode to the request. Sides that were not
// requested are left infinite.
func Calculate(method Method, mode Mode, req Request) (Interval, error) {
	out := Unbounded()
	if !req.WantLower && !req.WantUpper {
		return out, fmt.Errorf("neither lower nor upper bound requested")
	}
	if len(req.Samples) == 0 {
		return out, fmt.Errorf("no samples")
	}
	if len(req.Samples) < MinSamples || req.Datasize < 2 {
		return out, nil
	}
	if err := checkDelta(req); err != nil {
		return out, err
	}

	scale := 1.0
	if mode == Predict {
		scale = req.Inflation
		if scale <= 0 {
			scale = DefaultInflation
		}
	}

	mean, err := stats.Mean(req.Samples)
	if err != nil {
		return out, err
	}

	var width func(delta float64) (float64, error)
	switch method {
	case TTest, "":
		std, err := stats.StandardDeviationSample(req.Samples)
		if err != nil {
			return out, err
		}
		width = func(delta float64) (float64, error) {
			return scale * std / math.Sqrt(float64(req.Datasize)) * TInv(1-delta, req.Datasize-1), nil
		}
	case Hoeffding:
		if !req.HasRange {
			return out, fmt.Errorf("hoeffding bound needs the statistic's range")
		}
		span := req.RangeHi - req.RangeLo
		width = func(delta float64) (float64, error) {
			return scale * span * math.Sqrt(math.Log(1/delta)/(2*float64(req.Datasize))), nil
		}
	default:
		return out, fmt.Errorf("bound method %q cannot be computed from samples", method)
	}

	if req.WantLower {
		w, err := width(req.DeltaLower)
		if err != nil {
			return out, err
		}
		out.Lower = mean - w
	}
	if req.WantUpper {
		w, err := width(req.DeltaUpper)
		if err != nil {
			return out, err
		}
		out.Upper = mean + w
	}
	if req.HasRange {
		out.Lower = math.Max(out.Lower, req.RangeLo)
		out.Upper = math.Min(out.Upper, req.RangeHi)
		if !req.WantLower {
			out.Lower = math.Inf(-1)
		}
		if !req.WantUpper {
			out.Upper = math.Inf(1)
		}
	}
	return out, nil
}

func checkDelta(req Request) error {
	if req.WantLower && !(req.DeltaLower > 0 && req.DeltaLower < 1) {
		return fmt.Errorf("lower delta %g outside (0,1)", req.DeltaLower)
	}
	if req.WantUpper && !(req.DeltaUpper > 0 && req.DeltaUpper < 1) {
		return fmt.Errorf("upper delta %g outside (0,1)", req.DeltaUpper)
	}
	return nil
}

// TInv is the quantile function of Student's t with df degrees of freedom
func TInv(p float64, df int) float64 {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return t.Quantile(p)
}
