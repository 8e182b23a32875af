// Package hyperparam chooses the fraction of data reserved for the safety
// test by estimating, with bootstrap trials on the candidate split, how
// likely the algorithm is to return a solution at each fraction.
package hyperparam

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/internal/split"
)

// IntervalType selects the confidence interval on the probability of passing
type IntervalType string

const (
	IntervalNone           IntervalType = ""
	IntervalTTest          IntervalType = "ttest"
	IntervalClopperPearson IntervalType = "clopper-pearson"
)

// Defaults applied to zero-valued configuration
const (
	DefaultTrials = 100
	DefaultAlpha  = 0.1
	// minCandidate is the smallest candidate split worth bootstrapping
	minCandidate = 4
)

// ParseIntervalType validates an interval name
func ParseIntervalType(s string) (IntervalType, error) {
	switch t := IntervalType(s); t {
	case IntervalNone, IntervalTTest, IntervalClopperPearson:
		return t, nil
	}
	return "", fmt.Errorf("unknown confidence interval %q (want ttest or clopper-pearson)", s)
}

// Config tunes the search
type Config struct {
	// Fracs are the safety fractions considered
	Fracs    []float64
	Trials   int
	Workers  int
	Interval IntervalType
	// Alpha is the miscoverage of the interval on the probability of passing
	Alpha float64
	// Pooled splits the candidate data into disjoint pools before resampling
	// the bootstrap candidate and safety sets
	Pooled bool
	Seed   int64
}

// TrialFunc runs the algorithm once on a bootstrapped split and reports
// whether it returned a solution. It is called concurrently.
type TrialFunc func(ctx context.Context, trial int, cand, safe *dataset.Dataset) (bool, error)

// Estimate is the bootstrap estimate for one pair of fractions
type Estimate struct {
	// Frac is the fraction whose candidate split was resampled
	Frac float64 `json:"frac"`
	// EstFrac is the fraction the estimate is for
	EstFrac  float64 `json:"est_frac"`
	ProbPass float64 `json:"prob_pass"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Passed   int     `json:"passed"`
	Trials   int     `json:"trials"`
}

// Selection is the outcome of FindBestFracSafety
type Selection struct {
	Frac      float64
	Candidate *dataset.Dataset
	Safety    *dataset.Dataset
	Estimates []Estimate
}

// Search estimates the probability of passing across safety fractions
type Search struct {
	cfg   Config
	trial TrialFunc
	log   *zap.Logger
}

// NewSearch validates cfg and creates a search
func NewSearch(cfg Config, trial TrialFunc, logger *zap.Logger) (*Search, error) {
	if trial == nil {
		return nil, fmt.Errorf("no trial function")
	}
	if len(cfg.Fracs) == 0 {
		return nil, fmt.Errorf("no safety fractions to search")
	}
	for _, f := range cfg.Fracs {
		if f <= 0 || f >= 1 {
			return nil, fmt.Errorf("safety fraction must be in (0,1), got %g", f)
		}
	}
	if _, err := ParseIntervalType(string(cfg.Interval)); err != nil {
		return nil, err
	}
	if cfg.Trials <= 0 {
		cfg.Trials = DefaultTrials
	}
	if cfg.Interval == IntervalTTest && cfg.Trials < 2 {
		return nil, fmt.Errorf("a t interval needs at least 2 trials")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = DefaultAlpha
	}
	fracs := append([]float64(nil), cfg.Fracs...)
	sort.Sort(sort.Reverse(sort.Float64Slice(fracs)))
	cfg.Fracs = fracs

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Search{cfg: cfg, trial: trial, log: logger.With(zap.String("component", "hyperparam"))}, nil
}

// BootstrapSizes returns the candidate and safety sizes a dataset of total
// datapoints would have at frac
func BootstrapSizes(total int, frac float64) (int, int) {
	nSafety := int(float64(total) * frac)
	return total - nSafety, nSafety
}

// EstimateProbPass bootstraps cand into splits sized for estFrac of total
// datapoints and runs the trials
func (s *Search) EstimateProbPass(ctx context.Context, cand *dataset.Dataset, frac, estFrac float64, total int) (Estimate, error) {
	nCand, nSafe := BootstrapSizes(total, estFrac)
	if nCand == 0 || nSafe == 0 {
		return Estimate{}, fmt.Errorf("%w: %d datapoints leave an empty bootstrap split at %g",
			core.ErrInsufficientData, total, estFrac)
	}

	outcomes := make([]float64, s.cfg.Trials)
	var passed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < s.cfg.Trials; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(trialSeed(s.cfg.Seed, estFrac, i)))
			bsCand, bsSafe, err := s.resample(cand, estFrac, nCand, nSafe, rng)
			if err != nil {
				return err
			}
			ok, err := s.trial(gctx, i, bsCand, bsSafe)
			if err != nil {
				return fmt.Errorf("bootstrap trial %d: %w", i, err)
			}
			if ok {
				outcomes[i] = 1
				passed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Estimate{}, err
	}

	est := Estimate{
		Frac:     frac,
		EstFrac:  estFrac,
		Passed:   int(passed.Load()),
		Trials:   s.cfg.Trials,
		ProbPass: float64(passed.Load()) / float64(s.cfg.Trials),
		Lower:    math.NaN(),
		Upper:    math.NaN(),
	}
	iv, err := s.interval(outcomes, est.Passed)
	if err != nil {
		return Estimate{}, err
	}
	if iv != nil {
		est.Lower, est.Upper = iv.Lower, iv.Upper
	}
	s.log.Debug("estimated probability of passing",
		zap.Float64("frac", frac),
		zap.Float64("est_frac", estFrac),
		zap.Float64("prob_pass", est.ProbPass),
		zap.Int("passed", est.Passed))
	return est, nil
}

func (s *Search) resample(cand *dataset.Dataset, estFrac float64, nCand, nSafe int, rng *rand.Rand) (*dataset.Dataset, *dataset.Dataset, error) {
	if !s.cfg.Pooled {
		return cand.Resample(rng, nCand), cand.Resample(rng, nSafe), nil
	}
	pools, err := split.NewPartitionerWithSeed(rng.Int63()).Partition(cand, split.Config{
		FracSafety: estFrac,
		Shuffle:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap pools: %w", err)
	}
	return pools.Candidate.Resample(rng, nCand), pools.Safety.Resample(rng, nSafe), nil
}

// interval returns nil when no interval type is configured
func (s *Search) interval(outcomes []float64, passed int) (*bounds.Interval, error) {
	switch s.cfg.Interval {
	case IntervalTTest:
		iv, err := bounds.TTestMeanInterval(outcomes, s.cfg.Alpha, bounds.PopulationSpread)
		if err != nil {
			return nil, err
		}
		return &iv, nil
	case IntervalClopperPearson:
		iv, err := bounds.ClopperPearson(passed, len(outcomes), s.cfg.Alpha)
		if err != nil {
			return nil, err
		}
		return &iv, nil
	}
	return nil, nil
}

// better reports whether prime is at least as likely to pass as curr
func (s *Search) better(prime, curr Estimate) bool {
	if s.cfg.Interval == IntervalNone {
		return prime.ProbPass >= curr.ProbPass
	}
	return prime.Upper >= curr.Lower
}

// FindBestFracSafety walks the fractions from most to least safety data.
// At each fraction the ordered candidate split is bootstrapped to compare
// the fraction with every smaller one; the walk moves on while some smaller
// fraction looks at least as likely to pass and stops otherwise.
func (s *Search) FindBestFracSafety(ctx context.Context, data *dataset.Dataset) (*Selection, error) {
	total := data.Len()
	var sel *Selection
	var estimates []Estimate
	for _, frac := range s.cfg.Fracs {
		parts, err := split.NewPartitioner().Partition(data, split.Config{FracSafety: frac})
		if err != nil {
			return nil, err
		}
		if parts.Candidate.Len() < minCandidate {
			s.log.Debug("candidate split too small", zap.Float64("frac", frac), zap.Int("size", parts.Candidate.Len()))
			continue
		}
		sel = &Selection{Frac: frac, Candidate: parts.Candidate, Safety: parts.Safety}

		curr, err := s.EstimateProbPass(ctx, parts.Candidate, frac, frac, total)
		if err != nil {
			return nil, err
		}
		estimates = append(estimates, curr)

		primeBetter := false
		for _, estFrac := range s.cfg.Fracs {
			if estFrac >= frac {
				continue
			}
			prime, err := s.EstimateProbPass(ctx, parts.Candidate, frac, estFrac, total)
			if err != nil {
				return nil, err
			}
			estimates = append(estimates, prime)
			if s.better(prime, curr) {
				primeBetter = true
				break
			}
		}
		if !primeBetter {
			break
		}
	}
	if sel == nil {
		return nil, fmt.Errorf("%w: no safety fraction leaves %d candidate datapoints", core.ErrInsufficientData, minCandidate)
	}
	sel.Estimates = estimates
	s.log.Info("selected safety fraction", zap.Float64("frac", sel.Frac), zap.Int("estimates", len(estimates)))
	return sel, nil
}

func trialSeed(seed int64, frac float64, trial int) int64 {
	return seed*1_000_003 + int64(math.Round(frac*1e6))*10_007 + int64(trial)
}
