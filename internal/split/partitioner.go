// Package split divides a dataset into the candidate and safety splits.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
)

// DefaultFracSafety is the share of data held out for the safety test
const DefaultFracSafety = 0.6

// Config defines partitioning parameters
type Config struct {
	FracSafety float64 // Proportion for the safety split (0.0-1.0)
	Shuffle    bool    // Permute datapoints before splitting
	Stratify   string  // Sensitive column to stratify by (empty for none)
}

// Partitioner splits datasets reproducibly
type Partitioner struct {
	randomSeed int64
}

// Statistics provides metadata about the partitioning
type Statistics struct {
	Total         int
	CandidateSize int
	SafetySize    int
	SafetyRatio   float64
	Stratify      string
	RandomSeed    int64
	Method        string
}

// Result holds both splits
type Result struct {
	Candidate *dataset.Dataset
	Safety    *dataset.Dataset
	Stats     Statistics
}

// NewPartitioner seeds from the clock
func NewPartitioner() *Partitioner {
	return &Partitioner{randomSeed: time.Now().UnixNano()}
}

// NewPartitionerWithSeed creates a partitioner with a specific seed for reproducibility
func NewPartitionerWithSeed(seed int64) *Partitioner {
	return &Partitioner{randomSeed: seed}
}

// SafetySize returns int(frac*n), clamped so that each split keeps at least
// two datapoints when n >= 4
func SafetySize(n int, frac float64) int {
	size := int(frac * float64(n))
	if n >= 4 {
		if size < 2 {
			size = 2
		}
		if size > n-2 {
			size = n - 2
		}
	}
	return size
}

// Partition splits data. Without shuffling the candidate split is the
// leading rows and the safety split the trailing ones.
func (p *Partitioner) Partition(data *dataset.Dataset, cfg Config) (*Result, error) {
	frac := cfg.FracSafety
	if frac == 0 {
		frac = DefaultFracSafety
	}
	if frac <= 0 || frac >= 1 {
		return nil, fmt.Errorf("safety fraction must be in (0,1), got %g", frac)
	}
	n := data.Len()

	var candIdx, safeIdx []int
	method := "ordered"
	if cfg.Stratify != "" {
		var err error
		candIdx, safeIdx, err = p.stratifiedPartition(data, cfg.Stratify, frac, cfg.Shuffle)
		if err != nil {
			return nil, err
		}
		method = "stratified"
	} else {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		if cfg.Shuffle {
			rng := rand.New(rand.NewSource(p.randomSeed))
			rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
			method = "shuffled"
		}
		nSafety := SafetySize(n, frac)
		candIdx, safeIdx = order[:n-nSafety], order[n-nSafety:]
	}

	if len(candIdx) == 0 || len(safeIdx) == 0 {
		return nil, fmt.Errorf("%w: %d datapoints leave an empty split (candidate=%d, safety=%d)",
			core.ErrInsufficientData, n, len(candIdx), len(safeIdx))
	}

	return &Result{
		Candidate: data.Subset(candIdx),
		Safety:    data.Subset(safeIdx),
		Stats: Statistics{
			Total:         n,
			CandidateSize: len(candIdx),
			SafetySize:    len(safeIdx),
			SafetyRatio:   float64(len(safeIdx)) / float64(n),
			Stratify:      cfg.Stratify,
			RandomSeed:    p.randomSeed,
			Method:        method,
		},
	}, nil
}

// stratifiedPartition applies the safety fraction within each value of a
// sensitive column so both splits keep the group proportions
func (p *Partitioner) stratifiedPartition(data *dataset.Dataset, column string, frac float64, shuffle bool) ([]int, []int, error) {
	col, err := data.SensitiveIndex(column)
	if err != nil {
		return nil, nil, err
	}
	strata := make(map[float64][]int)
	for i, row := range data.Sensitive {
		strata[row[col]] = append(strata[row[col]], i)
	}
	keys := make([]float64, 0, len(strata))
	for k := range strata {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	rng := rand.New(rand.NewSource(p.randomSeed))
	var candidate, safety []int
	for _, k := range keys {
		members := strata[k]
		if shuffle {
			rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		}
		if len(members) < 2 {
			// too small to split; the candidate split keeps it
			candidate = append(candidate, members...)
			continue
		}
		nSafety := int(math.Round(float64(len(members)) * frac))
		if nSafety < 1 {
			nSafety = 1
		}
		if nSafety >= len(members) {
			nSafety = len(members) - 1
		}
		cut := len(members) - nSafety
		candidate = append(candidate, members[:cut]...)
		safety = append(safety, members[cut:]...)
	}
	sort.Ints(candidate)
	sort.Ints(safety)
	return candidate, safety, nil
}
