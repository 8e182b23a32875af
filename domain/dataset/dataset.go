// Package dataset holds the tabular and episodic data the constraint engine
// evaluates statistics on.
package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"goseldon/domain/core"
)

// Regime selects how rows are interpreted
type Regime string

const (
	RegimeSupervised Regime = "supervised_learning"
	RegimeRL         Regime = "reinforcement_learning"
)

// SubRegime narrows a regime to a family of statistics
type SubRegime string

const (
	SubRegimeClassification SubRegime = "classification"
	SubRegimeRegression     SubRegime = "regression"
	SubRegimeAll            SubRegime = "all"
)

// Meta describes the columns of a dataset
type Meta struct {
	Regime         Regime    `json:"regime" yaml:"regime"`
	SubRegime      SubRegime `json:"sub_regime" yaml:"sub_regime"`
	FeatureNames   []string  `json:"feature_names,omitempty" yaml:"feature_names"`
	LabelName      string    `json:"label_name,omitempty" yaml:"label_name"`
	SensitiveNames []string  `json:"sensitive_names,omitempty" yaml:"sensitive_names"`
	// Gamma is the discount applied to episode rewards.
	Gamma float64 `json:"gamma,omitempty" yaml:"gamma"`
	// LabelRange bounds the label; used by statistics that need a range.
	LabelRange []float64 `json:"label_range,omitempty" yaml:"label_range"`
}

// Dataset is either a supervised table (Features/Labels) or a set of
// episodes, with optional sensitive attribute columns aligned by row.
type Dataset struct {
	Meta      Meta
	Features  [][]float64
	Labels    []float64
	Sensitive [][]float64
	Episodes  []Episode
}

// NewSupervised validates and builds a supervised dataset
func NewSupervised(meta Meta, features [][]float64, labels []float64, sensitive [][]float64) (*Dataset, error) {
	if meta.Regime == "" {
		meta.Regime = RegimeSupervised
	}
	if meta.Regime != RegimeSupervised {
		return nil, fmt.Errorf("%w: regime %q is not supervised", core.ErrInvalidDataset, meta.Regime)
	}
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %d feature rows but %d labels", core.ErrInvalidDataset, len(features), len(labels))
	}
	if err := checkSensitive(meta, sensitive, len(labels)); err != nil {
		return nil, err
	}
	if len(features) > 0 {
		width := len(features[0])
		for i, row := range features {
			if len(row) != width {
				return nil, fmt.Errorf("%w: row %d has %d features, expected %d", core.ErrInvalidDataset, i, len(row), width)
			}
		}
	}
	return &Dataset{Meta: meta, Features: features, Labels: labels, Sensitive: sensitive}, nil
}

// NewEpisodic validates and builds an RL dataset
func NewEpisodic(meta Meta, episodes []Episode, sensitive [][]float64) (*Dataset, error) {
	if meta.Regime == "" {
		meta.Regime = RegimeRL
	}
	if meta.Regime != RegimeRL {
		return nil, fmt.Errorf("%w: regime %q is not episodic", core.ErrInvalidDataset, meta.Regime)
	}
	if meta.Gamma == 0 {
		meta.Gamma = 1
	}
	if err := checkSensitive(meta, sensitive, len(episodes)); err != nil {
		return nil, err
	}
	for i, ep := range episodes {
		if err := ep.Validate(); err != nil {
			return nil, fmt.Errorf("%w: episode %d: %v", core.ErrInvalidDataset, i, err)
		}
	}
	return &Dataset{Meta: meta, Episodes: episodes, Sensitive: sensitive}, nil
}

func checkSensitive(meta Meta, sensitive [][]float64, n int) error {
	if len(meta.SensitiveNames) == 0 {
		if len(sensitive) > 0 && len(sensitive[0]) > 0 {
			return fmt.Errorf("%w: sensitive values given without column names", core.ErrInvalidDataset)
		}
		return nil
	}
	if len(sensitive) != n {
		return fmt.Errorf("%w: %d sensitive rows for %d datapoints", core.ErrInvalidDataset, len(sensitive), n)
	}
	for i, row := range sensitive {
		if len(row) != len(meta.SensitiveNames) {
			return fmt.Errorf("%w: sensitive row %d has %d values, expected %d",
				core.ErrInvalidDataset, i, len(row), len(meta.SensitiveNames))
		}
	}
	return nil
}

// Len returns the number of datapoints (rows or episodes)
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	if d.Meta.Regime == RegimeRL {
		return len(d.Episodes)
	}
	return len(d.Labels)
}

// NumFeatures returns the width of the feature matrix
func (d *Dataset) NumFeatures() int {
	if len(d.Features) == 0 {
		return len(d.Meta.FeatureNames)
	}
	return len(d.Features[0])
}

// Subset returns a dataset made of the given datapoint indices. Row slices
// are shared with the receiver; datasets are treated as read-only.
func (d *Dataset) Subset(indices []int) *Dataset {
	out := &Dataset{Meta: d.Meta}
	if d.Meta.Regime == RegimeRL {
		out.Episodes = make([]Episode, len(indices))
		for i, idx := range indices {
			out.Episodes[i] = d.Episodes[idx]
		}
	} else {
		out.Features = make([][]float64, len(indices))
		out.Labels = make([]float64, len(indices))
		for i, idx := range indices {
			out.Features[i] = d.Features[idx]
			out.Labels[i] = d.Labels[idx]
		}
	}
	if len(d.Sensitive) > 0 {
		out.Sensitive = make([][]float64, len(indices))
		for i, idx := range indices {
			out.Sensitive[i] = d.Sensitive[idx]
		}
	}
	return out
}

// Slice returns datapoints [start, end)
func (d *Dataset) Slice(start, end int) *Dataset {
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return d.Subset(indices)
}

// Shuffled returns a permuted copy using rng
func (d *Dataset) Shuffled(rng *rand.Rand) *Dataset {
	return d.Subset(rng.Perm(d.Len()))
}

// Resample draws n datapoints with replacement
func (d *Dataset) Resample(rng *rand.Rand, n int) *Dataset {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = rng.Intn(d.Len())
	}
	return d.Subset(indices)
}

// SensitiveIndex returns the column position of a sensitive attribute
func (d *Dataset) SensitiveIndex(name string) (int, error) {
	for i, n := range d.Meta.SensitiveNames {
		if n == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: unknown sensitive column %q", core.ErrInvalidDataset, name)
}

// LabelBounds returns the declared label range, or the observed one
func (d *Dataset) LabelBounds() (float64, float64) {
	if len(d.Meta.LabelRange) == 2 {
		return d.Meta.LabelRange[0], d.Meta.LabelRange[1]
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, y := range d.Labels {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	return lo, hi
}
