package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Condition restricts a statistic to rows where a sensitive column equals Value
type Condition struct {
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

func (c Condition) String() string {
	if c.Value == 1 {
		return c.Column
	}
	return c.Column + "=" + strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// SortConditions returns a copy of conds ordered by column, then value.
// A mask is a conjunction, so the order written does not change it.
func SortConditions(conds []Condition) []Condition {
	out := append([]Condition(nil), conds...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// ConditionsKey renders conditions canonically for cache keys and display
func ConditionsKey(conds []Condition) string {
	conds = SortConditions(conds)
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// MaskIndices returns the datapoints where every condition holds
func (d *Dataset) MaskIndices(conds []Condition) ([]int, error) {
	cols := make([]int, len(conds))
	for i, c := range conds {
		idx, err := d.SensitiveIndex(c.Column)
		if err != nil {
			return nil, err
		}
		cols[i] = idx
	}
	var out []int
	for row := 0; row < d.Len(); row++ {
		keep := true
		for i, c := range conds {
			if d.Sensitive[row][cols[i]] != c.Value {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

// Mask returns the subset of datapoints matching all conditions. With no
// conditions the receiver itself is returned.
func (d *Dataset) Mask(conds []Condition) (*Dataset, error) {
	if len(conds) == 0 {
		return d, nil
	}
	if len(d.Sensitive) == 0 && d.Len() > 0 {
		return nil, fmt.Errorf("cannot mask on %s: dataset has no sensitive attributes", ConditionsKey(conds))
	}
	indices, err := d.MaskIndices(conds)
	if err != nil {
		return nil, err
	}
	return d.Subset(indices), nil
}
