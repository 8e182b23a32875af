package run

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Bound is a confidence bound on the extended reals. JSON has no infinity,
// so ±Inf travel as the strings "inf" and "-inf".
type Bound float64

func (b Bound) Float() float64 { return float64(b) }

func (b Bound) String() string {
	switch {
	case math.IsInf(float64(b), 1):
		return "inf"
	case math.IsInf(float64(b), -1):
		return "-inf"
	}
	return strconv.FormatFloat(float64(b), 'g', 6, 64)
}

func (b Bound) MarshalJSON() ([]byte, error) {
	f := float64(b)
	if math.IsInf(f, 0) {
		return json.Marshal(b.String())
	}
	if math.IsNaN(f) {
		return nil, fmt.Errorf("bound is NaN")
	}
	return json.Marshal(f)
}

func (b *Bound) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "inf", "+inf":
			*b = Bound(math.Inf(1))
		case "-inf":
			*b = Bound(math.Inf(-1))
		default:
			return fmt.Errorf("invalid bound %q", s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*b = Bound(f)
	return nil
}
