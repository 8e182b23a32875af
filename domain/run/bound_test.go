package run

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundJSONHandlesInfinity(t *testing.T) {
	report := ConstraintReport{
		Constraint: "FPR - 0.2",
		Comparison: "<=",
		Lower:      Bound(math.Inf(-1)),
		Upper:      Bound(0.125),
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lower":"-inf"`)
	assert.Contains(t, string(data), `"upper":0.125`)

	var decoded ConstraintReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, math.IsInf(decoded.Lower.Float(), -1))
	assert.Equal(t, 0.125, decoded.Upper.Float())
}

func TestBoundRejectsNaN(t *testing.T) {
	_, err := json.Marshal(Bound(math.NaN()))
	assert.Error(t, err)
}
