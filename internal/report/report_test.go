package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/domain/run"
	"goseldon/internal/hyperparam"
	"goseldon/internal/testkit"
)

func passedRecord() *run.Record {
	value := -0.12
	rec := run.NewRecord("fpr_cap", 4)
	rec.Passed = true
	rec.Solution = []float64{0.25, -1}
	rec.NCandidate, rec.NSafety = 40, 60
	rec.Constraints = []run.ConstraintReport{{
		Constraint: "(FPR | [M]) <= 0.2",
		Comparison: "<=",
		Lower:      run.Bound(math.Inf(-1)),
		Upper:      run.Bound(-0.05),
		Passed:     true,
		Value:      &value,
	}}
	return rec
}

func TestRunMarkdown(t *testing.T) {
	md := RunMarkdown(passedRecord())
	assert.Contains(t, md, "# fpr_cap")
	assert.Contains(t, md, "solution found")
	assert.Contains(t, md, `| `+"`"+`(FPR \| [M]) <= 0.2`+"`"+` | <= 0 | -0.12 | -inf | -0.05 | yes |`)
	assert.Contains(t, md, "[0.25, -1]")

	rec := passedRecord()
	rec.Constraints[0].Value = nil
	assert.Contains(t, RunMarkdown(rec), "| <= 0 | - | -inf |")

	rec = run.NewRecord("", 1)
	rec.Failure = run.FailureConstraint
	rec.Candidate = []float64{3}
	md = RunMarkdown(rec)
	assert.Contains(t, md, "# run")
	assert.Contains(t, md, "safety test failed")
	assert.Contains(t, md, "Rejected candidate")
}

func TestSearchMarkdown(t *testing.T) {
	data := testkit.NewGenerator(1).Regression(10, 0.1, 0)
	sel := &hyperparam.Selection{
		Frac:      0.4,
		Candidate: data.Slice(0, 6),
		Safety:    data.Slice(6, 10),
		Estimates: []hyperparam.Estimate{
			{Frac: 0.4, EstFrac: 0.4, ProbPass: 0.9, Lower: math.NaN(), Upper: math.NaN(), Passed: 9, Trials: 10},
		},
	}
	md := SearchMarkdown(sel)
	assert.Contains(t, md, "**0.40** (6 candidate / 4 safety")
	assert.Contains(t, md, "| 0.40 | 0.40 | 0.900 | - | - | 9/10 |")
}

func TestHTML(t *testing.T) {
	out, err := HTML("fpr <cap>", RunMarkdown(passedRecord()))
	require.NoError(t, err)
	assert.Contains(t, out, "<title>fpr &lt;cap&gt;</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h1")
}
