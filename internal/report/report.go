// Package report renders run records and safety fraction searches as
// Markdown and HTML.
package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"goseldon/domain/run"
	"goseldon/internal/hyperparam"
)

// RunMarkdown summarises one run
func RunMarkdown(rec *run.Record) string {
	var b strings.Builder
	title := rec.Experiment
	if title == "" {
		title = "run"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **Run:** `%s`\n", rec.ID)
	fmt.Fprintf(&b, "- **Created:** %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Result:** %s\n", verdict(rec))
	if rec.Reason != "" {
		fmt.Fprintf(&b, "- **Reason:** %s\n", rec.Reason)
	}
	fmt.Fprintf(&b, "- **Split:** %d candidate / %d safety datapoints (seed %d)\n", rec.NCandidate, rec.NSafety, rec.Seed)
	fmt.Fprintf(&b, "- **Duration:** %s\n", rec.Duration)

	if len(rec.Constraints) > 0 {
		b.WriteString("\n## Safety test\n\n")
		b.WriteString("| Constraint | Test | Value | Lower | Upper | Passed |\n|---|---|---|---|---|---|\n")
		for _, c := range rec.Constraints {
			value := "-"
			if c.Value != nil {
				value = run.Bound(*c.Value).String()
			}
			fmt.Fprintf(&b, "| `%s` | %s 0 | %s | %s | %s | %s |\n",
				escapeCell(c.Constraint), c.Comparison, value, c.Lower, c.Upper, yesNo(c.Passed))
		}
	}
	if len(rec.Solution) > 0 {
		fmt.Fprintf(&b, "\n## Solution\n\n`%s`\n", vector(rec.Solution))
	} else if len(rec.Candidate) > 0 {
		fmt.Fprintf(&b, "\n## Rejected candidate\n\n`%s`\n", vector(rec.Candidate))
	}
	return b.String()
}

// SearchMarkdown summarises a safety fraction search
func SearchMarkdown(sel *hyperparam.Selection) string {
	var b strings.Builder
	b.WriteString("# Safety fraction search\n\n")
	fmt.Fprintf(&b, "Selected fraction **%.2f** (%d candidate / %d safety datapoints).\n\n",
		sel.Frac, sel.Candidate.Len(), sel.Safety.Len())
	b.WriteString("| Split at | Estimated for | P(pass) | Lower | Upper | Passed |\n|---|---|---|---|---|---|\n")
	for _, e := range sel.Estimates {
		fmt.Fprintf(&b, "| %.2f | %.2f | %.3f | %s | %s | %d/%d |\n",
			e.Frac, e.EstFrac, e.ProbPass, optional(e.Lower), optional(e.Upper), e.Passed, e.Trials)
	}
	return b.String()
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders Markdown into a standalone page
func HTML(title, md string) (string, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	body := markdown.ToHTML([]byte(md), p, renderer)

	var out strings.Builder
	err := page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body)})
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out.String(), nil
}

func verdict(rec *run.Record) string {
	switch {
	case rec.Passed:
		return "solution found"
	case rec.Failure == run.FailureConstraint:
		return "no solution found (safety test failed)"
	case rec.Failure == run.FailureComputation:
		return "no solution found (computation error)"
	}
	return "no solution found"
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func vector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.6g", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func optional(v float64) string {
	if v != v {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
