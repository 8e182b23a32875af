package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goseldon/adapters/optimize"
	"goseldon/adapters/tabular"
	"goseldon/app"
	"goseldon/domain/core"
	"goseldon/domain/dataset"
	"goseldon/internal/experiment"
	"goseldon/internal/hyperparam"
	"goseldon/internal/parsetree"
	"goseldon/internal/report"
)

func newParseCmd() *cobra.Command {
	var regime, subRegime string
	var delta float64

	cmd := &cobra.Command{
		Use:   "parse [constraint]",
		Short: "Parse a constraint and print its tree",
		Long: `Parse a constraint string, assign bound directions and split delta.

Example: goseldon parse "abs((PR | [M]) - (PR | [F])) <= 0.15" --sub-regime classification`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []parsetree.Option{
				parsetree.WithRegime(dataset.Regime(regime), dataset.SubRegime(subRegime)),
			}
			if delta > 0 {
				opts = append(opts, parsetree.WithDelta(delta))
			}
			tree, err := parsetree.New(args[0], opts...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n%s", tree.Expression(), tree.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&regime, "regime", string(dataset.RegimeSupervised), "Regime (supervised_learning or reinforcement_learning)")
	cmd.Flags().StringVar(&subRegime, "sub-regime", "", "Sub-regime (classification, regression or all)")
	cmd.Flags().Float64Var(&delta, "delta", 0, "Failure probability of the constraint")

	return cmd
}

// loadExperiment reads the experiment file and its dataset
func loadExperiment(ctx context.Context, e *env, path string) (*experiment.Experiment, app.Spec, *dataset.Dataset, error) {
	exp, err := experiment.Load(path)
	if err != nil {
		return nil, app.Spec{}, nil, err
	}
	spec, err := exp.Spec()
	if err != nil {
		return nil, app.Spec{}, nil, err
	}
	e.applyDefaults(&spec)

	reader := tabular.NewReader(e.log)
	reader.Sheet = exp.Dataset.Sheet
	data, err := reader.Read(ctx, exp.Dataset.Path, exp.Dataset.Meta)
	if err != nil {
		return nil, app.Spec{}, nil, err
	}
	return exp, spec, data, nil
}

func writeRecord(w io.Writer, format string, out *app.Outcome) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Record)
	case "html":
		page, err := report.HTML(out.Record.Experiment, report.RunMarkdown(out.Record))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, page)
		return err
	case "md", "":
		_, err := io.WriteString(w, report.RunMarkdown(out.Record))
		return err
	}
	return fmt.Errorf("unknown output format %q (want md, html or json)", format)
}

func newRunCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "run [experiment.yaml]",
		Short: "Run candidate selection and the safety test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()

			exp, spec, data, err := loadExperiment(ctx, e, args[0])
			if err != nil {
				return err
			}
			provider, err := exp.Provider()
			if err != nil {
				return err
			}
			runs, err := e.ledger(ctx)
			if err != nil {
				return err
			}

			alg := app.NewAlgorithm(provider, optimize.NewGonum(e.log),
				app.WithRunRepository(runs), app.WithLogger(e.log))
			out, err := alg.Run(ctx, spec, data)
			if err != nil {
				return err
			}
			return withOutput(cmd, output, func(w io.Writer) error { return writeRecord(w, format, out) })
		},
	}

	cmd.Flags().StringVar(&format, "format", "md", "Output format: md, html or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

func newSafetyFracCmd() *cobra.Command {
	var thenRun bool
	var output string

	cmd := &cobra.Command{
		Use:   "safety-frac [experiment.yaml]",
		Short: "Choose the safety fraction by bootstrap estimates of the probability of passing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			ctx := cmd.Context()

			exp, spec, data, err := loadExperiment(ctx, e, args[0])
			if err != nil {
				return err
			}
			searchCfg, err := exp.SearchConfig()
			if err != nil {
				return err
			}
			provider, err := exp.Provider()
			if err != nil {
				return err
			}

			trial, err := app.NewAlgorithm(provider, optimize.NewGonum(nil)).Trial(spec, data.Meta)
			if err != nil {
				return err
			}
			search, err := hyperparam.NewSearch(searchCfg, trial, e.log)
			if err != nil {
				return err
			}
			sel, err := search.FindBestFracSafety(ctx, data)
			if err != nil {
				return err
			}

			return withOutput(cmd, output, func(w io.Writer) error {
				if _, err := io.WriteString(w, report.SearchMarkdown(sel)); err != nil {
					return err
				}
				if !thenRun {
					return nil
				}
				runs, err := e.ledger(ctx)
				if err != nil {
					return err
				}
				spec.FracSafety = sel.Frac
				out, err := app.NewAlgorithm(provider, optimize.NewGonum(e.log),
					app.WithRunRepository(runs), app.WithLogger(e.log)).RunSplit(ctx, spec, sel.Candidate, sel.Safety)
				if err != nil {
					return err
				}
				e.log.Info("run with selected fraction", zap.Float64("frac", sel.Frac), zap.Bool("passed", out.Passed))
				_, err = io.WriteString(w, "\n"+report.RunMarkdown(out.Record))
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&thenRun, "run", false, "Run the algorithm on the selected split afterwards")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			runs, err := e.ledger(cmd.Context())
			if err != nil {
				return err
			}
			records, err := runs.ListRuns(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range records {
				status := "passed"
				if !r.Passed {
					status = string(r.Failure)
				}
				fmt.Fprintf(out, "%s  %s  %-20s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Experiment, status)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs")
	list.Flags().IntVar(&offset, "offset", 0, "Number of runs to skip")

	var format string
	show := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseRunID(args[0])
			if err != nil {
				return err
			}
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()
			runs, err := e.ledger(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := runs.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), format, &app.Outcome{Record: rec})
		},
	}
	show.Flags().StringVar(&format, "format", "md", "Output format: md, html or json")

	cmd.AddCommand(list, show)
	return cmd
}

func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
