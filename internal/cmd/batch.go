package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bisection/internal/batch"
	"bisection/internal/format"
	"bisection/internal/logging"
)

func newBatchCommand(a *app) *cobra.Command {
	var (
		asJSON      bool
		table       string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch <problems.yaml>",
		Short: "Solve a YAML list of problems concurrently",
		Example: `  # problems.yaml
  problems:
    - name: sqrt2
      expr: "x^2 - 2"
      xl: 0
      xr: 2
    - expr: "cos(x) - x"
      xl: 0
      xr: 1
      eps: 1e-9

  bisect batch problems.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problems, err := batch.Load(args[0])
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = a.cfg.BatchConcurrency
			}

			outcomes, err := batch.Run(cmd.Context(), problems, batch.Options{
				Backend:     a.cfg.Backend(),
				DefaultEps:  a.cfg.DefaultEps,
				Concurrency: concurrency,
				Logger:      logging.New("batch"),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(outcomes)
			}

			failed := 0
			t := format.NewTable(format.ParseMode(table))
			t.Header("Name", "f(x)", "Root", "Iterations", "Status")
			for _, o := range outcomes {
				if !o.Summary.OK() {
					failed++
					t.Row(o.Problem.Name, o.Problem.Expr, "", "", o.Summary.Error)
					continue
				}
				status := "converged"
				if o.Summary.Result.CapReached {
					status = "cap reached"
				}
				t.Row(o.Problem.Name, o.Problem.Expr, format.Root(o.Summary.Result.Root), o.Summary.Result.Iterations, status)
			}
			fmt.Fprintln(out, t.String())

			if failed > 0 {
				color.New(color.FgYellow).Fprintf(out, "%d of %d problems failed\n", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print outcomes as JSON")
	cmd.Flags().StringVar(&table, "table", "ascii", "table style: ascii or md")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel solves (default from config)")
	return cmd
}
