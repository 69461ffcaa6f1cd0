package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bisection/internal/format"
	"bisection/internal/solver"
	"bisection/internal/store"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
		table  string
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or show one run with its trace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openHistory()
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("history is disabled (db_path is empty)")
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			mode := format.ParseMode(table)

			if len(args) == 1 {
				run, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(out).Encode(run)
				}
				fmt.Fprintf(out, "%s  f(x) = %s  [%g, %g]  eps=%g\n", run.ID, run.Expr, run.XL, run.XR, run.Eps)
				if run.Status != store.StatusOK {
					fmt.Fprintf(out, "%s: %s\n", run.Status, run.Error)
					return nil
				}
				res := runResult(run)
				fmt.Fprintln(out, format.Headline(res))
				if len(res.Trace) > 0 {
					fmt.Fprintln(out, format.Trace(res, mode))
				}
				return nil
			}

			runs, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if runs == nil {
					runs = []*store.Run{}
				}
				return json.NewEncoder(out).Encode(runs)
			}

			t := format.NewTable(mode)
			t.Header("ID", "When", "f(x)", "xl", "xr", "Status", "Root", "Iterations")
			for _, r := range runs {
				root := ""
				if r.Status == store.StatusOK {
					root = format.Root(r.Root)
				}
				t.Row(r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Expr, r.XL, r.XR, r.Status, root, r.Iterations)
			}
			fmt.Fprintln(out, t.String())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().StringVar(&table, "table", "ascii", "table style: ascii or md")
	return cmd
}

func runResult(r *store.Run) solver.Result {
	return solver.Result{
		Root:       r.Root,
		Iterations: r.Iterations,
		Trace:      r.Trace,
		CapReached: r.CapReached,
	}
}
