package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bisection/internal/export"
	"bisection/internal/format"
	"bisection/internal/solver"
	"bisection/internal/store"
)

type solveFlags struct {
	xl, xr    float64
	eps       float64
	asJSON    bool
	table     string
	out       string
	noTrace   bool
	noHistory bool
}

func newSolveCommand(a *app) *cobra.Command {
	var f solveFlags

	cmd := &cobra.Command{
		Use:   "solve <expression>",
		Short: "Find a root of f(x) on [xl, xr]",
		Example: `  bisect solve "x^2 - 2" --xl 0 --xr 2
  bisect solve "cos(x) - x" --xl 0 --xr 1 --eps 1e-9 --table md
  bisect solve "x^3 - x - 2" --xl 1 --xr 2 --out cubic.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSolve(cmd, args[0], f)
		},
	}

	cmd.Flags().Float64Var(&f.xl, "xl", 0, "left end of the bracket")
	cmd.Flags().Float64Var(&f.xr, "xr", 0, "right end of the bracket")
	cmd.Flags().Float64Var(&f.eps, "eps", 0, "relative tolerance (default from config, 1e-6)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&f.table, "table", "ascii", "trace table style: ascii or md")
	cmd.Flags().StringVar(&f.out, "out", "", "write the trace to a file (.csv, .json or .md)")
	cmd.Flags().BoolVar(&f.noTrace, "no-trace", false, "print only the root")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the run in history")
	_ = cmd.MarkFlagRequired("xl")
	_ = cmd.MarkFlagRequired("xr")

	return cmd
}

func (a *app) runSolve(cmd *cobra.Command, expr string, f solveFlags) error {
	eps := f.eps
	if eps == 0 {
		eps = a.cfg.DefaultEps
	}
	log := slog.Default().With("component", "solve")

	res, err := solveExpr(a.cfg.Backend(), expr, f.xl, f.xr, eps)

	if !f.noHistory {
		a.record(cmd, expr, f.xl, f.xr, eps, res, err)
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(solver.Summarize(res, err)); encErr != nil {
			return encErr
		}
	} else if err != nil {
		color.New(color.FgRed).Fprintln(out, solver.UserMessage(err))
	} else {
		color.New(color.FgGreen).Fprintln(out, format.Headline(res))
		if res.CapReached {
			color.New(color.FgYellow).Fprintf(out, "warning: iteration cap of %d reached before eps=%g\n", solver.MaxIterations, eps)
		}
		if !f.noTrace && len(res.Trace) > 0 {
			fmt.Fprintln(out, format.Trace(res, format.ParseMode(f.table)))
		}
	}

	if err != nil {
		log.Debug("solve failed", "expr", expr, "error", err)
		return errors.New(solver.UserMessage(err))
	}

	if f.out != "" {
		path := f.out
		if filepath.Dir(path) == "." && !filepath.IsAbs(path) {
			path = filepath.Join(a.cfg.ExportDir, path)
		}
		if err := export.WriteFile(path, export.FormatFromPath(path), res); err != nil {
			return err
		}
		log.Info("trace exported", "path", path)
	}
	return nil
}

func solveExpr(backend solver.Backend, expr string, xl, xr, eps float64) (solver.Result, error) {
	fn, err := solver.Compile(backend, expr)
	if err != nil {
		return solver.Result{}, err
	}
	return solver.Solve(fn, xl, xr, eps)
}

// record пишет запуск в историю; сбой истории не ломает решение
func (a *app) record(cmd *cobra.Command, expr string, xl, xr, eps float64, res solver.Result, solveErr error) {
	// NaN/Inf в sqlite не пишем
	if math.IsNaN(xl+xr+eps) || math.IsInf(xl+xr+eps, 0) {
		return
	}
	st, err := a.openHistory()
	if err != nil {
		slog.Warn("history unavailable", "error", err)
		return
	}
	if st == nil {
		return
	}
	defer st.Close()

	run := &store.Run{
		ID:        uuid.NewString(),
		Expr:      expr,
		XL:        xl,
		XR:        xr,
		Eps:       eps,
		Evaluator: string(a.cfg.Backend()),
		Status:    store.StatusOK,
		CreatedAt: time.Now().UTC(),
	}
	if solveErr != nil {
		run.Status = store.StatusError
		run.Error = solver.UserMessage(solveErr)
	} else {
		run.Root = res.Root
		run.Iterations = res.Iterations
		run.CapReached = res.CapReached
		run.Trace = res.Trace
	}
	if err := st.Save(cmd.Context(), run); err != nil {
		slog.Warn("failed to record run", "error", err)
	}
}
