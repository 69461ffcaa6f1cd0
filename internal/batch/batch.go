// Package batch solves a list of independent bisection problems concurrently.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"bisection/internal/solver"
)

// Problem — одна задача пакета
type Problem struct {
	Name string  `yaml:"name" json:"name"`
	Expr string  `yaml:"expr" json:"expr"`
	XL   float64 `yaml:"xl" json:"xl"`
	XR   float64 `yaml:"xr" json:"xr"`
	// Eps — 0 означает допуск из настроек
	Eps float64 `yaml:"eps,omitempty" json:"eps,omitempty"`
}

// File — формат YAML-файла пакета
type File struct {
	Problems []Problem `yaml:"problems"`
}

// Outcome — результат одной задачи; Summary сериализуется как {"error"} или {"result", ...}
type Outcome struct {
	Problem Problem        `json:"problem"`
	Summary solver.Summary `json:"summary"`
	Err     error          `json:"-"`
}

// Options — параметры прогона
type Options struct {
	Backend     solver.Backend
	DefaultEps  float64
	Concurrency int
	Logger      *slog.Logger
}

// Load читает пакет задач из YAML
func Load(path string) ([]Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(f.Problems) == 0 {
		return nil, fmt.Errorf("batch file %s has no problems", path)
	}
	for i := range f.Problems {
		if f.Problems[i].Name == "" {
			f.Problems[i].Name = fmt.Sprintf("#%d", i+1)
		}
	}
	return f.Problems, nil
}

// Run решает задачи параллельно, не более opts.Concurrency одновременно.
// Ошибка решения отдельной задачи попадает в её Outcome и не прерывает пакет;
// Run возвращает ошибку только при отмене ctx. Порядок результатов совпадает с входным.
func Run(ctx context.Context, problems []Problem, opts Options) ([]Outcome, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.DefaultEps <= 0 {
		opts.DefaultEps = solver.DefaultEps
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	out := make([]Outcome, len(problems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, p := range problems {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = solveOne(p, opts)
			if out[i].Err != nil {
				log.Debug("batch problem failed", "name", p.Name, "error", out[i].Err)
			} else if out[i].Summary.Result.CapReached {
				log.Warn("iteration cap reached", "name", p.Name, "iterations", solver.MaxIterations)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func solveOne(p Problem, opts Options) Outcome {
	eps := p.Eps
	if eps == 0 {
		eps = opts.DefaultEps
	}

	f, err := solver.Compile(opts.Backend, p.Expr)
	if err != nil {
		return Outcome{Problem: p, Summary: solver.Summarize(solver.Result{}, err), Err: err}
	}
	res, err := solver.Solve(f, p.XL, p.XR, eps)
	return Outcome{Problem: p, Summary: solver.Summarize(res, err), Err: err}
}
