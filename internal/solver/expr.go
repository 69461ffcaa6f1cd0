package solver

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprFunc — реализация Func на основе expr-lang/expr.
// Имена проверяются при компиляции, поэтому "y + 1" падает сразу в NewExprFunc.
type exprFunc struct {
	src     string
	program *vm.Program
}

// NewExprFunc компилирует f(x) движком expr-lang
func NewExprFunc(src string) (Func, error) {
	s, err := canonical(src)
	if err != nil {
		return nil, &EvalError{Expr: src, Err: err}
	}

	opts := []expr.Option{expr.Env(exprEnv(0))}
	for name, fn := range unary {
		// abs встроен в expr-lang
		if name == "abs" {
			continue
		}
		opts = append(opts, expr.Function(name, exprUnary(name, fn)))
	}
	opts = append(opts, expr.Function("pow", func(params ...any) (any, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("pow: expected 2 arguments, got %d", len(params))
		}
		return math.Pow(toFloat(params[0]), toFloat(params[1])), nil
	}))

	program, err := expr.Compile(s, opts...)
	if err != nil {
		return nil, &EvalError{Expr: src, Err: err}
	}
	return &exprFunc{src: src, program: program}, nil
}

func exprUnary(name string, fn func(float64) float64) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(params))
		}
		return fn(toFloat(params[0])), nil
	}
}

func exprEnv(x float64) map[string]any {
	env := make(map[string]any, len(constants)+1)
	for k, v := range constants {
		env[k] = v
	}
	env["x"] = x
	return env
}

func (f *exprFunc) Eval(x float64) (float64, error) {
	out, err := expr.Run(f.program, exprEnv(x))
	if err != nil {
		return math.NaN(), &EvalError{Expr: f.src, X: x, HasX: true, Err: err}
	}
	return checkResult(f.src, x, out)
}
