package solver

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Knetic/govaluate"
)

// Func — интерфейс для абстрактной функции f(x)
type Func interface {
	Eval(x float64) (float64, error)
}

// FuncOf — адаптер обычной функции Go к интерфейсу Func
type FuncOf func(x float64) (float64, error)

func (f FuncOf) Eval(x float64) (float64, error) { return f(x) }

// Backend — имя движка вычисления выражений
type Backend string

const (
	BackendGovaluate Backend = "govaluate"
	BackendExpr      Backend = "expr"
)

// Compile создаёт вычислимую функцию по строке f(x) выбранным движком.
// Пустое имя движка означает govaluate.
func Compile(backend Backend, expr string) (Func, error) {
	switch backend {
	case "", BackendGovaluate:
		return NewEvalFunc(expr)
	case BackendExpr:
		return NewExprFunc(expr)
	default:
		return nil, fmt.Errorf("%w: unknown evaluator %q", ErrInvalidInput, backend)
	}
}

// constants доступны в выражении наравне с x
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// unary — функции одного аргумента, общие для обоих движков
var unary = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"exp":   math.Exp,
	"log":   math.Log,
	"ln":    math.Log,
	"log10": math.Log10,
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
}

// evalFunc — реализация Func на основе govaluate
type evalFunc struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// NewEvalFunc создаёт вычислимую функцию по строке f(x) через govaluate.
// Запись сначала приводится к canonical: в самом govaluate ^ — xor, а унарный
// минус сильнее **.
func NewEvalFunc(expr string) (Func, error) {
	funcs := make(map[string]govaluate.ExpressionFunction, len(unary)+1)
	for name, fn := range unary {
		funcs[name] = govaluateUnary(name, fn)
	}
	funcs["pow"] = func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow: expected 2 arguments, got %d", len(args))
		}
		return math.Pow(toFloat(args[0]), toFloat(args[1])), nil
	}

	src, err := canonical(expr)
	if err != nil {
		return nil, &EvalError{Expr: expr, Err: err}
	}
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(src, funcs)
	if err != nil {
		return nil, &EvalError{Expr: expr, Err: err}
	}

	return &evalFunc{src: expr, expr: parsed}, nil
}

func govaluateUnary(name string, fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(args))
		}
		return fn(toFloat(args[0])), nil
	}
}

// Eval не меняет общего состояния, поэтому безопасен для параллельных вызовов
func (f *evalFunc) Eval(x float64) (float64, error) {
	params := make(map[string]interface{}, len(constants)+1)
	for k, v := range constants {
		params[k] = v
	}
	params["x"] = x

	v, err := f.expr.Evaluate(params)
	if err != nil {
		return math.NaN(), &EvalError{Expr: f.src, X: x, HasX: true, Err: err}
	}
	return checkResult(f.src, x, v)
}

// checkResult приводит результат движка к float64 и отбрасывает NaN/Inf
func checkResult(src string, x float64, v interface{}) (float64, error) {
	var y float64
	switch t := v.(type) {
	case float64:
		y = t
	case int:
		y = float64(t)
	case int64:
		y = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN(), &EvalError{Expr: src, X: x, HasX: true, Err: err}
		}
		y = parsed
	default:
		return math.NaN(), &EvalError{Expr: src, X: x, HasX: true, Err: fmt.Errorf("expression did not return a number: %T", v)}
	}

	if math.IsNaN(y) || math.IsInf(y, 0) {
		return y, &EvalError{Expr: src, X: x, HasX: true, Err: fmt.Errorf("non-finite result %v", y)}
	}
	return y, nil
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
