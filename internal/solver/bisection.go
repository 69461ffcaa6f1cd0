package solver

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MaxIterations — жёсткий предел числа итераций
	MaxIterations = 1000

	// DefaultEps — допуск по умолчанию
	DefaultEps = 1e-6
)

// Iter — одна итерация метода бисекции.
// XL и XR — границы отрезка после сужения на этой итерации.
type Iter struct {
	K   int     `json:"iteration"`
	XM  float64 `json:"xm"`
	Err float64 `json:"error"`
	XL  float64 `json:"xl"`
	XR  float64 `json:"xr"`
}

// Result — итог успешного решения
type Result struct {
	Root       float64 `json:"result"`
	Iterations int     `json:"iterations"`
	Trace      []Iter  `json:"log"`
	// CapReached — остановились по MaxIterations, а не по eps
	CapReached bool `json:"capReached,omitempty"`
}

// Solve находит корень f на отрезке [xl, xr] методом бисекции.
// Чистая функция своих аргументов: при ошибке трасса не возвращается.
func Solve(f Func, xl, xr, eps float64) (Result, error) {
	return Bisect(f, xl, xr, eps, nil)
}

// Bisect — реализация метода бисекции.
// onIter вызывается после каждой итерации; если вернёт ErrStopped — алгоритм прерывается.
//
// Отрезок сужается по знаку правого конца: если f(xm)·f(xr) < 0, корень в [xm, xr]
// и xl = xm, иначе xr = xm. Инвариант sign f(xl) != sign f(xr) задан проверкой
// на входе и сохраняется каждым шагом, пока f(xm) != 0. Точный ноль в xm
// стягивает отрезок в точку, и следующий критерий равен нулю.
func Bisect(f Func, xl, xr, eps float64, onIter func(Iter) error) (Result, error) {
	if err := validate(xl, xr, eps); err != nil {
		return Result{}, err
	}

	fxl, err := evalAt(f, xl)
	if err != nil {
		return Result{}, err
	}
	fxr, err := evalAt(f, xr)
	if err != nil {
		return Result{}, err
	}

	switch {
	case fxl == 0:
		// корень уже на границе
		return Result{Root: xl, Trace: []Iter{}}, nil
	case fxr == 0:
		return Result{Root: xr, Trace: []Iter{}}, nil
	case !opposite(fxl, fxr):
		return Result{}, fmt.Errorf("%w: f(%g)=%g, f(%g)=%g", ErrNoSignChange, xl, fxl, xr, fxr)
	}

	xm := (xl + xr) / 2
	criterion := math.Inf(1)
	trace := make([]Iter, 0, 64)
	i := 0

	for criterion > eps && i < MaxIterations {
		fxm, err := evalAt(f, xm)
		if err != nil {
			return Result{}, err
		}
		fxr, err := evalAt(f, xr)
		if err != nil {
			return Result{}, err
		}

		switch {
		case fxm == 0:
			xl, xr = xm, xm
		case opposite(fxm, fxr):
			xl = xm
		default:
			xr = xm
		}

		xmnew := (xl + xr) / 2
		criterion = relErr(xmnew, xm)

		it := Iter{K: i + 1, XM: xmnew, Err: criterion, XL: xl, XR: xr}
		trace = append(trace, it)

		if onIter != nil {
			if err := onIter(it); err != nil {
				if errors.Is(err, ErrStopped) {
					return Result{}, ErrStopped
				}
				return Result{}, err
			}
		}

		xm = xmnew
		i++
	}

	return Result{
		Root:       xm,
		Iterations: i,
		Trace:      trace,
		CapReached: criterion > eps,
	}, nil
}

// relErr — относительное изменение середины; при нулевой середине — абсолютное
func relErr(xmnew, xm float64) float64 {
	d := math.Abs(xmnew - xm)
	if xmnew == 0 {
		return d
	}
	return d / math.Abs(xmnew)
}

func validate(xl, xr, eps float64) error {
	if !finite(xl) || !finite(xr) {
		return fmt.Errorf("%w: bracket ends must be finite numbers (xl=%v, xr=%v)", ErrInvalidInput, xl, xr)
	}
	if xl == xr {
		return fmt.Errorf("%w: bracket ends must differ (xl=xr=%v)", ErrInvalidInput, xl)
	}
	if !finite(eps) || eps <= 0 {
		return fmt.Errorf("%w: eps must be a positive finite number, got %v", ErrInvalidInput, eps)
	}
	return nil
}

// opposite — знаки ненулевых a и b различны
func opposite(a, b float64) bool {
	return (a < 0) != (b < 0)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// evalAt вычисляет f(x) и сводит любую неудачу к *EvalError
func evalAt(f Func, x float64) (float64, error) {
	y, err := f.Eval(x)
	if err != nil {
		var ee *EvalError
		if errors.As(err, &ee) {
			return y, ee
		}
		return y, &EvalError{X: x, HasX: true, Err: err}
	}
	if !finite(y) {
		return y, &EvalError{X: x, HasX: true, Err: fmt.Errorf("non-finite result %v", y)}
	}
	return y, nil
}
