package solver

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSignChange — f(xl) и f(xr) одного знака, корень не отделён
	ErrNoSignChange = errors.New("bisection: no sign change in bracket")

	// ErrEvaluation — выражение не удалось вычислить (синтаксис, неизвестное имя, NaN/Inf)
	ErrEvaluation = errors.New("bisection: expression evaluation failed")

	// ErrInvalidInput — некорректные xl, xr или eps
	ErrInvalidInput = errors.New("bisection: invalid input")

	// ErrStopped — специальная ошибка для принудительной остановки через onIter
	ErrStopped = errors.New("bisection: stopped by callback")
)

// EvalError — ошибка вычисления f в конкретной точке.
// При ошибке компиляции выражения X не заполняется (HasX == false).
type EvalError struct {
	Expr string
	X    float64
	HasX bool
	Err  error
}

func (e *EvalError) Error() string {
	if e.HasX {
		return fmt.Sprintf("%s: f(%g): %v", ErrEvaluation, e.X, e.Err)
	}
	if e.Expr != "" {
		return fmt.Sprintf("%s: %q: %v", ErrEvaluation, e.Expr, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrEvaluation, e.Err)
}

func (e *EvalError) Unwrap() []error {
	return []error{ErrEvaluation, e.Err}
}

// UserMessage — короткое сообщение для пользователя по ошибке решения
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSignChange):
		return "Try another equation or bracket"
	case errors.Is(err, ErrEvaluation):
		return "Invalid equation"
	case errors.Is(err, ErrStopped):
		return "Stopped"
	default:
		return err.Error()
	}
}
