package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bisection/internal/solver"
)

func solve(t *testing.T, expr string, xl, xr float64) (Input, solver.Result, error) {
	t.Helper()
	f, err := solver.NewEvalFunc(expr)
	require.NoError(t, err)
	res, err := solver.Solve(f, xl, xr, 1e-6)
	return Input{Expr: expr, XL: xl, XR: xr, Eps: 1e-6}, res, err
}

func TestMarkdownSuccess(t *testing.T) {
	in, res, err := solve(t, "x^2 - 2", 0, 2)
	require.NoError(t, err)

	md := Markdown(in, res, nil)
	assert.Contains(t, md, "f(x) = x^2 - 2")
	assert.Contains(t, md, "Root ≈ 1.414214 (iterations: 20)")
	assert.NotContains(t, md, "Iteration cap")
}

func TestMarkdownError(t *testing.T) {
	in, res, err := solve(t, "x^2 + 1", -1, 1)
	require.Error(t, err)

	md := Markdown(in, res, err)
	assert.Contains(t, md, "**Error:** Try another equation or bracket")
}

func TestHTMLRendersTable(t *testing.T) {
	in, res, err := solve(t, "x^2 - 2", 0, 2)
	require.NoError(t, err)

	page, err := HTML(in, res, nil)
	require.NoError(t, err)

	s := string(page)
	assert.Contains(t, s, "<table>")
	assert.Contains(t, s, "<h1>")
	assert.Contains(t, s, "<title>Bisection: x^2 - 2</title>")
}
