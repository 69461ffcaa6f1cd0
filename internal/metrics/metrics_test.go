package metrics

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bisection/internal/solver"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "converged", Outcome(solver.Result{Iterations: 3}, nil))
	assert.Equal(t, "cap_reached", Outcome(solver.Result{CapReached: true}, nil))
	assert.Equal(t, "no_sign_change", Outcome(solver.Result{}, fmt.Errorf("wrap: %w", solver.ErrNoSignChange)))
	assert.Equal(t, "evaluation_error", Outcome(solver.Result{}, &solver.EvalError{Err: fmt.Errorf("boom")}))
	assert.Equal(t, "stopped", Outcome(solver.Result{}, solver.ErrStopped))
	assert.Equal(t, "invalid_input", Outcome(solver.Result{}, solver.ErrInvalidInput))
}

func TestObserveCounts(t *testing.T) {
	m := New()
	m.Observe(solver.Result{Iterations: 20}, nil)
	m.Observe(solver.Result{Iterations: 20}, nil)
	m.Observe(solver.Result{}, solver.ErrNoSignChange)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.solves.WithLabelValues("converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.solves.WithLabelValues("no_sign_change")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.iterations))

	m.RunStarted()
	m.RunStarted()
	m.RunFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRuns))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Observe(solver.Result{Iterations: 5}, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `bisection_solves_total{outcome="converged"} 1`), body)
	assert.Contains(t, body, "bisection_iterations_bucket")
}
