// Package metrics exposes Prometheus counters for solve runs.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bisection/internal/solver"
)

// Metrics — счётчики сервиса на собственном реестре
type Metrics struct {
	registry   *prometheus.Registry
	solves     *prometheus.CounterVec
	iterations prometheus.Histogram
	activeRuns prometheus.Gauge
}

// New регистрирует метрики в новом реестре
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bisection",
			Name:      "solves_total",
			Help:      "Solve calls by outcome.",
		}, []string{"outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bisection",
			Name:      "iterations",
			Help:      "Iterations per successful solve.",
			Buckets:   []float64{1, 5, 10, 20, 30, 50, 100, 500, solver.MaxIterations},
		}),
		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bisection",
			Name:      "active_runs",
			Help:      "Asynchronous runs in progress.",
		}),
	}
	m.registry.MustRegister(m.solves, m.iterations, m.activeRuns)
	return m
}

// Outcome — метка исхода решения
func Outcome(res solver.Result, err error) string {
	switch {
	case err == nil && res.CapReached:
		return "cap_reached"
	case err == nil:
		return "converged"
	case errors.Is(err, solver.ErrStopped):
		return "stopped"
	case errors.Is(err, solver.ErrNoSignChange):
		return "no_sign_change"
	case errors.Is(err, solver.ErrEvaluation):
		return "evaluation_error"
	default:
		return "invalid_input"
	}
}

// Observe учитывает одно решение
func (m *Metrics) Observe(res solver.Result, err error) {
	m.solves.WithLabelValues(Outcome(res, err)).Inc()
	if err == nil {
		m.iterations.Observe(float64(res.Iterations))
	}
}

// RunStarted и RunFinished ведут счётчик асинхронных запусков
func (m *Metrics) RunStarted()  { m.activeRuns.Inc() }
func (m *Metrics) RunFinished() { m.activeRuns.Dec() }

// Handler — обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
