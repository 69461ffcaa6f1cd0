package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"bisection/internal/export"
	"bisection/internal/report"
	"bisection/internal/solver"
	"bisection/internal/store"
)

// Solve — синхронное решение; ответ {"error"} или {"iterations","result","log"}
func (s *Server) Solve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}

	p, ok := s.decodeParams(w, r)
	if !ok {
		return
	}

	id := s.newID()
	res, err := s.solve(p)
	s.metrics.Observe(res, err)
	s.logOutcome(id, p, res, err)
	s.persist(r.Context(), id, p, time.Now().UTC(), res, err)

	w.Header().Set("X-Run-ID", id)
	writeJSON(w, http.StatusOK, solver.Summarize(res, err))
}

// StartRun запускает решение в фоне; итерации идут в /stream
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}

	p, ok := s.decodeParams(w, r)
	if !ok {
		return
	}
	if p.XL == p.XR || !isFinite(p.XL) || !isFinite(p.XR) {
		http.Error(w, "требуются конечные xl != xr", http.StatusBadRequest)
		return
	}

	f, err := solver.Compile(s.backend, p.Expr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, solver.Summarize(solver.Result{}, err))
		return
	}

	// предварительно считаем значения функции для графика
	xs, ys := sample(f, p.XL, p.XR, s.plotPoints)

	id := s.newID()
	ctx, cancel := context.WithCancel(context.Background())
	rs := &RunState{
		ID:        id,
		Params:    p,
		Evaluator: s.backend,
		CreatedAt: time.Now().UTC(),
		Cancel:    cancel,
	}
	s.register(rs)

	go s.run(ctx, rs, f)

	writeJSON(w, http.StatusOK, map[string]any{
		"id": id,
		"xs": xs,
		"ys": ys,
	})
}

// run — асинхронный расчёт с публикацией итераций в hub
func (s *Server) run(ctx context.Context, rs *RunState, f solver.Func) {
	defer rs.Cancel()
	defer s.hub.Close(rs.ID)

	s.metrics.RunStarted()
	defer s.metrics.RunFinished()

	s.publish(rs.ID, map[string]any{"type": "start", "id": rs.ID})

	onIter := func(it solver.Iter) error {
		select {
		case <-ctx.Done():
			return solver.ErrStopped
		default:
		}
		rs.appendIter(it)
		s.publish(rs.ID, map[string]any{"type": "iter", "iter": it})
		return nil
	}

	p := rs.Params
	res, err := solver.Bisect(f, p.XL, p.XR, p.Eps, onIter)
	rs.finish(res, err)
	s.metrics.Observe(res, err)
	s.logOutcome(rs.ID, p, res, err)
	s.persist(context.Background(), rs.ID, p, rs.CreatedAt, res, err)

	switch {
	case errors.Is(err, solver.ErrStopped):
		s.publish(rs.ID, map[string]any{"type": "stopped"})
	case err != nil:
		s.publish(rs.ID, map[string]any{"type": "error", "err": solver.UserMessage(err)})
	default:
		s.publish(rs.ID, map[string]any{
			"type":       "done",
			"x":          res.Root,
			"iterations": res.Iterations,
			"capReached": res.CapReached,
		})
	}
}

// StopRun — прерывание фонового решения
func (s *Server) StopRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "только POST", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	rs := s.runs.get(id)
	if rs == nil {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	if rs.Cancel != nil {
		rs.Cancel()
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stream — SSE-стрим итераций; закрывается после done/error/stopped
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}
	if s.runs.get(id) == nil {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	backlog, ch, cancel := s.hub.Subscribe(id)
	defer cancel()

	for _, msg := range backlog {
		writeEvent(w, msg)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, msg string) {
	fmt.Fprintf(w, "event: msg\n")
	fmt.Fprintf(w, "data: %s\n\n", msg)
}

// Export — выгрузка итераций в csv, json или md
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	found, ok := s.lookup(r.Context(), id)
	if !ok {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}
	if found.err != nil {
		http.Error(w, "запуск завершился ошибкой: "+solver.UserMessage(found.err), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", "attachment; filename=iterations_"+id+"."+string(f))
	if err := export.Write(w, f, found.res); err != nil {
		s.log.Error("export failed", "id", id, "error", err)
	}
}

// Report — HTML-отчёт по запуску
func (s *Server) Report(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "требуется id", http.StatusBadRequest)
		return
	}

	found, ok := s.lookup(r.Context(), id)
	if !ok {
		http.Error(w, "неизвестный id", http.StatusNotFound)
		return
	}

	page, err := report.HTML(found.in, found.res, found.err)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// History — последние запуски из sqlite
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "история отключена", http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit должен быть положительным числом", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("history query failed", "error", err)
		http.Error(w, "ошибка чтения истории", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) decodeParams(w http.ResponseWriter, r *http.Request) (RunParams, bool) {
	var p RunParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "ошибка JSON: "+err.Error(), http.StatusBadRequest)
		return p, false
	}
	if p.Eps == 0 {
		p.Eps = s.defaultEps
	}
	return p, true
}

func (s *Server) solve(p RunParams) (solver.Result, error) {
	f, err := solver.Compile(s.backend, p.Expr)
	if err != nil {
		return solver.Result{}, err
	}
	return solver.Solve(f, p.XL, p.XR, p.Eps)
}

// found — данные запуска из памяти процесса или из истории
type found struct {
	in  report.Input
	res solver.Result
	err error
}

func (s *Server) lookup(ctx context.Context, id string) (found, bool) {
	if rs := s.runs.get(id); rs != nil {
		res, _, err := rs.Snapshot()
		p := rs.Params
		return found{
			in:  report.Input{Expr: p.Expr, XL: p.XL, XR: p.XR, Eps: p.Eps},
			res: res,
			err: err,
		}, true
	}
	if s.history == nil {
		return found{}, false
	}

	run, err := s.history.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("history lookup failed", "id", id, "error", err)
		}
		return found{}, false
	}

	out := found{
		in: report.Input{Expr: run.Expr, XL: run.XL, XR: run.XR, Eps: run.Eps},
		res: solver.Result{
			Root:       run.Root,
			Iterations: run.Iterations,
			Trace:      run.Trace,
			CapReached: run.CapReached,
		},
	}
	if run.Status != store.StatusOK {
		out.err = errors.New(run.Error)
	}
	return out, true
}

func (s *Server) persist(ctx context.Context, id string, p RunParams, at time.Time, res solver.Result, err error) {
	if s.history == nil {
		return
	}

	run := &store.Run{
		ID:        id,
		Expr:      p.Expr,
		XL:        p.XL,
		XR:        p.XR,
		Eps:       p.Eps,
		Evaluator: string(s.backend),
		Status:    store.StatusOK,
		CreatedAt: at,
	}
	switch {
	case errors.Is(err, solver.ErrStopped):
		run.Status = store.StatusStopped
		run.Error = solver.UserMessage(err)
	case err != nil:
		run.Status = store.StatusError
		run.Error = solver.UserMessage(err)
	default:
		run.Root = res.Root
		run.Iterations = res.Iterations
		run.CapReached = res.CapReached
		run.Trace = res.Trace
	}

	// NaN/Inf в sqlite не пишем
	if !isFinite(run.XL) || !isFinite(run.XR) || !isFinite(run.Eps) {
		return
	}
	if saveErr := s.history.Save(ctx, run); saveErr != nil {
		s.log.Error("failed to save run", "id", id, "error", saveErr)
	}
}

func (s *Server) logOutcome(id string, p RunParams, res solver.Result, err error) {
	switch {
	case err == nil && res.CapReached:
		s.log.Warn("iteration cap reached", "id", id, "expr", p.Expr, "iterations", res.Iterations)
	case err == nil:
		s.log.Info("solved", "id", id, "expr", p.Expr, "root", res.Root, "iterations", res.Iterations)
	case errors.Is(err, solver.ErrStopped):
		s.log.Info("run stopped", "id", id)
	default:
		s.log.Debug("solve failed", "id", id, "expr", p.Expr, "error", err)
	}
}

func (s *Server) publish(id string, payload map[string]any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("failed to encode event", "id", id, "error", err)
		return
	}
	s.hub.Publish(id, string(msg))
}

// sample — n точек графика f на отрезке; NaN/Inf и ошибки дают null
func sample(f solver.Func, a, b float64, n int) ([]float64, []*float64) {
	if a > b {
		a, b = b, a
	}
	xs := make([]float64, n)
	ys := make([]*float64, n)
	h := (b - a) / float64(n-1)
	for i := 0; i < n; i++ {
		x := a + float64(i)*h
		xs[i] = x
		y, err := f.Eval(x)
		if err != nil || !isFinite(y) {
			continue
		}
		ys[i] = &y
	}
	return xs, ys
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newRunID — идентификатор запуска
func newRunID() string { return uuid.NewString() }
