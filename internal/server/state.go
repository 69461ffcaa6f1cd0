package server

import (
	"context"
	"sync"
	"time"

	"bisection/internal/solver"
)

// параметры запуска метода
type RunParams struct {
	Expr string  `json:"expr"`
	XL   float64 `json:"xl"`
	XR   float64 `json:"xr"`
	Eps  float64 `json:"eps"`
}

// состояние одного запуска
type RunState struct {
	ID        string
	Params    RunParams
	Evaluator solver.Backend
	CreatedAt time.Time
	Cancel    context.CancelFunc

	mu     sync.Mutex
	iters  []solver.Iter
	result *solver.Result
	err    error
	done   bool
}

func (rs *RunState) appendIter(it solver.Iter) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.iters = append(rs.iters, it)
}

func (rs *RunState) finish(res solver.Result, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.done = true
	rs.err = err
	if err == nil {
		rs.result = &res
	}
}

// Snapshot — копия состояния: итоговый результат, если расчёт завершён,
// иначе накопленные итерации
func (rs *RunState) Snapshot() (res solver.Result, done bool, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.result != nil {
		res = *rs.result
		res.Trace = append([]solver.Iter(nil), rs.result.Trace...)
		return res, true, nil
	}
	res.Trace = append([]solver.Iter(nil), rs.iters...)
	res.Iterations = len(res.Trace)
	if n := len(res.Trace); n > 0 {
		res.Root = res.Trace[n-1].XM
	}
	return res, rs.done, rs.err
}

func (rs *RunState) isDone() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.done
}

// registry — запуски текущего процесса по id.
// Хранит не больше limit запусков: лишние завершённые вытесняются, начиная
// со старых, и для каждого вызывается onEvict. Идущие запуски не вытесняются.
type registry struct {
	mu      sync.Mutex
	runs    map[string]*RunState
	order   []string
	limit   int
	onEvict func(id string)
}

func newRegistry(limit int, onEvict func(id string)) *registry {
	return &registry{runs: map[string]*RunState{}, limit: limit, onEvict: onEvict}
}

func (r *registry) save(rs *RunState) {
	r.mu.Lock()
	if _, ok := r.runs[rs.ID]; !ok {
		r.order = append(r.order, rs.ID)
	}
	r.runs[rs.ID] = rs
	evicted := r.evictLocked()
	r.mu.Unlock()

	if r.onEvict != nil {
		for _, id := range evicted {
			r.onEvict(id)
		}
	}
}

func (r *registry) evictLocked() []string {
	var evicted []string
	kept := r.order[:0]
	excess := len(r.runs) - r.limit
	for _, id := range r.order {
		if excess > 0 && r.runs[id].isDone() {
			delete(r.runs, id)
			evicted = append(evicted, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return evicted
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func (r *registry) get(id string) *RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id]
}
