package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bisection/internal/config"
	"bisection/internal/solver"
	"bisection/internal/store"
)

func newTestServer(t *testing.T, withHistory bool) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PlotPoints = 5

	var opts []Option
	if withHistory {
		st, err := store.NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		opts = append(opts, WithHistory(st))
	}

	s := New(cfg, opts...)
	ts := httptest.NewServer(s.NewRouter())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSummary(t *testing.T, resp *http.Response) solver.Summary {
	t.Helper()
	var s solver.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func TestSolveEndpoint(t *testing.T) {
	_, ts := newTestServer(t, false)

	t.Run("converges", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/solve", RunParams{Expr: "x^2 - 2", XL: 0, XR: 2})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Run-ID"))

		s := decodeSummary(t, resp)
		require.True(t, s.OK())
		assert.Equal(t, 20, s.Result.Iterations)
		assert.Len(t, s.Result.Trace, 20)
		assert.InDelta(t, 1.414214, s.Result.Root, 1e-6)
	})

	t.Run("no sign change", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/solve", RunParams{Expr: "x^2 + 1", XL: -1, XR: 1})
		s := decodeSummary(t, resp)
		assert.Equal(t, "Try another equation or bracket", s.Error)
	})

	t.Run("invalid equation", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/solve", RunParams{Expr: "y + 1", XL: 0, XR: 1})
		s := decodeSummary(t, resp)
		assert.Equal(t, "Invalid equation", s.Error)
	})

	t.Run("bad json", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/solve", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("method", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/solve")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestSolvePersistsAndExports(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp := postJSON(t, ts.URL+"/solve", RunParams{Expr: "x^2 - 2", XL: 0, XR: 2, Eps: 1e-6})
	id := resp.Header.Get("X-Run-ID")
	require.NotEmpty(t, id)

	hist, err := http.Get(ts.URL + "/history?limit=5")
	require.NoError(t, err)
	defer hist.Body.Close()
	var runs []store.Run
	require.NoError(t, json.NewDecoder(hist.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, store.StatusOK, runs[0].Status)

	csvResp, err := http.Get(ts.URL + "/export?format=csv&id=" + id)
	require.NoError(t, err)
	defer csvResp.Body.Close()
	require.Equal(t, http.StatusOK, csvResp.StatusCode)
	records, err := csv.NewReader(csvResp.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 21)

	rep, err := http.Get(ts.URL + "/report?id=" + id)
	require.NoError(t, err)
	defer rep.Body.Close()
	body, _ := io.ReadAll(rep.Body)
	assert.Contains(t, string(body), "<table>")
	assert.Contains(t, string(body), "Root ≈ 1.414214")
}

func TestExportFailedRunConflicts(t *testing.T) {
	_, ts := newTestServer(t, true)

	resp := postJSON(t, ts.URL+"/solve", RunParams{Expr: "x^2 + 1", XL: -1, XR: 1})
	id := resp.Header.Get("X-Run-ID")

	exp, err := http.Get(ts.URL + "/export?id=" + id)
	require.NoError(t, err)
	defer exp.Body.Close()
	assert.Equal(t, http.StatusConflict, exp.StatusCode)

	rep, err := http.Get(ts.URL + "/report?id=" + id)
	require.NoError(t, err)
	defer rep.Body.Close()
	body, _ := io.ReadAll(rep.Body)
	assert.Contains(t, string(body), "Try another equation or bracket")
}

func TestUnknownIDs(t *testing.T) {
	_, ts := newTestServer(t, false)

	for _, path := range []string{"/export?id=nope", "/report?id=nope", "/stream?id=nope", "/history"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	resp, err := http.Post(ts.URL+"/stop?id=nope", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartAndStream(t *testing.T) {
	s, ts := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/start", RunParams{Expr: "x^2 - 2", XL: 0, XR: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var start struct {
		ID string     `json:"id"`
		Xs []float64  `json:"xs"`
		Ys []*float64 `json:"ys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&start))
	require.NotEmpty(t, start.ID)
	assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2}, start.Xs)
	require.NotNil(t, start.Ys[0])
	assert.Equal(t, -2.0, *start.Ys[0])

	stream, err := http.Get(ts.URL + "/stream?id=" + start.ID)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	// поток закрывается сервером после события done
	body, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	events := string(body)
	assert.Contains(t, events, `"type":"start"`)
	assert.Equal(t, 20, strings.Count(events, `"type":"iter"`))
	assert.Contains(t, events, `"type":"done"`)

	res, done, err := s.runs.get(start.ID).Snapshot()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 20, res.Iterations)

	stop, err := http.Post(ts.URL+"/stop?id="+start.ID, "", nil)
	require.NoError(t, err)
	stop.Body.Close()
	assert.Equal(t, http.StatusNoContent, stop.StatusCode)
}

func TestStartRejectsBadInput(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/start", RunParams{Expr: "x", XL: 1, XR: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/start", RunParams{Expr: "x +* (", XL: 0, XR: 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid equation", decodeSummary(t, resp).Error)
}

func TestStartPlotSkipsNonFinite(t *testing.T) {
	s, ts := newTestServer(t, false)

	resp := postJSON(t, ts.URL+"/start", RunParams{Expr: "log(x)", XL: -1, XR: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var start struct {
		ID string     `json:"id"`
		Ys []*float64 `json:"ys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&start))
	assert.Nil(t, start.Ys[0])
	assert.NotNil(t, start.Ys[4])

	stream, err := http.Get(ts.URL + "/stream?id=" + start.ID)
	require.NoError(t, err)
	defer stream.Body.Close()
	body, _ := io.ReadAll(stream.Body)
	assert.Contains(t, string(body), `"type":"error"`)
	assert.Contains(t, string(body), "Invalid equation")

	_, _, runErr := s.runs.get(start.ID).Snapshot()
	assert.ErrorIs(t, runErr, solver.ErrEvaluation)
}

func TestRunStoppedByCancel(t *testing.T) {
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	defer st.Close()
	s := New(config.DefaultConfig(), WithHistory(st))

	f, err := solver.NewEvalFunc("x^2 - 2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rs := &RunState{
		ID:        "stopped-run",
		Params:    RunParams{Expr: "x^2 - 2", XL: 0, XR: 2, Eps: 1e-6},
		CreatedAt: time.Now().UTC(),
		Cancel:    cancel,
	}
	s.register(rs)
	s.run(ctx, rs, f)

	backlog, _, unsub := s.hub.Subscribe(rs.ID)
	defer unsub()
	require.Len(t, backlog, 2)
	assert.Contains(t, backlog[1], `"type":"stopped"`)

	_, done, runErr := rs.Snapshot()
	assert.True(t, done)
	assert.ErrorIs(t, runErr, solver.ErrStopped)

	saved, err := st.Get(context.Background(), rs.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusStopped, saved.Status)
	assert.Empty(t, saved.Trace)
}

func TestMetricsAndIndex(t *testing.T) {
	_, ts := newTestServer(t, false)
	postJSON(t, ts.URL+"/solve", RunParams{Expr: "x^2 - 2", XL: 0, XR: 2})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `bisection_solves_total{outcome="converged"} 1`)

	idx, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer idx.Body.Close()
	page, _ := io.ReadAll(idx.Body)
	assert.Contains(t, string(page), "Bisection Method")

	missing, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
