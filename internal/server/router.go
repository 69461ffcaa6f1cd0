package server

import (
	"context"
	"embed"
	"log/slog"
	"net/http"

	"bisection/internal/config"
	"bisection/internal/logging"
	"bisection/internal/metrics"
	"bisection/internal/solver"
	"bisection/internal/sse"
	"bisection/internal/store"
)

//go:embed static/index.html
var static embed.FS

// HistoryStore — то, что сервер использует из internal/store
type HistoryStore interface {
	Save(ctx context.Context, r *store.Run) error
	Get(ctx context.Context, id string) (*store.Run, error)
	Recent(ctx context.Context, limit int) ([]*store.Run, error)
}

// Server — HTTP-API решателя
type Server struct {
	backend    solver.Backend
	defaultEps float64
	plotPoints int

	hub     *sse.Hub
	runs    *registry
	history HistoryStore
	metrics *metrics.Metrics
	log     *slog.Logger
	newID   func() string
}

// Option настраивает Server
type Option func(*Server)

// WithHistory включает запись запусков в историю
func WithHistory(h HistoryStore) Option {
	return func(s *Server) { s.history = h }
}

// WithMetrics подменяет набор метрик
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New собирает сервер по настройкам
func New(cfg *config.Config, opts ...Option) *Server {
	maxRuns := cfg.MaxRuns
	if maxRuns < 1 {
		maxRuns = config.DefaultMaxRuns
	}
	hub := sse.NewHub(0)
	s := &Server{
		backend:    cfg.Backend(),
		defaultEps: cfg.DefaultEps,
		plotPoints: cfg.PlotPoints,
		hub:        hub,
		runs:       newRegistry(maxRuns, hub.Forget),
		log:        logging.New("server"),
		newID:      newRunID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.plotPoints < 2 {
		s.plotPoints = 2
	}
	return s
}

// register делает запуск видимым для /stop, /stream и /export
func (s *Server) register(rs *RunState) {
	s.hub.Open(rs.ID)
	s.runs.save(rs)
}

// NewRouter — маршруты API и встроенная страница
func (s *Server) NewRouter() http.Handler {
	mux := http.NewServeMux()

	// API эндпоинты
	mux.HandleFunc("/solve", s.Solve)
	mux.HandleFunc("/start", s.StartRun)
	mux.HandleFunc("/stop", s.StopRun)
	mux.HandleFunc("/stream", s.Stream)
	mux.HandleFunc("/export", s.Export)
	mux.HandleFunc("/report", s.Report)
	mux.HandleFunc("/history", s.History)
	mux.Handle("/metrics", s.metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.ServeFileFS(w, r, static, "static/index.html")
	})

	return mux
}
