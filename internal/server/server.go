package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/newcomer/internal/engine"
	"github.com/lazypower/newcomer/internal/ledger"
	"github.com/lazypower/newcomer/internal/panel"
	"github.com/lazypower/newcomer/internal/stats"
	"github.com/lazypower/newcomer/internal/store"
)

// Deps are the components the API exposes. Scheduler, Presenter, Panel
// and Ledger are optional; their routes answer 503 without them.
type Deps struct {
	Store      *store.Store
	Tracker    *engine.Tracker
	Scheduler  *engine.Scheduler
	Presenter  engine.Presenter
	Panel      *panel.Manager
	Ledger     *ledger.DB
	Thresholds engine.Thresholds
	Bands      stats.Bands
	Now        func() time.Time
	Logger     *slog.Logger
}

// Server is the newcomer HTTP API server.
type Server struct {
	deps    Deps
	logger  *slog.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over deps with the given version string.
func New(deps Deps, version string) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracker == nil {
		deps.Tracker = engine.NewTracker(deps.Store, nil, deps.Logger)
	}
	if deps.Bands == (stats.Bands{}) {
		deps.Bands = stats.DefaultBands()
	}
	if deps.Thresholds == (engine.Thresholds{}) {
		deps.Thresholds = engine.DefaultThresholds()
	}
	s := &Server{
		deps:    deps,
		logger:  deps.Logger,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/events", func(r chi.Router) {
			r.Post("/join", s.handleJoin)
			r.Post("/message", s.handleActivity(s.deps.Tracker.Message))
			r.Post("/reaction", s.handleActivity(s.deps.Tracker.Reaction))
			r.Post("/voice", s.handleActivity(s.deps.Tracker.VoiceJoin))
			r.Post("/button", s.handleButton)
		})

		r.Get("/members", s.handleListMembers)
		r.Get("/members/{memberID}", s.handleGetMember)
		r.Get("/stats", s.handleStats)

		r.Get("/panel", s.handleGetPanel)
		r.Post("/panel", s.handleUpdatePanel)
		r.Post("/panel/preview", s.handlePreview)

		r.Get("/outreach", s.handleListOutreach)
		r.Post("/scheduler/run", s.handleRunCycle)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ledgerOK := false
	if s.deps.Ledger != nil {
		ledgerOK = s.deps.Ledger.Ping() == nil
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"members": s.deps.Store.Len(),
		"ledger":  ledgerOK,
		"dir":     s.deps.Store.Dir(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
