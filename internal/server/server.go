package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lazypower/vigil/internal/guardian"
	"github.com/lazypower/vigil/internal/liveness"
	"github.com/lazypower/vigil/internal/safe"
	"github.com/lazypower/vigil/internal/store"
)

// Deps are the components the API serves.
type Deps struct {
	DB       *store.DB
	Wallet   *safe.Safe
	Tracker  *liveness.Tracker
	Guardian *guardian.Guardian
	// Clock checks refresh proof freshness. Defaults to the system clock.
	Clock  liveness.Clock
	Logger zerolog.Logger
}

// Server is the vigil HTTP API server.
type Server struct {
	db       *store.DB
	wallet   *safe.Safe
	tracker  *liveness.Tracker
	guardian *guardian.Guardian
	clock    liveness.Clock
	log      zerolog.Logger

	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over deps with the given version string.
func New(deps Deps, version string) *Server {
	s := &Server{
		db:       deps.DB,
		wallet:   deps.Wallet,
		tracker:  deps.Tracker,
		guardian: deps.Guardian,
		clock:    deps.Clock,
		log:      deps.Logger.With().Str("component", "server").Logger(),
		version:  version,
		started:  time.Now(),
	}
	if s.clock == nil {
		s.clock = liveness.SystemClock{}
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
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/safe", s.handleSafe)
		r.Post("/transactions", s.handleExecTransaction)

		r.Route("/liveness", func(r chi.Router) {
			r.Post("/refresh", s.handleRefresh)
			r.Get("/{address}", s.handleLastActive)
		})

		r.Route("/guardian", func(r chi.Router) {
			r.Get("/", s.handleGuardian)
			r.Get("/threshold/{n}", s.handleThreshold)
			r.Get("/inactive", s.handleInactive)
			r.Post("/plan", s.handlePlan)
			r.Post("/remove", s.handleRemove)
		})

		r.Get("/events", s.handleEvents)
	})

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		ev := s.log.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
		"safe":    s.wallet.Address(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: errorKind(err)})
}
