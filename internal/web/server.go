// Package web provides the HTTP server for uploading CSV files, running
// the cleaning pipeline on them and downloading the results.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
	"github.com/JonMunkholm/csvclean/internal/store"
	"github.com/JonMunkholm/csvclean/internal/web/middleware"
)

// Server is the HTTP server for the cleaning service.
type Server struct {
	cfg      *config.Config
	rules    schema.RulesByCsv
	registry *rules.Registry
	store    store.Store
	limiter  *core.Limiter
	logger   *slog.Logger
	now      func() time.Time

	router *chi.Mux
	server *http.Server
}

// NewServer creates a Server. A nil logger means slog.Default.
func NewServer(cfg *config.Config, rs schema.RulesByCsv, reg *rules.Registry, st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		rules:    rs,
		registry: reg,
		store:    st,
		limiter:  core.NewLimiter(cfg.Run.MaxConcurrent, cfg.Run.MaxWait),
		logger:   logger,
		now:      time.Now,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(s.withLogger)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/runs/{runID}", s.handleRunPage)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security.RequireAPIKey, s.cfg.Security.APIKeys))

		r.Get("/status", s.handleStatus)

		// Rules
		r.Get("/rules", s.handleListRules)
		r.Get("/configs", s.handleListConfigs)
		r.Get("/configs/{file}", s.handleGetConfig)

		// Runs
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Get("/runs/{runID}/cleaned", s.handleRunCleaned)
		r.Get("/runs/{runID}/errors", s.handleRunErrors)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight runs until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if st := s.limiter.Status(); st.Active > 0 {
		s.logger.Info("waiting for runs to complete", "active", st.Active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			s.logger.Warn("runs did not complete in time", "error", err)
		}
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Limiter returns the run limiter.
func (s *Server) Limiter() *core.Limiter {
	return s.limiter
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), s.logger)))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with the given status. Encoding errors are only
// logged since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
