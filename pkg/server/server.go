package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ha1tch/minired/pkg/config"
	"github.com/ha1tch/minired/pkg/metrics"
	"github.com/ha1tch/minired/pkg/models"
	"github.com/ha1tch/minired/pkg/service"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	service    *service.Service
	metrics    *metrics.Collector
	logger     zerolog.Logger
	router     *chi.Mux
	httpServer *http.Server
}

// New creates a new server instance. A nil collector disables /metrics.
func New(
	cfg *config.Config,
	svc *service.Service,
	collector *metrics.Collector,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		config:  cfg,
		service: svc,
		metrics: collector,
		logger:  logger.With().Str("component", "server").Logger(),
		router:  chi.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.instrument)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/people", func(r chi.Router) {
			r.Post("/", s.handleAddPerson)
			r.Get("/", s.handleListPeople)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleFindPerson)
				r.Delete("/", s.handleDeletePerson)

				r.Get("/friends", s.handleListFriends)
				r.Put("/friends/{friend}", s.handleCreateFriendship)
				r.Delete("/friends/{friend}", s.handleDeleteFriendship)

				r.Get("/recommendations/{attribute}", s.handleRecommend)
			})
		})

		r.Get("/stats", s.handleStats)
	})
}

// Start starts the HTTP server and blocks until it stops. It returns nil
// after a Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops a started server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the HTTP handler (useful for testing)
func (s *Server) Handler() http.Handler {
	return s.router
}

// instrument logs each request and records its metrics under the matched
// route pattern
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		s.metrics.ObserveHTTP(r.Method, route, status, duration)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request handled")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := s.service.Info()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": config.Version,
		"store":   info.Type,
	})
}

// handleVersion returns server version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version": config.Version,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	var resp models.ErrorResponse
	resp.Error.Message = message
	resp.Error.Status = status
	s.writeJSON(w, status, resp)
}
