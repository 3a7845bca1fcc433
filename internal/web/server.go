package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/facerec/internal/catalog"
	"github.com/kozaktomas/facerec/internal/config"
	"github.com/kozaktomas/facerec/internal/roster"
	"github.com/kozaktomas/facerec/internal/web/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// requestTimeout bounds a single request, extraction included.
const requestTimeout = 2 * time.Minute

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	manager    *catalog.Manager
	rosters    roster.Provider
	logger     *slog.Logger
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, manager *catalog.Manager, rosters roster.Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	s := &Server{
		config:  cfg,
		router:  r,
		manager: manager,
		rosters: rosters,
		logger:  logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      otelhttp.NewHandler(r, "facerec"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the instrumented root handler served by Start.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
