// Package server assembles the HTTP router and runs the listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/handlers"
	"github.com/ekaya-inc/genbi-engine/pkg/middleware"
)

// RouteRegistrar is implemented by every handler in pkg/handlers.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Server owns the HTTP listener.
type Server struct {
	cfg     *config.ServerConfig
	httpSrv *http.Server
	logger  *zap.Logger
}

// NewRouter builds the API router. health is mounted at the root and under
// the base path; api handlers only under the base path.
func NewRouter(cfg *config.ServerConfig, logger *zap.Logger, health RouteRegistrar, api ...RouteRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health.RegisterRoutes(r)

	basePath := "/" + strings.Trim(cfg.BasePath, "/")
	r.Route(basePath, func(r chi.Router) {
		health.RegisterRoutes(r)
		for _, h := range api {
			h.RegisterRoutes(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = handlers.ErrorResponse(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = handlers.ErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	return gzhttp.GzipHandler(r)
}

// New creates a server for handler.
func New(cfg *config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		httpSrv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Named("server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			zap.String("addr", s.httpSrv.Addr),
			zap.Bool("tls", s.cfg.TLSEnabled()),
		)
		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertPath, s.cfg.TLSKeyPath)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return <-errCh
}
