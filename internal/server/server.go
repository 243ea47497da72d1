// Package server assembles the order service HTTP API and runs it until the
// context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"restaurant-system/internal/httpx"
	"restaurant-system/internal/logger"
	"restaurant-system/internal/services/auth"
	"restaurant-system/internal/services/menu"
	"restaurant-system/internal/services/order"
)

const shutdownTimeout = 10 * time.Second

// Handlers are the route groups mounted under /api
type Handlers struct {
	AuthService *auth.Service
	Auth        *auth.Handler
	Menu        *menu.Handler
	Order       *order.Handler
}

// NewRouter mounts public routes first and everything else behind the token check
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httpx.WithLogging(log))
	r.Use(httpx.CORS)

	r.Route("/api", func(r chi.Router) {
		h.Auth.RegisterPublicRoutes(r)
		h.Order.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.AuthService, log))
			h.Auth.RegisterRoutes(r)
			h.Menu.RegisterRoutes(r)
			h.Order.RegisterRoutes(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusNotFound, "Not found")
	})
	return r
}

type Server struct {
	http   *http.Server
	logger *logger.Logger
}

func New(port int, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server_started", fmt.Sprintf("Listening on %s", ln.Addr()), "startup", map[string]interface{}{
			"addr": ln.Addr().String(),
		})
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("graceful_shutdown", "Shutting down HTTP server", "", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
