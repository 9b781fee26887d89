// File: internal/server/server.go
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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smellak/browser-worker-agent/internal/config"
)

const defaultShutdownTimeout = 30 * time.Second

// Server hosts the agent's HTTP API.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New builds the router and mounts handlers on it.
func New(cfg config.ServerConfig, handlers *Handlers, logger *zap.Logger) *Server {
	logger = logger.Named("http_server")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	handlers.RegisterRoutes(r)

	return &Server{
		cfg:    cfg,
		logger: logger,
		router: r,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. In-flight runs get the shutdown timeout to finish; after that
// their contexts are cancelled so each run ends with an error reason and
// releases its browser.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	runCtx, abortRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer abortRuns()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}

	s.logger.Info("HTTP server starting", zap.String("address", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down HTTP server gracefully...")

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Graceful shutdown timed out, aborting in-flight runs.", zap.Error(err))
			abortRuns()
			if closeErr := s.httpServer.Close(); closeErr != nil {
				return fmt.Errorf("http server close failed: %w", closeErr)
			}
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("HTTP server stopped.")
	return err
}

// requestLogger logs one line per request with the chi request ID.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("Request served",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
