// Package server exposes the chat service over HTTP.
//
// Routes:
//
//	POST   /api/chat            stream an answer as NDJSON
//	POST   /api/search          hybrid search without generation
//	GET    /api/chat/history    sessions of the calling user
//	GET    /api/chat/:id        turns of one session
//	DELETE /api/chat/:id        delete a session
//	PUT    /api/chat/:id/title  rename a session
//	POST   /api/feedback        rate the latest answer of a session
//	GET    /healthz             liveness and retrieval readiness
//	GET    /metrics             Prometheus metrics
//
// The caller is identified by the X-User-ID header set by the upstream
// authentication layer.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Devcavi19/adal-4naga-app/chat"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server defaults.
const (
	DefaultAddr              = ":8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	UserHeader               = "X-User-ID"
)

// ErrServiceRequired is returned when a chat service is not provided.
var ErrServiceRequired = errors.New("chat service required")

// Server is the HTTP front end of a chat.Service.
type Server struct {
	service         *chat.Service
	engine          *gin.Engine
	addr            string
	readTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithAddr sets the listen address. Default is ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) error {
		if addr == "" {
			return errors.New("listen address cannot be empty")
		}
		s.addr = addr
		return nil
	}
}

// WithTimeouts sets the request header read timeout and the graceful
// shutdown timeout. Responses are streamed, so there is no write timeout.
func WithTimeouts(readHeader, shutdown time.Duration) Option {
	return func(s *Server) error {
		if readHeader <= 0 || shutdown <= 0 {
			return fmt.Errorf("timeouts must be positive, got %s and %s", readHeader, shutdown)
		}
		s.readTimeout = readHeader
		s.shutdownTimeout = shutdown
		return nil
	}
}

// NewServer creates a Server and registers its routes.
func NewServer(service *chat.Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, ErrServiceRequired
	}
	s := &Server{
		service:         service,
		addr:            DefaultAddr,
		readTimeout:     DefaultReadHeaderTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "http-server")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(recovery(s.logger), observe(s.logger))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	engine.GET("/healthz", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.POST("/search", s.search)
	api.POST("/chat", s.requireUser, s.chat)
	api.GET("/chat/history", s.requireUser, s.history)
	api.GET("/chat/:id", s.requireUser, s.session)
	api.DELETE("/chat/:id", s.requireUser, s.deleteSession)
	api.PUT("/chat/:id/title", s.requireUser, s.renameSession)
	api.POST("/feedback", s.requireUser, s.feedback)

	s.engine = engine
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.readTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return <-errCh
}
