// Package http provides the local SUT stub server: an OpenAI-compatible
// chat completions endpoint that plays a scripted recruiter assistant.
// Pointing the engine at it (provider "custom") gives fully offline,
// reproducible runs with no upstream model in the loop.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds the server settings.
type Config struct {
	Port            int
	ShutdownTimeout int // seconds
	ServiceName     string
}

// Server is the SUT stub HTTP server.
type Server struct {
	config Config
	echo   *echo.Echo
	log    *zap.Logger
	stub   *StubRecruiter
}

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// NewServer creates the stub server with logging, recovery and request ID
// middleware, plus /health and /metrics endpoints.
func NewServer(cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		config: cfg,
		echo:   e,
		log:    log,
		stub:   NewStubRecruiter(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/chat/completions", s.handleChatCompletions)
	s.echo.POST("/v1/chat/completions", s.handleChatCompletions)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: s.config.ServiceName,
	})
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Info("starting SUT stub server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout(s.config),
		)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func shutdownTimeout(cfg Config) time.Duration {
	if cfg.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.ShutdownTimeout) * time.Second
}
