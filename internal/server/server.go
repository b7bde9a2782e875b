// Package server exposes the analysis over HTTP: recommendations with an
// optional price-range filter, a health probe, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"univ3-liquidity-lab/internal/cache"
	"univ3-liquidity-lab/internal/observability"
	"univ3-liquidity-lab/internal/pipeline"
)

// Analyzer runs one full analysis. Satisfied by *pipeline.Runner.
type Analyzer interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wraps Echo with the recommendation routes.
type Server struct {
	echo     *echo.Echo
	config   Config
	analyzer Analyzer
	cache    *cache.ResultCache
	metrics  *observability.Metrics
	logger   zerolog.Logger

	// runMu coalesces cache-miss recomputes: one pipeline run per expiry,
	// not one per concurrent request.
	runMu sync.Mutex
}

// Option configures Server.
type Option func(*Server)

// WithConfig overrides the server configuration.
func WithConfig(cfg Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithMetrics attaches Prometheus metrics and exposes the scrape endpoint.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates the HTTP server. analyzer and resultCache are required.
func New(analyzer Analyzer, resultCache *cache.ResultCache, opts ...Option) *Server {
	s := &Server{
		config:   DefaultConfig(),
		analyzer: analyzer,
		cache:    resultCache,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogging())

	e.GET("/api/recommendations", s.handleRecommendations)
	e.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	s.echo = e
	return s
}

// Start begins serving in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.echo.Server.ReadTimeout = s.config.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.WriteTimeout

	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// requestLogging logs one line per request at debug level.
func (s *Server) requestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Debug().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("elapsed", time.Since(start)).
				Msg("request")
			return err
		}
	}
}
