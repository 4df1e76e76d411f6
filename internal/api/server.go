package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/platescale/platescale/internal/api/middleware"
	v1 "github.com/platescale/platescale/internal/api/v1"
	"github.com/platescale/platescale/internal/buildinfo"
	"github.com/platescale/platescale/internal/logger"
	"github.com/platescale/platescale/internal/observability"
	"github.com/platescale/platescale/internal/reference"
)

// HealthChecker probes a dependency for GET /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

const healthProbeTimeout = 3 * time.Second

// Server is the platescale HTTP server.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	estimator     v1.Estimator
	table         *reference.Table
	metrics       *observability.Metrics
	build         *buildinfo.Context
	healthChecks  map[string]HealthChecker
	apiController *v1.Controller

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithMetrics exposes m on the metrics path.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithBuildInfo reports build metadata on /health.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) { s.build = b }
}

// WithHealthCheck adds a named dependency probe to /health.
func WithHealthCheck(name string, hc HealthChecker) ServerOption {
	return func(s *Server) {
		if s.healthChecks == nil {
			s.healthChecks = make(map[string]HealthChecker)
		}
		s.healthChecks[name] = hc
	}
}

// New creates the HTTP server with its middleware and routes.
func New(config *Config, est v1.Estimator, table *reference.Table, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		estimator: est,
		table:     table,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.build == nil {
		s.build = buildinfo.Current()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("listen", config.Listen),
		logger.Bool("metrics", config.MetricsEnabled),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log.Module("http"), func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == s.config.MetricsPath
	}))

	security := mw.DefaultSecurityConfig()
	security.AllowedOrigins = s.config.AllowedOrigins
	if cors := mw.NewCORS(security); cors != nil {
		s.echo.Use(cors)
	}
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(security))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.config.MetricsEnabled && s.metrics != nil {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}

	s.apiController = v1.New(s.echo, s.estimator, s.table, v1.WithLogger(s.log))
}

// healthCheck handles GET /health. A failing dependency probe reports
// "degraded" with status 503.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	status := "healthy"
	code := http.StatusOK

	deps := make(map[string]string, len(s.healthChecks))
	if len(s.healthChecks) > 0 {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthProbeTimeout)
		defer cancel()
		for name, hc := range s.healthChecks {
			if err := hc.Health(ctx); err != nil {
				deps[name] = "unavailable"
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
	}

	resp := map[string]any{
		"status":         status,
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"dependencies":   deps,
		"timestamp":      time.Now().Format(time.RFC3339),
	}

	// system stats are informational and never affect the status
	if stats, err := captureSystemStats(c.Request().Context()); err == nil {
		resp["system"] = stats
	} else {
		s.log.Debug("system stats unavailable", logger.Error(err))
	}

	return c.JSON(code, resp)
}

// Start begins serving HTTP requests in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.startBlocking(); err != nil {
			s.log.Error("server error", logger.Error(err))
		}
	}()
}

func (s *Server) startBlocking() error {
	s.log.Info("starting HTTP server", logger.String("listen", s.config.Listen))
	if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithGracefulShutdown serves until SIGINT or SIGTERM, then shuts down.
func (s *Server) StartWithGracefulShutdown() error {
	s.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	<-quit

	s.log.Info("shutdown signal received, initiating graceful shutdown")
	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
