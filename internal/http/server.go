// Package http exposes the specula workflow over a JSON HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specula/internal/logging"
	"github.com/fyrsmithlabs/specula/internal/storage"
	"github.com/fyrsmithlabs/specula/internal/telemetry"
	"github.com/fyrsmithlabs/specula/internal/workflow"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
	maxBodySize       = "2M"
)

// Server provides HTTP endpoints for the workflow service.
type Server struct {
	echo     *echo.Echo
	svc      workflow.Service
	logger   *zap.Logger
	config   *Config
	registry *prometheus.Registry
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// Telemetry supplies the meter for request metrics and the health
	// status. Nil uses the global providers.
	Telemetry *telemetry.Telemetry
}

// NewServer creates the HTTP server.
func NewServer(svc workflow.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("workflow service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 8088}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newStateCollector(svc),
	)

	s := &Server{
		echo:     e,
		svc:      svc,
		logger:   logger,
		config:   cfg,
		registry: registry,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(s.requestLogger())
	e.Use(NewHTTPMetrics(cfg.Telemetry.Meter(httpInstrumentationName), logger).MetricsMiddleware())

	s.registerRoutes()
	return s, nil
}

// requestLogger tags the request context with the request id and logs
// every request once it has been handled.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			fields := append(logging.ContextFields(ctx),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			s.logger.Info("http request", fields...)
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/state", s.handleState)
	v1.POST("/step", s.handleStep)
	v1.POST("/validate", s.handleValidate)
	v1.POST("/advance", s.handleAdvance)
	v1.POST("/init-db", s.handleInitDB)
	v1.GET("/audit", s.handleAudit)
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// fail logs internal errors and converts err for echo.
func (s *Server) fail(c echo.Context, op string, err error) error {
	he := toHTTPError(err)
	if he.Code == http.StatusInternalServerError {
		s.logger.Error(op+" failed", append(logging.ContextFields(c.Request().Context()), zap.Error(err))...)
	}
	return he
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.config.Version}
	if s.config.Telemetry != nil {
		h := s.config.Telemetry.Health()
		resp.Telemetry = &h
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleState(c echo.Context) error {
	ps, err := s.svc.State(c.Request().Context())
	if err != nil {
		return s.fail(c, "state", err)
	}
	return c.JSON(http.StatusOK, ps)
}

func (s *Server) handleStep(c echo.Context) error {
	var req workflow.StepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.OutputFile = ""

	resp, err := s.svc.Step(c.Request().Context(), &req)
	if err != nil {
		return s.fail(c, "step", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleValidate answers 200 for a valid step and 422 with the issue list
// otherwise.
func (s *Server) handleValidate(c echo.Context) error {
	var req workflow.ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.svc.Validate(c.Request().Context(), &req)
	if err != nil {
		return s.fail(c, "validate", err)
	}
	if !resp.Valid {
		return c.JSON(http.StatusUnprocessableEntity, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleAdvance answers 200 when the phase advanced and 202 when the
// validation was recorded but the approval policy is not yet met.
func (s *Server) handleAdvance(c echo.Context) error {
	var req workflow.AdvanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.svc.Advance(c.Request().Context(), &req)
	if err != nil {
		return s.fail(c, "advance", err)
	}
	if !resp.Advanced {
		return c.JSON(http.StatusAccepted, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInitDB(c echo.Context) error {
	if err := s.svc.InitSchema(c.Request().Context()); err != nil {
		return s.fail(c, "init-db", err)
	}
	return c.JSON(http.StatusOK, InitDBResponse{Status: "database schema initialized"})
}

func (s *Server) handleAudit(c echo.Context) error {
	limit := defaultAuditLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("limit must be an integer between 1 and %d", maxAuditLimit))
		}
		limit = n
	}

	ctx := c.Request().Context()
	ps, err := s.svc.State(ctx)
	if err != nil {
		return s.fail(c, "audit", err)
	}
	events, err := s.svc.Audit(ctx, limit)
	if err != nil {
		return s.fail(c, "audit", err)
	}
	if events == nil {
		events = []storage.AuditEvent{}
	}
	return c.JSON(http.StatusOK, AuditResponse{ProjectID: ps.ProjectID, Events: events})
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
