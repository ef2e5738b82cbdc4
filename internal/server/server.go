// Package server exposes the flattening pipeline over HTTP: a /v1 API for
// flattening, processing, and export, plus registry introspection, health,
// and metrics endpoints.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fhirtab/fhirtab/internal/config"
	"github.com/fhirtab/fhirtab/internal/flatten"
	"github.com/fhirtab/fhirtab/internal/pipeline"
	"github.com/fhirtab/fhirtab/internal/platform/middleware"
	"github.com/fhirtab/fhirtab/internal/platform/telemetry"
	"github.com/fhirtab/fhirtab/internal/registry"
)

// Server wires the pipeline components behind an Echo HTTP server.
type Server struct {
	cfg  *config.Config
	log  zerolog.Logger
	reg  *registry.Registry
	flat *flatten.Flattener
	proc *pipeline.Processor
	tp   *telemetry.TelemetryProvider
	echo *echo.Echo
}

// New builds the server and registers routes and middleware.
func New(
	cfg *config.Config,
	log zerolog.Logger,
	reg *registry.Registry,
	flat *flatten.Flattener,
	proc *pipeline.Processor,
	tp *telemetry.TelemetryProvider,
) *Server {
	s := &Server{
		cfg:  cfg,
		log:  log,
		reg:  reg,
		flat: flat,
		proc: proc,
		tp:   tp,
		echo: echo.New(),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Logger(log))
	s.echo.Use(middleware.Recovery(log))
	s.echo.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	s.echo.Use(tp.MetricsMiddleware())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", s.tp.PrometheusHandler())

	v1 := s.echo.Group("/v1")
	v1.POST("/flatten", s.handleFlatten)
	v1.POST("/process", s.handleProcess)
	v1.POST("/summary", s.handleSummary)
	v1.POST("/export/csv", s.handleExportCSV)
	v1.GET("/codes", s.handleCodes)
	v1.GET("/codes/:code", s.handleCode)

	if s.cfg.SandboxEnabled {
		v1.GET("/sandbox/dataset", s.handleSandboxDataset)
	}
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start runs the HTTP listener until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("port", s.cfg.Port).Msg("http server listening")
	err := s.echo.Start(":" + s.cfg.Port)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
