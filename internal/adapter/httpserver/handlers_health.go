package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/plantpulse/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe, e.g. the database ping.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.probe(startupProbeTimeout))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.probe(readinessProbeTimeout))
	s.echo.GET("/version", s.handleVersion)
}

// handleLiveness only proves the process serves requests; dependencies are
// the readiness probe's job.
func (s *Server) handleLiveness(c echo.Context) error {
	body := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// probe runs every check under one deadline and reports each outcome, so
// an operator sees all failing dependencies at once.
func (s *Server) probe(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		report := probeReport{Status: "ready"}
		status := http.StatusOK
		if len(s.healthChecks) > 0 {
			report.Checks = make(map[string]string, len(s.healthChecks))
		}
		for _, hc := range s.healthChecks {
			if err := hc.Check(ctx); err != nil {
				report.Checks[hc.Name] = err.Error()
				report.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			report.Checks[hc.Name] = "ok"
		}

		if err := c.JSON(status, report); err != nil {
			return fmt.Errorf("failed to write probe response: %w", err)
		}
		return nil
	}
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
