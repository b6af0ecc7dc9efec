package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/plantpulse/internal/app"
	"github.com/pscheid92/plantpulse/internal/domain"
	apperrors "github.com/pscheid92/plantpulse/internal/platform/errors"
)

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api", newRateLimiter(s.config.APIRatePerSecond, s.config.APIRateBurst), s.requireActor)
	api.GET("/me", s.handleMe)

	inventory := api.Group("/inventory", requirePermission(domain.PermReadDashboard))
	inventory.GET("/summary", s.handleView(app.ViewSummary))
	inventory.GET("/alerts", s.handleView(app.ViewAlerts))
	inventory.GET("/stats", s.handleView(app.ViewStats))
}

func (s *Server) handleMe(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return apperrors.InternalError("no actor in context", nil)
	}
	if err := c.JSON(http.StatusOK, actor); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleView serves a freshly built inventory view without publishing it.
func (s *Server) handleView(v app.View) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload, err := s.views.Current(c.Request().Context(), v)
		if err != nil {
			return apperrors.FromDomain(err).WithField("view", string(v))
		}
		if err := c.JSON(http.StatusOK, payload); err != nil {
			return fmt.Errorf("failed to send JSON response: %w", err)
		}
		return nil
	}
}
