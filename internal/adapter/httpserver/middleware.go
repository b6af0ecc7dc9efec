package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/plantpulse/internal/adapter/identity"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/pscheid92/plantpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/plantpulse/internal/platform/errors"
)

const actorKey = "actor"

// correlationMiddleware honours a well-formed X-Correlation-ID from the
// client and echoes the id back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, id := correlation.FromIncoming(c.Request().Context(), c.Request().Header.Get(correlation.Header))
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

// requireActor authenticates the request with the same credential rules as
// the WebSocket endpoint and stores the actor on the context.
func (s *Server) requireActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := s.auth.Authenticate(c.Request().Context(), identity.CredentialFromRequest(c.Request()))
		if err != nil {
			return apperrors.UnauthorizedError(domain.ErrorCode(err), "authentication required")
		}
		c.Set(actorKey, actor)
		return next(c)
	}
}

func requirePermission(p domain.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := actorFrom(c)
			if !ok {
				return apperrors.InternalError("no actor in context", nil)
			}
			if !actor.HasPermission(p) {
				return apperrors.ForbiddenError("permission denied").WithField("required", string(p))
			}
			return next(c)
		}
	}
}

func actorFrom(c echo.Context) (domain.Actor, bool) {
	actor, ok := c.Get(actorKey).(domain.Actor)
	return actor, ok
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"code", err.Code,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if actor, ok := actorFrom(c); ok {
		attrs = append(attrs, "actor_id", actor.ID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeUnauthorized:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeForbidden, apperrors.TypeConflict, apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Request refused", attrs...)
	case apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Dependency unavailable", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

// handleHTTPError renders echo's own errors (404 route, 405, bind failures)
// in the same body shape as application errors.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		_ = HandleError(c, err)
		return
	}

	structuredErr := WrapHTTPError(httpErr)
	if structuredErr.Type == apperrors.TypeInternal {
		logError(c, structuredErr)
	}
	_ = c.JSON(httpErr.Code, structuredErr.ToResponse())
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	var err *apperrors.Error
	switch httpErr.Code {
	case http.StatusBadRequest:
		err = apperrors.ValidationError(message)
	case http.StatusUnauthorized:
		err = apperrors.UnauthorizedError(domain.CodeUnauthenticated, message)
	case http.StatusForbidden:
		err = apperrors.ForbiddenError(message)
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		err = apperrors.NotFoundError(message)
	case http.StatusServiceUnavailable:
		err = apperrors.UnavailableError(message, nil)
	default:
		err = apperrors.InternalError(message, nil)
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}
	return err
}
