package httpserver

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pscheid92/plantpulse/internal/domain"
	apperrors "github.com/pscheid92/plantpulse/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownRoute_StructuredBody(t *testing.T) {
	srv := newTestServer(t)

	rec := get(srv, "/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.CodeNotFound, resp.Code)
	assert.Equal(t, apperrors.TypeNotFound, resp.Type)
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rec := get(srv, "/health/live", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	get(srv, "/api/me", "reader-token")
	rec := get(srv, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestNoWebSocketRouteWithoutHandler(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(srv, "/ws", "").Code)
}
