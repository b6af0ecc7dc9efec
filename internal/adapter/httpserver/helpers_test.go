package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/plantpulse/internal/adapter/metrics"
	"github.com/pscheid92/plantpulse/internal/app"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/pscheid92/plantpulse/internal/platform/config"
)

var (
	reader = domain.Actor{ID: "op-1", Name: "Nadia", Role: domain.RoleOperator, Permissions: []domain.Permission{domain.PermReadDashboard}}
	guest  = domain.Actor{ID: "view-1", Name: "Guest", Role: domain.RoleViewer}
)

type tokenAuth map[string]domain.Actor

func (a tokenAuth) Authenticate(_ context.Context, credential string) (domain.Actor, error) {
	if credential == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	actor, ok := a[credential]
	if !ok {
		return domain.Actor{}, domain.ErrUnknownCredential
	}
	return actor, nil
}

type viewsFunc func(ctx context.Context, v app.View) (any, error)

func (f viewsFunc) Current(ctx context.Context, v app.View) (any, error) { return f(ctx, v) }

type serverOption func(*serverSetup)

type serverSetup struct {
	cfg          *config.Config
	views        viewsFunc
	healthChecks []HealthCheck
	registry     *prometheus.Registry
}

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(s *serverSetup) { s.healthChecks = checks }
}

func withViews(f viewsFunc) serverOption {
	return func(s *serverSetup) { s.views = f }
}

func withAPIRate(perSecond float64, burst int) serverOption {
	return func(s *serverSetup) {
		s.cfg.APIRatePerSecond = perSecond
		s.cfg.APIRateBurst = burst
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *Server {
	t.Helper()

	setup := &serverSetup{
		cfg: &config.Config{Port: "0", APIRatePerSecond: 100, APIRateBurst: 100},
		views: func(_ context.Context, v app.View) (any, error) {
			return map[string]string{"view": string(v)}, nil
		},
		registry: metrics.NewRegistry(),
	}
	for _, opt := range opts {
		opt(setup)
	}

	auth := tokenAuth{"reader-token": reader, "guest-token": guest}
	return NewServer(setup.cfg, auth, setup.views, nil, metrics.Handler(setup.registry), metrics.NewHTTPMetrics(setup.registry), setup.healthChecks)
}

func get(srv *Server, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = testRemoteAddr
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func healthOK(name string) HealthCheck {
	return HealthCheck{Name: name, Check: func(context.Context) error { return nil }}
}

func healthErr(name string, err error) HealthCheck {
	return HealthCheck{Name: name, Check: func(context.Context) error { return err }}
}
