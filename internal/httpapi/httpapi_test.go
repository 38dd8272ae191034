package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
	"github.com/iamtahmad1/traffic-manager/internal/platform/config"
	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
	"github.com/iamtahmad1/traffic-manager/internal/platform/metrics"
	"github.com/iamtahmad1/traffic-manager/internal/resilience"
)

type fakeResolver struct {
	url    string
	source string
	err    error
}

func (f fakeResolver) Resolve(ctx context.Context, key domain.Key) (domain.ResolveOutcome, error) {
	return domain.ResolveOutcome{URL: f.url, Source: f.source}, f.err
}

type fakeWriter struct {
	route domain.Route
	err   error
}

func (f fakeWriter) Create(ctx context.Context, key domain.Key, url string) (domain.Route, error) {
	return f.route, f.err
}
func (f fakeWriter) Activate(ctx context.Context, key domain.Key) (domain.Route, error) {
	return f.route, f.err
}
func (f fakeWriter) Deactivate(ctx context.Context, key domain.Key) (domain.Route, error) {
	return f.route, f.err
}

type fakeAudit struct{}

func (fakeAudit) RouteHistory(ctx context.Context, key domain.Key, limit int64) ([]domain.AuditDocument, error) {
	return nil, nil
}
func (fakeAudit) Recent(ctx context.Context, limit int64) ([]domain.AuditDocument, error) {
	return nil, nil
}
func (fakeAudit) ByAction(ctx context.Context, action domain.Action, limit int64) ([]domain.AuditDocument, error) {
	return nil, nil
}
func (fakeAudit) TimeRange(ctx context.Context, from, to time.Time, limit int64) ([]domain.AuditDocument, error) {
	return nil, nil
}
func (fakeAudit) Ping(ctx context.Context) error { return nil }

func newTestServer(resolver RouteResolver, writer RouteWriter) http.Handler {
	rm := resilience.NewManager(config.ResilienceConfig{
		ReadBulkheadMaxConcurrent: 10, WriteBulkheadMaxConcurrent: 10, AuditBulkheadMaxConcurrent: 10,
		BulkheadMaxWait: time.Second, RetryMaxRetries: 3, RetryWindow: time.Minute,
	})
	reg := metrics.NewWithRegistry("test", nil)
	logger := logging.New("test", "error", "json")
	return New(resolver, writer, fakeAudit{}, rm, reg, logger, nil, nil)
}

func TestResolveMissingParamsReturns400(t *testing.T) {
	srv := newTestServer(fakeResolver{}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/routes/resolve?tenant=acme", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveReturns404OnRouteNotFound(t *testing.T) {
	srv := newTestServer(fakeResolver{err: apierr.RouteNotFound("no such route")}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/routes/resolve?tenant=acme&service=billing&env=prod&version=v1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveReturns200OnHit(t *testing.T) {
	srv := newTestServer(fakeResolver{url: "https://billing.internal/v1"}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/routes/resolve?tenant=acme&service=billing&env=prod&version=v1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "https://billing.internal/v1", body["url"])
	require.NotContains(t, body, "source")
}

func TestResolveReturns200WithSourceMarkerOnCacheFallback(t *testing.T) {
	srv := newTestServer(fakeResolver{url: "https://billing.internal/v1", source: domain.SourceCacheFallback}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/routes/resolve?tenant=acme&service=billing&env=prod&version=v1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "https://billing.internal/v1", body["url"])
	require.Equal(t, domain.SourceCacheFallback, body["source"])
}

func TestCreateRouteRejectsMissingURL(t *testing.T) {
	srv := newTestServer(fakeResolver{}, fakeWriter{})
	payload := bytes.NewBufferString(`{"tenant":"acme","service":"billing","env":"prod","version":"v1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", payload)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRouteReturns201(t *testing.T) {
	route := domain.Route{Tenant: "acme", Service: "billing", Environment: "prod", Version: "v1", URL: "https://billing.internal/v1", IsActive: true}
	srv := newTestServer(fakeResolver{}, fakeWriter{route: route})
	payload := bytes.NewBufferString(`{"tenant":"acme","service":"billing","env":"prod","version":"v1","url":"https://billing.internal/v1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", payload)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHealthEndpointReturns200(t *testing.T) {
	srv := newTestServer(fakeResolver{}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResilienceSnapshotReturns200(t *testing.T) {
	srv := newTestServer(fakeResolver{}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/health/resilience", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationIDEchoedOnResponse(t *testing.T) {
	srv := newTestServer(fakeResolver{}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "req-aaaaaaaaaaaaaaaa")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, "req-aaaaaaaaaaaaaaaa", rec.Header().Get("X-Correlation-ID"))
}

func TestAuditTimeRangeRejectsBadTimestamps(t *testing.T) {
	srv := newTestServer(fakeResolver{}, fakeWriter{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/time-range?start_time=not-a-time&end_time=also-not", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
