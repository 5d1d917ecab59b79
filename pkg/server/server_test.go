package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mchmarny/campusweb/pkg/metric"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Healthy(ctx context.Context) error { return f(ctx) }

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	ready := errors.New("menus not loaded yet")
	srv := New(
		WithHealthCheck(healthFunc(func(context.Context) error { return nil })),
		WithReadinessCheck(ReadyFunc(func(context.Context) error { return ready })),
	)

	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, srv.Handler(), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "menus not loaded")

	ready = nil
	rec = do(t, srv.Handler(), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnhealthy(t *testing.T) {
	srv := New(WithHealthCheck(healthFunc(func(context.Context) error { return errors.New("broken") })))

	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRoutes(t *testing.T) {
	sub := http.NewServeMux()
	sub.HandleFunc("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	srv := New(
		WithHandler("/exact", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "exact")
		})),
		WithMount("/api", sub),
	)

	assert.Equal(t, "exact", do(t, srv.Handler(), http.MethodGet, "/exact", nil).Body.String())
	assert.Equal(t, "pong", do(t, srv.Handler(), http.MethodGet, "/api/ping", nil).Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodGet, "/missing", nil).Code)
}

func TestRequestIDHeaderPropagates(t *testing.T) {
	srv := New(WithHandler("/id", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := do(t, srv.Handler(), http.MethodGet, "/id", map[string]string{"X-Request-Id": "abc"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoverer(t *testing.T) {
	srv := New(WithHandler("/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := do(t, srv.Handler(), http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	srv := New(
		WithCORS("https://www.college.edu"),
		WithHandler("/api/x", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "x")
		})),
	)

	rec := do(t, srv.Handler(), http.MethodGet, "/api/x", map[string]string{"Origin": "https://www.college.edu"})
	assert.Equal(t, "https://www.college.edu", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, srv.Handler(), http.MethodGet, "/api/x", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := New(
		WithMetrics(reg, metric.New(reg)),
		WithHandler("/hello", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "hi")
		})),
	)

	do(t, srv.Handler(), http.MethodGet, "/hello", nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `campusweb_http_request_duration_seconds_count{method="GET",route="/hello",status="200"} 1`)
}

func TestServeLifecycle(t *testing.T) {
	srv := New(
		WithHost("127.0.0.1"),
		WithPort(0),
		WithShutdownTimeout(time.Second),
	)
	assert.False(t, srv.IsRunning())
	assert.Empty(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	require.Eventually(t, srv.IsRunning, time.Second, 5*time.Millisecond)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	client.CloseIdleConnections()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, srv.IsRunning())
}

func TestServeListenError(t *testing.T) {
	srv := New(WithHost("127.0.0.1"), WithPort(-1))
	assert.Error(t, srv.Serve(context.Background()))
}

func TestServeTLSMissingCert(t *testing.T) {
	srv := New(WithHost("127.0.0.1"), WithPort(0), WithTLS(TLSConfig{CertFile: "missing.pem", KeyFile: "missing.key"}))
	err := srv.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS certificate")
}
