package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mchmarny/campusweb/pkg/metric"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = 8080

	// DefaultReadTimeout is the maximum duration for reading the entire request,
	// including the body. This helps prevent slowloris attacks.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	// It covers handler execution, including a synchronous CMS refresh.
	DefaultWriteTimeout = 30 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the maximum duration to wait for active connections
	// to gracefully close during server shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultMaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the request line.
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB

	// DefaultCheckTimeout bounds a single health or readiness probe.
	DefaultCheckTimeout = 2 * time.Second
)

// Server defines the interface for the site HTTP server.
// Implementations must support graceful shutdown via context cancellation.
type Server interface {
	// Serve starts the HTTP server and blocks until the context is canceled.
	// Returns nil on successful graceful shutdown.
	Serve(ctx context.Context) error

	// IsRunning returns true if the server is currently accepting connections.
	// Returns true only after the socket has been successfully bound.
	IsRunning() bool

	// Addr returns the bound listen address, or an empty string before Serve binds.
	Addr() string

	// Handler returns the fully assembled router.
	Handler() http.Handler
}

// HealthChecker reports whether a component is able to function at all.
// Used for liveness probes; it should not depend on external services.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// ReadinessChecker reports whether a component can serve traffic.
// Unlike health checks, readiness may depend on external services such as the CMS.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ReadyFunc adapts a function to ReadinessChecker.
type ReadyFunc func(ctx context.Context) error

// Ready calls f.
func (f ReadyFunc) Ready(ctx context.Context) error { return f(ctx) }

type route struct {
	pattern string
	handler http.Handler
	mount   bool
}

// server is the internal implementation of the Server interface.
type server struct {
	router          *chi.Mux             // Assembled router
	routes          []route              // Registered routes, applied after middleware
	port            int                  // Port to listen on
	host            string               // Optional interface to bind
	readTimeout     time.Duration        // Maximum duration for reading requests
	writeTimeout    time.Duration        // Maximum duration for writing responses
	idleTimeout     time.Duration        // Maximum idle time for keep-alive connections
	shutdownTimeout time.Duration        // Grace period for shutdown
	maxHeaderBytes  int                  // Maximum header size in bytes
	errLog          *log.Logger          // Optional error logger
	tlsConfig       *TLSConfig           // Optional TLS configuration
	corsOrigins     []string             // Allowed CORS origins, CORS disabled when empty
	health          []HealthChecker      // Liveness checks behind /healthz
	readiness       []ReadinessChecker   // Readiness checks behind /readyz
	registry        *prometheus.Registry // Prometheus registry for metrics, nil disables /metrics
	metrics         *metric.Metrics      // Request instrumentation, nil disables it
	mu              sync.RWMutex         // Protects running state and addr
	running         bool                 // Indicates if server is currently running
	addr            string               // Bound address
}

// TLSConfig contains the certificate and key file paths for TLS/HTTPS support.
type TLSConfig struct {
	CertFile string // Path to the TLS certificate file
	KeyFile  string // Path to the TLS private key file
}

// Option is a functional option for configuring the Server.
type Option func(*server)

// WithPort sets the port number for the HTTP server. Port 0 picks a free port.
// If not specified, DefaultPort (8080) is used.
func WithPort(port int) Option {
	return func(s *server) { s.port = port }
}

// WithHost sets the interface address to bind, all interfaces when empty.
func WithHost(host string) Option {
	return func(s *server) { s.host = host }
}

// WithReadTimeout sets the maximum duration for reading the entire request.
func WithReadTimeout(d time.Duration) Option {
	return func(s *server) { s.readTimeout = d }
}

// WithWriteTimeout sets the maximum duration before timing out writes of the response.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *server) { s.writeTimeout = d }
}

// WithIdleTimeout sets the maximum time to wait for the next request when keep-alives are enabled.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *server) { s.idleTimeout = d }
}

// WithShutdownTimeout sets the maximum duration to wait for graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *server) { s.shutdownTimeout = d }
}

// WithMaxHeaderBytes sets the maximum number of bytes to read from request headers.
func WithMaxHeaderBytes(n int) Option {
	return func(s *server) { s.maxHeaderBytes = n }
}

// WithErrorLog sets the logger used by http.Server for connection errors.
func WithErrorLog(l *log.Logger) Option {
	return func(s *server) { s.errLog = l }
}

// WithHandler registers a handler for the exact pattern.
// Multiple handlers can be registered by calling this option multiple times.
func WithHandler(pattern string, handler http.Handler) Option {
	return func(s *server) {
		s.routes = append(s.routes, route{pattern: pattern, handler: handler})
	}
}

// WithMount attaches a sub-router under the pattern prefix.
//
// Example:
//
//	srv := server.New(server.WithMount("/api", api.New(...).Routes()))
func WithMount(pattern string, handler http.Handler) Option {
	return func(s *server) {
		s.routes = append(s.routes, route{pattern: pattern, handler: handler, mount: true})
	}
}

// WithHealthCheck adds liveness checks served at /healthz.
// Without any checker the endpoint always returns 200 OK.
func WithHealthCheck(checkers ...HealthChecker) Option {
	return func(s *server) { s.health = append(s.health, checkers...) }
}

// WithReadinessCheck adds readiness checks served at /readyz.
// The endpoint returns 503 until every checker reports ready.
func WithReadinessCheck(checkers ...ReadinessChecker) Option {
	return func(s *server) { s.readiness = append(s.readiness, checkers...) }
}

// WithMetrics exposes reg at /metrics and records request durations into m.
func WithMetrics(reg *prometheus.Registry, m *metric.Metrics) Option {
	return func(s *server) {
		s.registry = reg
		s.metrics = m
	}
}

// WithCORS enables CORS for the given origins. Wildcard subdomains such as
// "https://*.college.edu" are allowed.
func WithCORS(origins ...string) Option {
	return func(s *server) { s.corsOrigins = append(s.corsOrigins, origins...) }
}

// WithTLS configures the server to use TLS/HTTPS with the provided certificate and key files.
func WithTLS(cfg TLSConfig) Option {
	return func(s *server) {
		s.tlsConfig = &cfg
	}
}

// New creates a new HTTP server with the provided options.
//
// Default configuration:
//   - Port: 8080
//   - ReadTimeout: 10s
//   - WriteTimeout: 30s
//   - IdleTimeout: 60s
//   - ShutdownTimeout: 5s
//   - MaxHeaderBytes: 1 MB
//
// Every server answers /healthz and /readyz. Middleware is installed before
// any route, in this order: request id, real ip, panic recovery, CORS,
// request logging and metrics.
func New(opts ...Option) Server {
	s := &server{
		port:            DefaultPort,
		readTimeout:     DefaultReadTimeout,
		writeTimeout:    DefaultWriteTimeout,
		idleTimeout:     DefaultIdleTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		maxHeaderBytes:  DefaultMaxHeaderBytes,
		errLog:          log.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.buildRouter()

	slog.Info("server initialized",
		"port", s.port,
		"routes", len(s.routes),
		"read_timeout", s.readTimeout,
		"write_timeout", s.writeTimeout)

	return s
}

func (s *server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(RequestLogger)
	if s.metrics != nil {
		r.Use(Instrument(s.metrics))
	}

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readyHandler)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", metric.Handler(s.registry))
	}

	for _, rt := range s.routes {
		if rt.mount {
			r.Mount(rt.pattern, rt.handler)
			continue
		}
		r.Handle(rt.pattern, rt.handler)
	}

	return r
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
	defer cancel()

	for _, c := range s.health {
		if err := c.Healthy(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			writeProbe(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeProbe(w, http.StatusOK, "ok")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), DefaultCheckTimeout)
	defer cancel()

	for _, c := range s.readiness {
		if err := c.Ready(ctx); err != nil {
			writeProbe(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeProbe(w, http.StatusOK, "ok")
}

func writeProbe(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Handler returns the assembled router, useful for tests and embedding.
func (s *server) Handler() http.Handler {
	return s.router
}

// IsRunning returns true if the server is currently running and accepting connections.
// This method is thread-safe and can be called concurrently from multiple goroutines.
func (s *server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.running
}

// Addr returns the address the listener is bound to.
func (s *server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.addr
}

// Serve starts the HTTP server and blocks until the context is canceled or an error occurs.
//
// The server uses errgroup to manage two goroutines:
//  1. Server goroutine: serves on the pre-bound listener
//  2. Shutdown goroutine: waits for context cancellation and initiates graceful shutdown
//
// http.ErrServerClosed is not considered an error; all other errors are returned.
func (s *server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:           net.JoinHostPort(s.host, fmt.Sprint(s.port)),
		Handler:        s.router,
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		IdleTimeout:    s.idleTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
		ErrorLog:       s.errLog,
	}

	// Create listener first so we can set running=true only after socket is bound
	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	if s.tlsConfig != nil {
		cert, certErr := tls.LoadX509KeyPair(s.tlsConfig.CertFile, s.tlsConfig.KeyFile)
		if certErr != nil {
			listener.Close()
			return fmt.Errorf("failed to load TLS certificate: %w", certErr)
		}

		listener = tls.NewListener(listener, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})

		slog.Info("starting TLS server", "addr", listener.Addr().String())
	} else {
		slog.Info("starting server", "addr", listener.Addr().String())
	}

	// Mark server as running AFTER socket is successfully bound
	s.mu.Lock()
	s.running = true
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		slog.Info("shutting down server", "grace_period", s.shutdownTimeout)

		shutdownStart := time.Now()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		slog.Info("server shutdown complete", "duration", time.Since(shutdownStart))

		return nil
	})

	return g.Wait()
}
