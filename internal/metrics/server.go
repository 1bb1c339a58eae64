package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	healthTimeout     = 3 * time.Second
)

// HealthFunc reports nil when the node is healthy. The error text is
// returned to the caller of /health.
type HealthFunc func(ctx context.Context) error

// Server serves the Prometheus scrape endpoint and /health.
type Server struct {
	listen   string
	path     string
	gatherer prometheus.Gatherer
	health   HealthFunc

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	onError  func(err error)
}

// NewServer returns a server for gatherer on listen (host:port).
//
// Parameters:
//   - listen: Address to bind, port 0 picks a free port
//   - path: Scrape path, "/metrics" when empty
//   - gatherer: Registry whose metrics are exposed
//   - health: Check run on every GET /health; nil always reports healthy
//
// Returns:
//   - *Server: Server ready to Start
func NewServer(listen, path string, gatherer prometheus.Gatherer, health HealthFunc) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{listen: listen, path: path, gatherer: gatherer, health: health}
}

// SetOnError sets a callback for failures after Start has returned.
func (s *Server) SetOnError(callback func(err error)) {
	s.mu.Lock()
	s.onError = callback
	s.mu.Unlock()
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", s.handleHealth)

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", s.listen, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.server = srv
	s.listener = ln

	onError := s.onError
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()

	return nil
}

// handleHealth answers 503 with the failure text while the check fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.listen
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	if err != nil {
		return fmt.Errorf("stopping metrics server: %w", err)
	}
	return nil
}
