// Package server exposes the stack's status over HTTP: a Prometheus scrape
// endpoint and a JSON health document. The endpoint is an observer; a failure
// to bind or serve never disturbs the proxying data path.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"relaystack-hq/saturn/pkg/config"
	"relaystack-hq/saturn/pkg/health"
	"relaystack-hq/saturn/pkg/telemetry/metrics"
)

// Server is the monitoring HTTP endpoint.
type Server struct {
	cfg     *config.Config
	monitor *health.Monitor
	metrics *metrics.Metrics
	logger  *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once

	mu        sync.RWMutex
	isRunning bool
}

// New creates the monitoring endpoint. It does not bind until Start.
func New(cfg *config.Config, monitor *health.Monitor, met *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		monitor: monitor,
		metrics: met,
		logger:  logger,
	}
}

// Start binds the listener and begins serving in the background. A bind
// failure is returned to the caller; it disables monitoring but nothing else.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("monitoring endpoint already running")
	}
	s.mu.Unlock()

	mon := s.cfg.Monitoring
	addr := fmt.Sprintf("%s:%d", mon.Bind, mon.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding monitoring endpoint on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()

	go func() {
		s.logger.Info("monitoring endpoint listening", "address", addr,
			"metrics_path", mon.MetricsPath, "health_path", mon.HealthPath)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("monitoring endpoint failed", "error", err)
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}
	}()
	return nil
}

// Shutdown stops the endpoint, waiting for in-flight requests up to ctx's
// deadline. Safe to call more than once and before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		s.isRunning = false
		s.mu.Unlock()
		if !running || s.httpServer == nil {
			return
		}
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("monitoring endpoint shutdown: %w", err)
			return
		}
		s.logger.Info("monitoring endpoint stopped")
	})
	return shutdownErr
}

// IsRunning reports whether the endpoint is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) routes() http.Handler {
	mon := s.cfg.Monitoring
	mux := http.NewServeMux()
	mux.Handle(mon.MetricsPath, s.metrics.Handler())
	mux.HandleFunc(mon.HealthPath, s.handleHealth)
	return mux
}

// handleHealth serves the JSON health document. The response is built from a
// snapshot, so a slow client never blocks the probe loop.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.monitor.Snapshot()
	status := http.StatusOK
	if snap.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Warn("writing health response", "error", err)
	}
}
