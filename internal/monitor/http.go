package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/config"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/predict"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/session"
)

const (
	serviceName    = "ser-capture-engine"
	serviceVersion = "1.0.0"
)

// Monitor serves the local observability endpoints
type Monitor struct {
	server     *http.Server
	logger     *slog.Logger
	controller *session.Controller
	predictor  *predict.Client
	gatherer   prometheus.Gatherer

	startTime time.Time
}

// New creates the monitor endpoint bound to the configured address
func New(cfg config.MonitorConfig, logger *slog.Logger, controller *session.Controller,
	predictor *predict.Client, gatherer prometheus.Gatherer) *Monitor {

	m := &Monitor{
		logger:     logger,
		controller: controller,
		predictor:  predictor,
		gatherer:   gatherer,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	m.setupRoutes(mux)

	m.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return m
}

// setupRoutes configures the monitor endpoints
func (m *Monitor) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", m.handleHealthz)
	mux.HandleFunc("/status", m.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", m.handleRoot)
}

// Handler returns the monitor's HTTP handler
func (m *Monitor) Handler() http.Handler {
	return m.server.Handler
}

// Start begins serving in the background
func (m *Monitor) Start() error {
	m.logger.Info("Starting monitor endpoint", slog.String("address", m.server.Addr))

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Monitor endpoint error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully shuts the monitor endpoint down
func (m *Monitor) Stop(ctx context.Context) error {
	m.logger.Info("Stopping monitor endpoint...")

	return m.server.Shutdown(ctx)
}

// handleHealthz implements the /healthz endpoint
func (m *Monitor) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(m.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStatus implements the /status endpoint
func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"timestamp":  time.Now().UTC(),
		"uptime":     time.Since(m.startTime).String(),
		"session":    m.controller.Status(),
		"prediction": m.predictor.GetStats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleRoot implements the / endpoint with the endpoint listing
func (m *Monitor) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	listing := map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":        "Endpoint listing",
			"GET /healthz": "Engine health check",
			"GET /status":  "Session and prediction status",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}
