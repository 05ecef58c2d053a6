// Package api provides Prometheus metrics for the ERiC binding.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handle kinds tracked by OpenHandles.
const (
	HandleBuffer      = "buffer"
	HandleCertificate = "certificate"
)

// Metrics holds all Prometheus metrics for the binding. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Engine call metrics
	EngineCallsTotal   *prometheus.CounterVec
	EngineCallDuration *prometheus.HistogramVec

	// Native resources
	OpenHandles   *prometheus.GaugeVec
	SessionActive prometheus.Gauge

	// Workflow metrics
	WorkflowsTotal  *prometheus.CounterVec
	WorkflowLatency *prometheus.HistogramVec

	// Service metrics
	ServiceRequestsTotal   *prometheus.CounterVec
	ServiceRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates metrics under namespace and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		EngineCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_calls_total",
			Help:      "Total native engine calls by function and result",
		}, []string{"function", "result"}),
		EngineCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_call_duration_seconds",
			Help:      "Native engine call duration by function",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"function"}),

		OpenHandles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_handles",
			Help:      "Engine handles currently held by the binding",
		}, []string{"kind"}),
		SessionActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_active",
			Help:      "1 while an engine session is initialized",
		}),

		WorkflowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_total",
			Help:      "Total validate/send workflows by outcome",
		}, []string{"workflow", "outcome"}),
		WorkflowLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_latency_seconds",
			Help:      "Workflow latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"workflow"}),

		ServiceRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_requests_total",
			Help:      "Total service requests by operation and status",
		}, []string{"op", "status"}),
		ServiceRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "service_request_duration_seconds",
			Help:      "Service request duration by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// RecordCall records one native call and its return code.
func (m *Metrics) RecordCall(function string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if code != 0 {
		result = strconv.Itoa(code)
	}
	m.EngineCallsTotal.WithLabelValues(function, result).Inc()
	m.EngineCallDuration.WithLabelValues(function).Observe(duration.Seconds())
}

// HandleOpened increments the open handle gauge for kind.
func (m *Metrics) HandleOpened(kind string) {
	if m == nil {
		return
	}
	m.OpenHandles.WithLabelValues(kind).Inc()
}

// HandleReleased decrements the open handle gauge for kind.
func (m *Metrics) HandleReleased(kind string) {
	if m == nil {
		return
	}
	m.OpenHandles.WithLabelValues(kind).Dec()
}

// SetSessionActive updates the session gauge.
func (m *Metrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
}

// RecordWorkflow records a validate or send workflow.
func (m *Metrics) RecordWorkflow(workflow string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.WorkflowsTotal.WithLabelValues(workflow, outcome).Inc()
	m.WorkflowLatency.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordServiceRequest records a request handled by the network service.
func (m *Metrics) RecordServiceRequest(op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ServiceRequestsTotal.WithLabelValues(op, status).Inc()
	m.ServiceRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// MetricsServer runs an HTTP server exposing /metrics endpoint.
type MetricsServer struct {
	server *http.Server
}

// NewMetricsServer creates a metrics server on addr serving gatherer.
// A nil gatherer serves the default registry.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *MetricsServer {
	handler := promhttp.Handler()
	if gatherer != nil {
		handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Handler returns the server's HTTP handler.
func (s *MetricsServer) Handler() http.Handler {
	return s.server.Handler
}

// StartAsync starts the metrics server in a goroutine.
func (s *MetricsServer) StartAsync() {
	go func() {
		_ = s.server.ListenAndServe()
	}()
}

// Stop gracefully stops the metrics server.
func (s *MetricsServer) Stop() error {
	return s.server.Close()
}
