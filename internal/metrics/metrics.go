// Package metrics provides Prometheus instrumentation for the vault engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OperationsTotal counts ledger operations by name and outcome.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_operations_total",
		Help: "Total number of vault operations",
	}, []string{"op", "result"})

	// OperationLatency tracks operation latency including persistence.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_operation_latency_seconds",
		Help:    "Vault operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// TotalValueLocked is the sum of NAV across all vaults, in tokens.
	TotalValueLocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_total_value_locked",
		Help: "Sum of total value across all vaults in tokens",
	})

	// FeesCollected counts collected fees in tokens, by kind.
	FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_fees_collected_total",
		Help: "Cumulative fees collected in tokens",
	}, []string{"kind"})

	// NavFloored counts trade results whose loss exceeded NAV.
	NavFloored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_nav_floored_total",
		Help: "Trade results clamped to a zero NAV",
	})

	// ActiveVaults tracks the number of vaults in the active status.
	ActiveVaults = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_active_vaults",
		Help: "Number of vaults accepting deposits",
	})

	// NavSamples counts periodic NAV-per-share samples taken.
	NavSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_nav_samples_total",
		Help: "NAV-per-share samples recorded by the sampler",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vault_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveOperation records the outcome and latency of one operation.
func ObserveOperation(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(op, result).Inc()
	OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
