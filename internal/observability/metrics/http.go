package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics owns the API process registry. RAG and breaker collectors are
// registered into the same registry so /metrics serves everything.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	rejected *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &HTTPServerMetrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"service", "method", "path", "status"}),
		// Query requests include generation, so buckets reach well past DefBuckets.
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service", "method", "path"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "plc",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "HTTP requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plc",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by traffic control, by reason.",
		}, []string{"service", "reason"}),
	}
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}

		m.inFlight.Inc()
		defer m.inFlight.Dec()
		next.ServeHTTP(rec, r)

		path := normalizePath(r.URL.Path)
		m.requests.WithLabelValues(service, r.Method, path, strconv.Itoa(rec.code)).Inc()
		m.duration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordRejected(service, reason string) {
	m.rejected.WithLabelValues(service, reason).Inc()
}

// normalizePath keeps filenames out of label values.
func normalizePath(path string) string {
	for _, prefix := range []string{"/api/faults/", "/api/preview/"} {
		if strings.HasPrefix(path, prefix) {
			return prefix + "{filename}"
		}
	}
	return path
}

type codeRecorder struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *codeRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *codeRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach Flush and deadlines on the real writer.
func (w *codeRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
