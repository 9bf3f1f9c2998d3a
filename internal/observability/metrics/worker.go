package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// Job sources.
const (
	SourceQueue = "queue"
	SourceWatch = "watch"
)

// WorkerMetrics covers ingest batches from the NATS queue and the KB watcher.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	queueLag prometheus.Histogram
	chunks   *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, registry))

	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "plc", Subsystem: "worker", Name: name, Help: help}
	}

	return &WorkerMetrics{
		registry: registry,
		jobs: factory.NewCounterVec(prometheus.CounterOpts(opts("ingest_job_total",
			"Ingest batches by source and outcome.")), []string{"source", "status"}),
		// Extraction plus embedding of a large PDF batch can take minutes.
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plc",
			Subsystem: "worker",
			Name:      "ingest_job_duration_seconds",
			Help:      "Ingest batch duration by source.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"source"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts(opts("ingest_job_in_flight",
			"Ingest batches currently running.")), []string{"source"}),
		queueLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plc",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job publication and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),
		chunks: factory.NewCounterVec(prometheus.CounterOpts(opts("ingested_chunks_total",
			"Chunks stored by ingest kind.")), []string{"kind"}),
		skipped: factory.NewCounterVec(prometheus.CounterOpts(opts("skipped_files_total",
			"Files skipped as hidden, unsupported or unreadable.")), []string{"source"}),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQueueLag ignores jobs without a creation time and clock skew.
func (m *WorkerMetrics) ObserveQueueLag(createdAt time.Time) {
	if createdAt.IsZero() {
		return
	}
	if lag := time.Since(createdAt); lag >= 0 {
		m.queueLag.Observe(lag.Seconds())
	}
}

// BeginJob marks a batch as running. The returned func must be called exactly once.
func (m *WorkerMetrics) BeginJob(source string) func(kind domain.IngestKind, report *domain.IngestReport, err error) {
	start := time.Now()
	m.inFlight.WithLabelValues(source).Inc()

	return func(kind domain.IngestKind, report *domain.IngestReport, err error) {
		m.inFlight.WithLabelValues(source).Dec()
		m.duration.WithLabelValues(source).Observe(time.Since(start).Seconds())
		m.jobs.WithLabelValues(source, jobStatus(err)).Inc()
		if err != nil || report == nil {
			return
		}
		if report.Chunks > 0 {
			m.chunks.WithLabelValues(string(kind)).Add(float64(report.Chunks))
		}
		if report.Skipped > 0 {
			m.skipped.WithLabelValues(source).Add(float64(report.Skipped))
		}
	}
}

func jobStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
