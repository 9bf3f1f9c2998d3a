package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

// RAGMetrics implements ports.RAGObserver.
type RAGMetrics struct {
	service string

	retrievalTotal    *prometheus.CounterVec
	retrievalDegraded *prometheus.CounterVec
	retrievedChunks   *prometheus.HistogramVec
	retrievalDuration *prometheus.HistogramVec
	parseTotal        *prometheus.CounterVec
	generationTotal   *prometheus.CounterVec
	generationSeconds *prometheus.HistogramVec
	rebuildTotal      *prometheus.CounterVec
	rebuildSeconds    *prometheus.HistogramVec
	sparseChunks      prometheus.Gauge
	breakerOpen       *prometheus.GaugeVec
}

func NewRAGMetrics(service string, registerer prometheus.Registerer) *RAGMetrics {
	m := &RAGMetrics{
		service: service,
		retrievalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plc",
			Subsystem: "rag",
			Name:      "retrieval_total",
			Help:      "Retrievals by effective mode.",
		}, []string{"service", "mode"}),
		retrievalDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plc",
			Subsystem: "rag",
			Name:      "retrieval_degraded_total",
			Help:      "Retrievals where one side was unavailable, by side.",
		}, []string{"service", "side"}),
		retrievedChunks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plc",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of fused chunks per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"service"}),
		retrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plc",
			Subsystem: "rag",
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		parseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plc",
			Subsystem: "generation",
			Name:      "parse_total",
			Help:      "Parsed diagnosis records by parse tier.",
		}, []string{"service", "tier"}),
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plc",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Completion calls by status.",
		}, []string{"service", "status"}),
		generationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plc",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Completion call duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"service", "status"}),
		rebuildTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plc",
			Subsystem: "sparse",
			Name:      "rebuild_total",
			Help:      "Sparse index rebuilds by status.",
		}, []string{"service", "status"}),
		rebuildSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plc",
			Subsystem: "sparse",
			Name:      "rebuild_duration_seconds",
			Help:      "Sparse index rebuild duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		sparseChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "plc",
			Subsystem:   "sparse",
			Name:        "indexed_chunks",
			Help:        "Chunks in the current sparse snapshot.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		breakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "plc",
			Subsystem: "dependency",
			Name:      "breaker_open",
			Help:      "1 while the circuit breaker of an outbound operation is open or half-open.",
		}, []string{"service", "operation"}),
	}

	registerer.MustRegister(
		m.retrievalTotal,
		m.retrievalDegraded,
		m.retrievedChunks,
		m.retrievalDuration,
		m.parseTotal,
		m.generationTotal,
		m.generationSeconds,
		m.rebuildTotal,
		m.rebuildSeconds,
		m.sparseChunks,
		m.breakerOpen,
	)
	return m
}

func (m *RAGMetrics) ObserveRetrieval(r domain.Retrieval, duration time.Duration) {
	mode := string(r.Mode)
	if mode == "" {
		mode = "unknown"
	}
	m.retrievalTotal.WithLabelValues(m.service, mode).Inc()
	if r.DenseFailed {
		m.retrievalDegraded.WithLabelValues(m.service, "dense").Inc()
	}
	if r.SparseFailed {
		m.retrievalDegraded.WithLabelValues(m.service, "sparse").Inc()
	}
	m.retrievedChunks.WithLabelValues(m.service).Observe(float64(len(r.Chunks)))
	m.retrievalDuration.WithLabelValues(m.service).Observe(duration.Seconds())
}

func (m *RAGMetrics) ObserveParseTier(tier domain.ParseTier) {
	m.parseTotal.WithLabelValues(m.service, string(tier)).Inc()
}

func (m *RAGMetrics) ObserveSparseRebuild(chunks int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		m.sparseChunks.Set(float64(chunks))
	}
	m.rebuildTotal.WithLabelValues(m.service, status).Inc()
	m.rebuildSeconds.WithLabelValues(m.service).Observe(duration.Seconds())
}

func (m *RAGMetrics) ObserveGeneration(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.generationTotal.WithLabelValues(m.service, status).Inc()
	m.generationSeconds.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

// ObserveBreakerState matches resilience.StateListener.
func (m *RAGMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	if state != "closed" {
		value = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(value)
}
