package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics instruments the ask pipeline: request outcomes, cache
// effectiveness, admission pressure, stage latency and candidate volumes.
type PipelineMetrics struct {
	registry *prometheus.Registry

	askTotal          *prometheus.CounterVec
	cacheTotal        *prometheus.CounterVec
	admissionRejected prometheus.Counter
	stageDuration     *prometheus.HistogramVec
	fusedCandidates   prometheus.Histogram
	ingestedPassages  prometheus.Counter
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total ask requests by outcome (answered, cached, no_match, rejected, error).",
		},
		[]string{"service", "outcome"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache name and result.",
		},
		[]string{"service", "cache", "result"},
	)
	admissionRejected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Subsystem: "ask",
			Name:      "admission_rejected_total",
			Help:      "Requests rejected by the concurrency gate.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpusqa",
			Subsystem: "ask",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	fusedCandidates := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "corpusqa",
			Subsystem: "ask",
			Name:      "fused_candidates",
			Help:      "Distribution of fused candidate counts per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestedPassages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusqa",
			Subsystem: "ingest",
			Name:      "passages_total",
			Help:      "Total passages written to the indexes.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		askTotal, cacheTotal, admissionRejected,
		stageDuration, fusedCandidates, ingestedPassages,
	)

	return &PipelineMetrics{
		registry:          registry,
		askTotal:          askTotal,
		cacheTotal:        cacheTotal,
		admissionRejected: admissionRejected,
		stageDuration:     stageDuration,
		fusedCandidates:   fusedCandidates,
		ingestedPassages:  ingestedPassages,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) AskOutcome(service, outcome string) {
	if m == nil {
		return
	}
	m.askTotal.WithLabelValues(service, outcome).Inc()
}

func (m *PipelineMetrics) CacheLookup(service, cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(service, cache, result).Inc()
}

func (m *PipelineMetrics) AdmissionRejected() {
	if m == nil {
		return
	}
	m.admissionRejected.Inc()
}

func (m *PipelineMetrics) ObserveStage(service, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(service, stage).Observe(d.Seconds())
}

func (m *PipelineMetrics) ObserveFusedCandidates(n int) {
	if m == nil {
		return
	}
	m.fusedCandidates.Observe(float64(n))
}

func (m *PipelineMetrics) AddIngestedPassages(n int) {
	if m == nil {
		return
	}
	m.ingestedPassages.Add(float64(n))
}
