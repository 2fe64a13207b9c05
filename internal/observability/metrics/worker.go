package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        prometheus.Histogram

	generationOutcomes *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "worker",
			Name:      "jobs_processed_total",
			Help:      "Total note jobs processed by result.",
		},
		[]string{"service", "result"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scribe",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Note job processing duration in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "result"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scribe",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of note jobs currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scribe",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Time between job creation and the start of processing.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	generationOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "soap",
			Name:      "generation_outcomes_total",
			Help:      "SOAP generation outcomes by provider: generated, failed or degraded to defaults.",
		},
		[]string{"service", "provider", "outcome"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, queueLag, generationOutcomes)

	return &WorkerMetrics{
		registry:           registry,
		processTotal:       processTotal,
		processDuration:    processDuration,
		processInFlight:    processInFlight,
		queueLag:           queueLag,
		generationOutcomes: generationOutcomes,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveJobStart marks a job as in flight and records how long it sat queued.
func (m *WorkerMetrics) ObserveJobStart(queuedAt time.Time) {
	m.processInFlight.Inc()
	if !queuedAt.IsZero() {
		m.queueLag.Observe(time.Since(queuedAt).Seconds())
	}
}

func (m *WorkerMetrics) ObserveJobDone(service, result string, duration time.Duration) {
	m.processInFlight.Dec()
	m.processTotal.WithLabelValues(service, result).Inc()
	m.processDuration.WithLabelValues(service, result).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordGeneration(provider, outcome string) {
	if provider == "" {
		provider = "none"
	}
	m.generationOutcomes.WithLabelValues("worker", provider, outcome).Inc()
}
