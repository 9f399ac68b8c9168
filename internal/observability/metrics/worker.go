package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fiscal"

// WorkerMetrics also serves as the pipeline's attempt observer.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	attemptsTotal   *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	duplicatesTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_process_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_process_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_process_in_flight",
			Help:      "Number of in-flight document processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "attempts_total",
			Help:      "Pipeline passes by outcome (success, invalid, error).",
		},
		[]string{"service", "outcome"},
	)
	fallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "fallbacks_total",
			Help:      "Pipeline runs that exhausted retries, by best known document type.",
		},
		[]string{"service", "document_type"},
	)
	duplicatesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duplicates_total",
			Help:      "Documents flagged as duplicates, by strongest match type.",
		},
		[]string{"service", "duplicate_type"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, attemptsTotal, fallbacksTotal, duplicatesTotal)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		attemptsTotal:   attemptsTotal,
		fallbacksTotal:  fallbacksTotal,
		duplicatesTotal: duplicatesTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishDocument(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveAttempt(outcome string) {
	m.attemptsTotal.WithLabelValues(m.service, orUnknown(outcome)).Inc()
}

func (m *WorkerMetrics) ObserveFallback(documentType string) {
	m.fallbacksTotal.WithLabelValues(m.service, orUnknown(documentType)).Inc()
}

func (m *WorkerMetrics) ObserveDuplicate(duplicateType string) {
	m.duplicatesTotal.WithLabelValues(m.service, orUnknown(duplicateType)).Inc()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
