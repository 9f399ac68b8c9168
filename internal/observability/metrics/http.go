package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	uploadBytes     *prometheus.HistogramVec
	rejectedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),
		service:  service,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"service", "route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds. Synchronous processing runs the whole pipeline.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"service", "route", "method", "code"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		uploadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "upload_bytes",
			Help:      "Size of uploaded documents in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"service", "route"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_requests_total",
			Help:      "Requests shed before reaching a handler, by reason.",
		}, []string{"service", "reason"}),
	}
	m.registry.MustRegister(m.requestTotal, m.requestDuration, m.requestInFlight, m.uploadBytes, m.rejectedTotal)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Route instruments the handler of one route. route is the label value, so paths that
// carry document ids share a single series.
func (m *HTTPServerMetrics) Route(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"service": m.service, "route": route}
	h := promhttp.InstrumentHandlerDuration(m.requestDuration.MustCurryWith(labels), next)
	h = promhttp.InstrumentHandlerCounter(m.requestTotal.MustCurryWith(labels), h)
	return promhttp.InstrumentHandlerInFlight(m.requestInFlight, h)
}

func (m *HTTPServerMetrics) RecordUpload(route string, size int64) {
	if size < 0 {
		return
	}
	m.uploadBytes.WithLabelValues(m.service, route).Observe(float64(size))
}

func (m *HTTPServerMetrics) ObserveRejected(reason string) {
	m.rejectedTotal.WithLabelValues(m.service, orUnknown(reason)).Inc()
}
