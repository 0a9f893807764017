package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics instruments the webhook process: request accounting plus
// webhook-specific counters. Each process owns its registry, nothing global.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	webhookEventsTotal    *prometheus.CounterVec
	webhookPublishedTotal *prometheus.CounterVec
	webhookSignatureFails prometheus.Counter
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normabot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "normabot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "normabot",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	webhookEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normabot",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Total webhook events received by kind.",
		},
		[]string{"service", "kind"},
	)
	webhookPublishedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normabot",
			Subsystem: "webhook",
			Name:      "published_total",
			Help:      "Total inbound messages published to the queue by status.",
		},
		[]string{"service", "status"},
	)
	webhookSignatureFails := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "normabot",
			Subsystem: "webhook",
			Name:      "signature_failures_total",
			Help:      "Total webhook requests rejected for a bad signature.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		webhookEventsTotal,
		webhookPublishedTotal,
		webhookSignatureFails,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		webhookEventsTotal:    webhookEventsTotal,
		webhookPublishedTotal: webhookPublishedTotal,
		webhookSignatureFails: webhookSignatureFails,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordWebhookEvent counts received events by kind: message, status, or
// unsupported.
func (m *HTTPServerMetrics) RecordWebhookEvent(service, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.webhookEventsTotal.WithLabelValues(service, kind).Inc()
}

func (m *HTTPServerMetrics) RecordPublish(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.webhookPublishedTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordSignatureFailure() {
	m.webhookSignatureFails.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
