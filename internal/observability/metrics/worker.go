package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics instruments the message-processing side: end-to-end handling
// plus the pipeline internals (per-collection retrieval, gate decisions,
// validator replacements).
type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec

	pipelineOutcomes *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	collectionHits   *prometheus.HistogramVec
	gateDecisions    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normabot",
			Subsystem: "worker",
			Name:      "message_process_total",
			Help:      "Total processed messages by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "normabot",
			Subsystem: "worker",
			Name:      "message_process_duration_seconds",
			Help:      "Message processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "normabot",
			Subsystem: "worker",
			Name:      "message_process_in_flight",
			Help:      "Number of in-flight message processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "normabot",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between webhook receipt and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	pipelineOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normabot",
			Subsystem: "pipeline",
			Name:      "outcomes_total",
			Help:      "Total answer pipeline runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "normabot",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Answer pipeline duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	collectionHits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "normabot",
			Subsystem: "pipeline",
			Name:      "collection_hits",
			Help:      "Distribution of usable hits returned per collection.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service", "collection"},
	)
	gateDecisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "normabot",
			Subsystem: "pipeline",
			Name:      "gate_decisions_total",
			Help:      "Total confidence gate decisions.",
		},
		[]string{"service", "decision"},
	)
	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		queueLag,
		pipelineOutcomes,
		pipelineDuration,
		collectionHits,
		gateDecisions,
	)

	return &WorkerMetrics{
		registry:         registry,
		processTotal:     processTotal,
		processDuration:  processDuration,
		processInFlight:  processInFlight,
		queueLag:         queueLag,
		pipelineOutcomes: pipelineOutcomes,
		pipelineDuration: pipelineDuration,
		collectionHits:   collectionHits,
		gateDecisions:    gateDecisions,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartMessage() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishMessage(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// PipelineObserver adapts the worker metrics to the pipeline's telemetry
// interface.
type PipelineObserver struct {
	metrics *WorkerMetrics
	service string
}

func NewPipelineObserver(metrics *WorkerMetrics, service string) *PipelineObserver {
	return &PipelineObserver{metrics: metrics, service: service}
}

func (o *PipelineObserver) CollectionReturned(collection string, hits int) {
	o.metrics.collectionHits.WithLabelValues(o.service, collection).Observe(float64(hits))
}

func (o *PipelineObserver) GateEvaluated(accepted bool) {
	decision := "rejected"
	if accepted {
		decision = "accepted"
	}
	o.metrics.gateDecisions.WithLabelValues(o.service, decision).Inc()
}

func (o *PipelineObserver) Finished(outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	o.metrics.pipelineOutcomes.WithLabelValues(o.service, outcome).Inc()
	o.metrics.pipelineDuration.WithLabelValues(o.service, outcome).Observe(elapsed.Seconds())
}
