// Package metrics exposes monitor counters and histograms to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lifesignal/monitor/internal/services/monitor/engine"
	"github.com/lifesignal/monitor/internal/services/monitor/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifesignal_monitor"

// Metrics owns a private registry so several instances can coexist.
type Metrics struct {
	registry *prometheus.Registry

	evaluations       *prometheus.CounterVec
	evaluationLatency *prometheus.HistogramVec
	messages          *prometheus.CounterVec
	charts            *prometheus.CounterVec
	deliveries        *prometheus.CounterVec
	importedRecords   prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

var _ engine.Observer = (*Metrics)(nil)

// New registers every collector, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluations by category, interval and outcome.",
		}, []string{"category", "interval", "outcome"}),
		evaluationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Histogram of evaluation durations by interval.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"interval"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_emitted_total",
			Help:      "Messages emitted by rule kind.",
		}, []string{"kind"}),
		charts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_produced_total",
			Help:      "Chart images produced by category.",
		}, []string{"category"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Deliveries by sink and outcome.",
		}, []string{"sink", "outcome"}),
		importedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_records_total",
			Help:      "Raw records newly stored by imports.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		m.evaluations,
		m.evaluationLatency,
		m.messages,
		m.charts,
		m.deliveries,
		m.importedRecords,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// EvaluationFinished records one engine evaluation.
func (m *Metrics) EvaluationFinished(key registry.Key, outcome engine.Outcome, result engine.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(string(key.Category), string(key.Interval), string(outcome)).Inc()
	m.evaluationLatency.WithLabelValues(string(key.Interval)).Observe(elapsed.Seconds())
	for _, msg := range result.Messages {
		m.messages.WithLabelValues(string(msg.Kind)).Inc()
	}
	if n := len(result.Charts); n > 0 {
		m.charts.WithLabelValues(string(key.Category)).Add(float64(n))
	}
}

// Delivered records one sink attempt.
func (m *Metrics) Delivered(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.deliveries.WithLabelValues(sink, outcome).Inc()
}

// DeliverySkipped records a message suppressed by the delivery log.
func (m *Metrics) DeliverySkipped(sink string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(sink, "duplicate").Inc()
}

// RecordsImported adds n newly stored records.
func (m *Metrics) RecordsImported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importedRecords.Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests served by next under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}

// Handler serves the metrics exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
