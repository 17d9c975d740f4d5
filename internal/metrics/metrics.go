package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for the evaluations counter.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the evaluation collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	warnings    prometheus.Counter
	cache       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genscene_evaluations_total",
				Help: "Scene evaluations by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genscene_evaluation_duration_seconds",
				Help:    "Duration of scene evaluations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"source"},
		),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genscene_evaluation_warnings_total",
			Help: "Warnings produced by scene evaluations",
		}),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genscene_cache_lookups_total",
				Help: "Render cache lookups by result",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(m.evaluations, m.duration, m.warnings, m.cache)
	return m
}

// ObserveEvaluation records one evaluation from source ("http", "ws", ...).
func (m *Metrics) ObserveEvaluation(source string, elapsed time.Duration, warnings int, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.evaluations.WithLabelValues(source, outcome).Inc()
	m.duration.WithLabelValues(source).Observe(elapsed.Seconds())
	if warnings > 0 {
		m.warnings.Add(float64(warnings))
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cache.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cache.WithLabelValues("miss").Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
