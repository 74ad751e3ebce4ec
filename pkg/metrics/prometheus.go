package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	analyses      *prometheus.CounterVec
	betaDefaulted prometheus.Counter
	optimizations *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// Option configures the Recorder.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	namespace  string
}

// WithRegisterer registers collectors on r instead of the default registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithNamespace overrides the metric name prefix.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// New creates a new Prometheus metrics recorder.
func New(opts ...Option) *Recorder {
	o := &options{registerer: prometheus.DefaultRegisterer, namespace: "ares"}
	for _, opt := range opts {
		opt(o)
	}
	f := promauto.With(o.registerer)

	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "analyses_total",
				Help:      "Completed symbol analyses by verdict",
			},
			[]string{"verdict"},
		),
		betaDefaulted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "beta_defaulted_total",
				Help:      "Analyses where beta fell back to the default",
			},
		),
		optimizations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "optimizations_total",
				Help:      "Portfolio optimizations by objective and result",
			},
			[]string{"objective", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts a finished analysis.
func (r *Recorder) RecordAnalysis(verdict string) {
	r.analyses.WithLabelValues(verdict).Inc()
}

// RecordBetaDefaulted counts a beta fallback.
func (r *Recorder) RecordBetaDefaulted() {
	r.betaDefaulted.Inc()
}

// RecordOptimization counts a solver run; result is "ok" or "failed".
func (r *Recorder) RecordOptimization(objective, result string) {
	r.optimizations.WithLabelValues(objective, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordAnalysis(string)             {}
func (Nop) RecordBetaDefaulted()              {}
func (Nop) RecordOptimization(string, string) {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
