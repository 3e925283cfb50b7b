// Package telemetry exports rewriting and execution metrics to Prometheus.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/executor"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "sqlsrv"

// Default histogram buckets for statement duration (in seconds)
var defaultBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// Metrics collects counters for one or more connections. It implements both
// rewrite.Observer and executor.Observer.
type Metrics struct {
	registry *prometheus.Registry

	rewritesTotal     *prometheus.CounterVec
	promotionsTotal   prometheus.Counter
	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	poisonedTotal     *prometheus.CounterVec
}

var (
	_ rewrite.Observer  = (*Metrics)(nil)
	_ executor.Observer = (*Metrics)(nil)
)

// Option configures Metrics.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
	runtime   bool
}

// WithNamespace overrides DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// WithRuntimeCollectors also registers the Go and process collectors.
func WithRuntimeCollectors() Option {
	return func(o *options) { o.runtime = true }
}

// New creates Metrics on a private registry.
func New(opts ...Option) *Metrics {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.buckets) == 0 {
		o.buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	if o.runtime {
		registry.MustRegister(prometheus.NewGoCollector())
		registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}

	m := &Metrics{
		registry: registry,

		rewritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "rewrites_total",
				Help:      "Statements rewritten, by source (cache or full)",
			},
			[]string{"source"},
		),

		promotionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "rewrite_promotions_total",
				Help:      "Rewrites materialized in the cache after reaching the hit threshold",
			},
		),

		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "executions_total",
				Help:      "Statements executed, by return mode and outcome",
			},
			[]string{"mode", "status"},
		),

		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Name:      "execution_duration_seconds",
				Help:      "Engine round-trip time per statement",
				Buckets:   o.buckets,
			},
			[]string{"mode"},
		),

		poisonedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Name:      "transactions_poisoned_total",
				Help:      "Transactions aborted by the engine, by SQLSTATE",
			},
			[]string{"sqlstate"},
		),
	}

	registry.MustRegister(
		m.rewritesTotal,
		m.promotionsTotal,
		m.executionsTotal,
		m.executionDuration,
		m.poisonedTotal,
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RewriteObserved implements rewrite.Observer.
func (m *Metrics) RewriteObserved(cached bool) {
	source := "full"
	if cached {
		source = "cache"
	}
	m.rewritesTotal.WithLabelValues(source).Inc()
}

// RewritePromoted implements rewrite.Observer.
func (m *Metrics) RewritePromoted() {
	m.promotionsTotal.Inc()
}

// ExecutionObserved implements executor.Observer.
func (m *Metrics) ExecutionObserved(mode executor.ReturnMode, elapsed time.Duration, err error) {
	m.executionsTotal.WithLabelValues(mode.String(), status(err)).Inc()
	m.executionDuration.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
}

// TransactionPoisoned implements executor.Observer.
func (m *Metrics) TransactionPoisoned(d query.Diagnostic) {
	state := d.SQLState
	if state == "" {
		state = "unknown"
	}
	m.poisonedTotal.WithLabelValues(state).Inc()
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case query.IsIntegrityViolation(err):
		return "integrity"
	case query.IsDoomed(err):
		return "doomed"
	case query.IsObjectNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
