package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions   *prometheus.CounterVec
	cacheOps    *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	workflows   *prometheus.CounterVec
	fetchDur    prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketgate_compliance_decisions_total",
				Help: "Total number of compliance decisions by status and level",
			},
			[]string{"status", "level"},
		),
		cacheOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketgate_cache_lookups_total",
				Help: "Total number of record cache lookups",
			},
			[]string{"result"},
		),
		rateLimited: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketgate_rate_limited_total",
				Help: "Total number of rate-limited calls",
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketgate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		workflows: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketgate_workflow_results_total",
				Help: "Total number of completed workflows by outcome",
			},
			[]string{"outcome"},
		),
		fetchDur: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketgate_fetch_duration_seconds",
				Help:    "Duration of upstream fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordDecision records a compliance decision outcome.
func (r *Recorder) RecordDecision(status, level string) {
	r.decisions.WithLabelValues(status, level).Inc()
}

// RecordCacheHit records a record cache hit.
func (r *Recorder) RecordCacheHit(string) {
	r.cacheOps.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a record cache miss.
func (r *Recorder) RecordCacheMiss(string) {
	r.cacheOps.WithLabelValues("miss").Inc()
}

// RecordRateLimited records a denied call for an operation.
func (r *Recorder) RecordRateLimited(operation string) {
	r.rateLimited.WithLabelValues(operation).Inc()
}

// RecordFetchLatency records an upstream fetch duration in seconds.
func (r *Recorder) RecordFetchLatency(seconds float64) {
	r.fetchDur.Observe(seconds)
}

// RecordWorkflowResult records a terminal workflow outcome.
func (r *Recorder) RecordWorkflowResult(outcome string) {
	r.workflows.WithLabelValues(outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
