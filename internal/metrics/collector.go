// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the service's prometheus instruments.
type Collector struct {
	decisionsTotal *prometheus.CounterVec
	decideDuration prometheus.Histogram
	lockContention prometheus.Counter
	learnerEvents  *prometheus.CounterVec
	learnerDropped prometheus.Counter
	historyPurged  prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewCollector registers the service instruments under the namespace on
// the default prometheus registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWith registers the instruments on a specific registerer.
func NewCollectorWith(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{}
	factory := promauto.With(reg)

	c.decisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Handoff decisions by verdict and reason",
		},
		[]string{"decision", "reason"},
	)

	c.decideDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decide_duration_seconds",
			Help:      "Latency of the decision path",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.lockContention = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Decisions denied because the contact lock was held",
		},
	)

	c.learnerEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learner_events_total",
			Help:      "Outcome events consumed by the pattern learner",
		},
		[]string{"outcome"},
	)

	c.learnerDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learner_events_dropped_total",
			Help:      "Outcome events dropped because the learner queue was full",
		},
	)

	c.historyPurged = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_purged_total",
			Help:      "Audit records removed by the retention sweep",
		},
	)

	c.httpRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return c
}

// RecordDecision counts one decision; reason is empty for HANDOFF.
func (c *Collector) RecordDecision(decision, reason string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(decision, reason).Inc()
	c.decideDuration.Observe(elapsed.Seconds())
}

// RecordLockContention counts a contact_busy denial.
func (c *Collector) RecordLockContention() {
	if c == nil {
		return
	}
	c.lockContention.Inc()
}

// RecordLearnerEvent counts a consumed outcome event.
func (c *Collector) RecordLearnerEvent(outcome string) {
	if c == nil {
		return
	}
	c.learnerEvents.WithLabelValues(outcome).Inc()
}

// RecordLearnerDrop counts a dropped outcome event.
func (c *Collector) RecordLearnerDrop() {
	if c == nil {
		return
	}
	c.learnerDropped.Inc()
}

// RecordHistoryPurge counts purged audit records.
func (c *Collector) RecordHistoryPurge(n int64) {
	if c == nil {
		return
	}
	c.historyPurged.Add(float64(n))
}

// RecordHTTPRequest counts one API request.
func (c *Collector) RecordHTTPRequest(method, path, status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, path, status).Inc()
	c.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
