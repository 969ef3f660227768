// Package metrics holds the Prometheus collectors of the workflow service.
package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry prometheus.Gatherer

	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	capacityDenials    *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	inboxCache         *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec
	ledgerMismatches   prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers on reg and serves from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: gatherer,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Workflow actions by action and outcome",
		}, []string{"action", "outcome"}),
		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workflow_transition_duration_seconds",
			Help:    "Time spent executing a workflow action",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		capacityDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capacity_denials_total",
			Help: "Requests denied by the capacity gate",
		}, []string{"priority"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries by channel and status",
		}, []string{"channel", "status"}),
		inboxCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_cache_lookups_total",
			Help: "Inbox projection cache lookups by result",
		}, []string{"result"}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Background job runs by job and status",
		}, []string{"job", "status"}),
		ledgerMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_mismatches_total",
			Help: "Requests whose history does not replay to their stored status",
		}),
	}
}

// ObserveTransition records one workflow action.
func (m *Metrics) ObserveTransition(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
	m.transitionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// CapacityDenied counts a denied admission.
func (m *Metrics) CapacityDenied(priority string) {
	if m == nil {
		return
	}
	m.capacityDenials.WithLabelValues(priority).Inc()
}

// NotificationSent counts a delivery attempt on channel.
func (m *Metrics) NotificationSent(channel string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

// InboxCacheLookup counts a cache hit or miss.
func (m *Metrics) InboxCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.inboxCache.WithLabelValues(result).Inc()
}

// JobRun counts one run of a background job.
func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
}

// LedgerMismatch counts a request found inconsistent by the ledger audit.
func (m *Metrics) LedgerMismatch() {
	if m == nil {
		return
	}
	m.ledgerMismatches.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
