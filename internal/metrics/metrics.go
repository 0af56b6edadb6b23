package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	evaluationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guardian_evaluations_total",
		Help: "Total number of requests evaluated by Guardian",
	})
	blockedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_blocked_total",
		Help: "Total number of blocked evaluations by reason",
	}, []string{"reason"})
	threatsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_threats_detected_total",
		Help: "Total number of threat pattern matches by category",
	}, []string{"category"})
	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guardian_rate_limited_total",
		Help: "Total number of requests blocked by the rate limiter",
	})
	lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guardian_lockouts_total",
		Help: "Total number of account lockouts triggered",
	})
	auditFlushFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guardian_audit_flush_failures_total",
		Help: "Total number of failed audit flush attempts",
	})
	auditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guardian_audit_events_dropped_total",
		Help: "Total number of audit events evicted from a full buffer",
	})
	auditBufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guardian_audit_buffer_size",
		Help: "Current number of audit events waiting to be flushed",
	})
)

// Register registers all Guardian metrics with the provided registry.
// Pass prometheus.DefaultRegisterer in production.
func Register(r prometheus.Registerer) {
	r.MustRegister(
		evaluationsTotal,
		blockedTotal,
		threatsTotal,
		rateLimitedTotal,
		lockoutsTotal,
		auditFlushFailures,
		auditDropped,
		auditBufferSize,
	)
}

// IncEvaluation counts one evaluation, allowed or blocked.
func IncEvaluation() { evaluationsTotal.Inc() }

// IncBlocked counts a blocked evaluation with the generic reason label.
func IncBlocked(reason string) { blockedTotal.WithLabelValues(reason).Inc() }

// IncThreat counts a pattern match for a category.
func IncThreat(category string) { threatsTotal.WithLabelValues(category).Inc() }

// IncRateLimited counts a rate-limiter block.
func IncRateLimited() { rateLimitedTotal.Inc() }

// IncLockout counts a triggered account lockout.
func IncLockout() { lockoutsTotal.Inc() }

// IncAuditFlushFailure counts a failed audit flush attempt.
func IncAuditFlushFailure() { auditFlushFailures.Inc() }

// IncAuditDropped counts audit events evicted under buffer pressure.
func IncAuditDropped(n int) { auditDropped.Add(float64(n)) }

// SetAuditBufferSize records the current audit buffer depth.
func SetAuditBufferSize(n int) { auditBufferSize.Set(float64(n)) }
