package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/ConfidenceLedger/internal/chain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_appended_total",
		Help: "Total ledger entries appended by event type.",
	}, []string{"event_type"})

	ledgerLockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_lock_timeouts_total",
		Help: "Total writes rejected because the append lock was not acquired in time.",
	})

	ledgerAuditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_audits_total",
		Help: "Total full-chain audits by result.",
	}, []string{"result"})

	ledgerAuditBrokenRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_audit_broken_rows",
		Help: "Rows with a broken prev_hash link in the most recent audit.",
	})

	ledgerAuditMismatchedRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_audit_mismatched_rows",
		Help: "Rows whose digest did not match in the most recent audit.",
	})

	ledgerDeclarationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_declaration_transitions_total",
		Help: "Total confidence declaration status changes by target status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ledgerRequestsTotal.WithLabelValues(method, path, status).Inc()
		ledgerRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordLedgerAppend records an appended entry. It has the signature of
// chain.Ledger.SetAppendHook.
func RecordLedgerAppend(e *chain.Entry) {
	ledgerEntriesTotal.WithLabelValues(e.EventType).Inc()
}

// RecordLockTimeout records a write rejected with chain.ErrLockTimeout.
func RecordLockTimeout() {
	ledgerLockTimeoutsTotal.Inc()
}

// RecordAudit records the outcome of a full-chain audit.
func RecordAudit(r *chain.AuditReport) {
	if r.Passed() {
		ledgerAuditsTotal.WithLabelValues("passed").Inc()
	} else {
		ledgerAuditsTotal.WithLabelValues("failed").Inc()
	}
	ledgerAuditBrokenRows.Set(float64(len(r.BrokenRows)))
	ledgerAuditMismatchedRows.Set(float64(len(r.MismatchedRows)))
}

// RecordTransitions records n declarations moved to status.
func RecordTransitions(status string, n int) {
	if n > 0 {
		ledgerDeclarationTransitions.WithLabelValues(status).Add(float64(n))
	}
}
