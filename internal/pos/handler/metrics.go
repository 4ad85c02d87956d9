package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/SecurePOS/internal/anchor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	posRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	posRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	posSalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sales_recorded_total",
		Help: "Total sales appended to the ledger.",
	})

	posAnchorSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_anchor_submissions_total",
		Help: "Total anchor submissions by digest kind and result.",
	}, []string{"kind", "result"})

	posIntegrityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_integrity_checks_total",
		Help: "Total sale fingerprint checks by result.",
	}, []string{"result"})

	posHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_health_checks_total",
		Help: "Total background integrity checks by check and result.",
	}, []string{"check", "result"})

	posAuditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_audits_total",
		Help: "Total batch audits recorded.",
	})

	posAuditLeaves = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_audit_leaves",
		Help:    "Number of sales committed to per audit.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
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

		posRequestsTotal.WithLabelValues(method, path, status).Inc()
		posRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordIntegrityCheck records a sale verification result.
func RecordIntegrityCheck(match bool) {
	if match {
		posIntegrityChecksTotal.WithLabelValues("match").Inc()
	} else {
		posIntegrityChecksTotal.WithLabelValues("mismatch").Inc()
	}
}

// RecordHealthCheck records a background integrity check result.
func RecordHealthCheck(check string, success bool) {
	if success {
		posHealthChecksTotal.WithLabelValues(check, "success").Inc()
	} else {
		posHealthChecksTotal.WithLabelValues(check, "failure").Inc()
	}
}

// Recorder adapts the package metrics to service.MetricsRecorder.
type Recorder struct{}

// SaleRecorded implements service.MetricsRecorder.
func (Recorder) SaleRecorded() { posSalesRecordedTotal.Inc() }

// AnchorSubmission implements service.MetricsRecorder.
func (Recorder) AnchorSubmission(kind anchor.Kind, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	posAnchorSubmissionsTotal.WithLabelValues(string(kind), result).Inc()
}

// IntegrityCheck implements service.MetricsRecorder.
func (Recorder) IntegrityCheck(match bool) { RecordIntegrityCheck(match) }

// AuditCompleted implements service.MetricsRecorder.
func (Recorder) AuditCompleted(leaves int) {
	posAuditsTotal.Inc()
	posAuditLeaves.Observe(float64(leaves))
}
