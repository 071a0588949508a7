// Package metrics provides Prometheus instrumentation for the Orion panel.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orion",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orion",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LicenseDenialsTotal counts requests blocked by the license gate.
	LicenseDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orion",
			Name:      "license_denials_total",
			Help:      "Requests denied by the license gate, by reason.",
		},
		[]string{"reason"},
	)

	// RenewalRequestsTotal counts panel renewal requests by outcome.
	RenewalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orion",
			Name:      "renewal_requests_total",
			Help:      "Panel renewal lifecycle events by outcome.",
		},
		[]string{"outcome"}, // requested, approved, rejected
	)

	// FinancialSnapshotsTotal counts generated financial reports.
	FinancialSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orion",
			Name:      "financial_snapshots_total",
			Help:      "Financial snapshots generated.",
		},
	)

	// SweepRunsTotal counts background sweep executions by job and result.
	SweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orion",
			Name:      "sweep_runs_total",
			Help:      "Background sweep executions by job and result.",
		},
		[]string{"job", "result"},
	)

	// SweepExpiredTotal counts records expired by the sweeps.
	SweepExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orion",
			Name:      "sweep_expired_total",
			Help:      "Records transitioned to inactive by the sweeps.",
		},
		[]string{"entity"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LicenseDenialsTotal,
		RenewalRequestsTotal,
		FinancialSnapshotsTotal,
		SweepRunsTotal,
		SweepExpiredTotal,
	)
}

// Middleware records request count and latency for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
