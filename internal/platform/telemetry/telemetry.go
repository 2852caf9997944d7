// Package telemetry exposes Prometheus metrics for HTTP traffic, dataset
// loads and render outcomes.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mskdash"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	httpActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "active_requests",
		Help:      "Requests currently being served.",
	})

	loadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "load_duration_seconds",
		Help:      "Time taken to load the input tables for one render.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	loadErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "load_errors_total",
		Help:      "Dataset loads that failed.",
	}, []string{"source"})

	tableRows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "rows",
		Help:      "Rows in each input table at the last load.",
	}, []string{"table"})

	renderWarnings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "warnings_total",
		Help:      "Artifacts replaced by an inline warning (missing chart columns, patients without rows).",
	}, []string{"artifact"})

	renderFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "failures_total",
		Help:      "Artifacts that could not be produced at all.",
	}, []string{"artifact"})

	httpAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "aborted_total",
		Help:      "Requests cut short by a handler panic or the request deadline.",
	}, []string{"route", "reason"})
)

// Abort reasons.
const (
	AbortPanic   = "panic"
	AbortTimeout = "timeout"
)

func init() {
	prometheus.MustRegister(
		httpRequests, httpDuration, httpActive,
		loadDuration, loadErrors, tableRows,
		renderWarnings, renderFailures, httpAborted,
	)
}

// ObserveLoad records one dataset load.
func ObserveLoad(source string, d time.Duration, err error) {
	loadDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		loadErrors.WithLabelValues(source).Inc()
	}
}

// SetTableRows records the row count of an input table.
func SetTableRows(table string, n int) {
	tableRows.WithLabelValues(table).Set(float64(n))
}

// RecordWarning counts a soft condition shown in place of an artifact.
func RecordWarning(artifact string) {
	renderWarnings.WithLabelValues(artifact).Inc()
}

// RecordFailure counts a hard failure of an artifact.
func RecordFailure(artifact string) {
	renderFailures.WithLabelValues(artifact).Inc()
}

// RecordAbort counts a request on route that ended in a panic or timeout.
func RecordAbort(route, reason string) {
	httpAborted.WithLabelValues(route, reason).Inc()
}

// MetricsMiddleware records request counts and latency per route pattern.
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpActive.Inc()
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let echo write the error so the recorded status is final.
				c.Error(err)
			}

			httpActive.Dec()
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			status := strconv.Itoa(c.Response().Status)
			httpRequests.WithLabelValues(req.Method, route, status).Inc()
			httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the default registry at /metrics.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
