// Package observability provides Prometheus metrics for the application.
package observability

import (
	"errors"
	"net/http"
	"time"

	"vidgrab/internal/errs"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	reg *prometheus.Registry

	// Run metrics
	RunsStarted prometheus.Counter
	RunDuration prometheus.Histogram
	RunItems    prometheus.Histogram

	// Item metrics
	ItemsCompleted  *prometheus.CounterVec
	ItemsInProgress prometheus.Gauge
	AttemptsTotal   prometheus.Counter
	FailureKinds    *prometheus.CounterVec

	// Resolver metrics
	ResolvedTotal *prometheus.CounterVec

	// Proxy metrics
	ProxyFailures    *prometheus.CounterVec
	ProxiesAvailable prometheus.Gauge
}

// New creates all application metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,

		// Run metrics
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgrab",
			Subsystem: "runs",
			Name:      "started_total",
			Help:      "Total number of download batches started",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vidgrab",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Histogram of batch duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		RunItems: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vidgrab",
			Subsystem: "runs",
			Name:      "items",
			Help:      "Histogram of items per batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		// Item metrics
		ItemsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidgrab",
			Subsystem: "items",
			Name:      "completed_total",
			Help:      "Total number of items by terminal status",
		}, []string{"status"}),
		ItemsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidgrab",
			Subsystem: "items",
			Name:      "in_progress",
			Help:      "Number of items currently downloading",
		}),
		AttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vidgrab",
			Subsystem: "items",
			Name:      "attempts_total",
			Help:      "Total number of download attempts across all items",
		}),
		FailureKinds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidgrab",
			Subsystem: "items",
			Name:      "failures_total",
			Help:      "Total number of failed attempts by failure kind",
		}, []string{"kind"}),

		// Resolver metrics
		ResolvedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidgrab",
			Subsystem: "resolver",
			Name:      "resolved_total",
			Help:      "Total number of resolved URLs by result",
		}, []string{"result"}),

		// Proxy metrics
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vidgrab",
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of proxy failures",
		}, []string{"proxy"}),
		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vidgrab",
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),
	}
}

// Handler returns the HTTP handler exposing this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RunTimer returns a function to record batch duration.
func (m *Metrics) RunTimer() func() {
	start := time.Now()

	return func() {
		m.RunDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordRunStarted records the start of a batch of the given size.
func (m *Metrics) RecordRunStarted(items int) {
	m.RunsStarted.Inc()
	m.RunItems.Observe(float64(items))
}

// RecordItemStarted increments the in-progress gauge.
func (m *Metrics) RecordItemStarted() {
	m.ItemsInProgress.Inc()
}

// RecordItemSucceeded records a successful item.
func (m *Metrics) RecordItemSucceeded() {
	m.ItemsCompleted.WithLabelValues("success").Inc()
	m.ItemsInProgress.Dec()
}

// RecordItemFailed records a permanently failed item.
func (m *Metrics) RecordItemFailed() {
	m.ItemsCompleted.WithLabelValues("failed").Inc()
	m.ItemsInProgress.Dec()
}

// RecordAttempt records one download attempt and its failure kind, if any.
func (m *Metrics) RecordAttempt(err error) {
	m.AttemptsTotal.Inc()

	if err != nil {
		m.FailureKinds.WithLabelValues(KindLabel(err)).Inc()
	}
}

// RecordResolve records the result of resolving one raw URL.
func (m *Metrics) RecordResolve(result string) {
	m.ResolvedTotal.WithLabelValues(result).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}

// KindLabel returns the metric label for a classified failure.
func KindLabel(err error) string {
	switch {
	case errors.Is(err, errs.ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, errs.ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}
