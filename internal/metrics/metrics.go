// Package metrics exposes Prometheus instrumentation for report refreshes,
// insight rules and outlier counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "claimlens"

// Refresh results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds every collector on a private registry. All methods are safe
// on a nil receiver so callers can run without instrumentation.
type Metrics struct {
	registry        *prometheus.Registry
	insightsEmitted *prometheus.CounterVec
	rulesSkipped    *prometheus.CounterVec
	outliers        *prometheus.GaugeVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	lastRefresh     prometheus.Gauge
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		insightsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insights_emitted_total",
			Help:      "Insights emitted, by category.",
		}, []string{"category"}),
		rulesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_skipped_total",
			Help:      "Insight rules skipped because their preconditions were not met.",
		}, []string{"rule"}),
		outliers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outliers",
			Help:      "Outliers in the current report, by population and source.",
		}, []string{"population", "source"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Report refreshes, by result.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time to load a snapshot and compute a report.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
	}
	m.registry.MustRegister(
		m.insightsEmitted,
		m.rulesSkipped,
		m.outliers,
		m.refreshes,
		m.refreshDuration,
		m.lastRefresh,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// InsightEmitted counts one emitted insight.
func (m *Metrics) InsightEmitted(category string) {
	if m == nil {
		return
	}
	m.insightsEmitted.WithLabelValues(category).Inc()
}

// RuleSkipped counts one rule whose precondition was not met.
func (m *Metrics) RuleSkipped(rule string) {
	if m == nil {
		return
	}
	m.rulesSkipped.WithLabelValues(rule).Inc()
}

// SetOutliers records the outlier count of one population.
func (m *Metrics) SetOutliers(population, source string, n int) {
	if m == nil {
		return
	}
	m.outliers.WithLabelValues(population, source).Set(float64(n))
}

// RefreshDone records one refresh attempt.
func (m *Metrics) RefreshDone(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(elapsed.Seconds())
	if result == ResultSuccess {
		m.lastRefresh.SetToCurrentTime()
	}
}
