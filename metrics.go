package web2pdf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "web2pdf"

var (
	metricQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "queue_depth",
		Help:      "Render jobs waiting to be dispatched.",
	})
	metricInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "jobs_inflight",
		Help:      "Render jobs currently running against the browser (0 or 1).",
	})
	metricJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "jobs_total",
		Help:      "Completed render jobs by outcome kind.",
	}, []string{"outcome"})
	metricRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "render_duration_seconds",
		Help:      "Time from dispatch to outcome for each render job.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180, 300},
	})
	metricQueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "queue_wait_seconds",
		Help:      "Time render jobs spent queued before dispatch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})
	metricSessionRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "session_restarts_total",
		Help:      "Browser sessions replaced after a detached frame.",
	})
	metricNavigationTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "navigation_timeouts_total",
		Help:      "Navigations that hit the soft timeout and fell back to best-effort capture.",
	})
)

// outcomeLabel maps an outcome to its metric label.
func outcomeLabel(o Outcome) string {
	if o.OK() {
		return "success"
	}
	return o.Kind()
}
