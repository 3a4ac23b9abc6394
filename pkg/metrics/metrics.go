// Package metrics exports render counters and timings for Prometheus.
package metrics

import (
	"net/http"

	"github.com/df07/go-grrt/pkg/renderer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// rendersTotal counts finished renders by outcome
	rendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grrt_renders_total",
		Help: "Total renders by scenario and result",
	}, []string{"scenario", "result"}) // result: "ok", "error" or "cancelled"

	renderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grrt_render_duration_seconds",
		Help:    "Render wall time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s to ~27min
	}, []string{"scenario"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grrt_batch_duration_seconds",
		Help:    "Duration of one grid launch in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
	}, []string{"scenario"})

	// raysTotal counts traced pixels by termination
	raysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "grrt_rays_total",
		Help: "Total rays by scenario and termination",
	}, []string{"scenario", "termination"})

	averageSteps = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grrt_render_average_steps",
		Help:    "Average accepted integration steps per ray of a render",
		Buckets: prometheus.ExponentialBuckets(16, 2, 12),
	}, []string{"scenario"})

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grrt_jobs_active",
		Help: "Render jobs currently running",
	})
)

// Render results.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// ObserveBatch records one finished batch.
func ObserveBatch(scenario string, e renderer.BatchEvent) {
	batchDuration.WithLabelValues(scenario).Observe(e.Elapsed.Seconds())
}

// ObserveRender records a finished render. Stats are only counted for
// successful renders.
func ObserveRender(scenario, result string, stats renderer.RenderStats) {
	rendersTotal.WithLabelValues(scenario, result).Inc()
	if result != ResultOK {
		return
	}
	renderDuration.WithLabelValues(scenario).Observe(stats.Duration.Seconds())
	averageSteps.WithLabelValues(scenario).Observe(stats.AverageSteps)

	// Diverged rays terminate as captured.
	captured := stats.Captured - stats.Diverged
	raysTotal.WithLabelValues(scenario, "captured").Add(float64(captured))
	raysTotal.WithLabelValues(scenario, "escaped").Add(float64(stats.Escaped))
	raysTotal.WithLabelValues(scenario, "step_limit").Add(float64(stats.StepLimited))
	raysTotal.WithLabelValues(scenario, "diverged").Add(float64(stats.Diverged))
}

// JobStarted and JobFinished track running jobs.
func JobStarted()  { jobsActive.Inc() }
func JobFinished() { jobsActive.Dec() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
