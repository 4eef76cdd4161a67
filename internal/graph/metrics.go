package graph

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runtime metrics (spec §2 implementation budget note: optional operator
// visibility, not required by any invariant). Grounded on the teacher's
// runtime/metrics/prometheus package (stageDuration histogram,
// pipelinesActive gauge) but scoped to what GraphRuntime itself observes:
// how many stages are active and how long Open/Close take per stage.
const metricsNamespace = "speechflow"

var (
	activeStages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_stages",
		Help:      "Number of stages the runtime currently considers active (not yet finished or ended).",
	})

	stageOpenSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "stage_open_duration_seconds",
		Help:      "Time spent in a stage's Open call during graph construction.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	stageCloseSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "stage_close_duration_seconds",
		Help:      "Time spent in a stage's Close call during teardown.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	shutdownsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "shutdowns_total",
		Help:      "Completed graph shutdowns, labeled by reason.",
	}, []string{"reason"})
)

// metricsRegistry is process-scoped: every Runtime in the process shares one
// set of collectors (mirrors the teacher's package-level allMetrics, which
// is likewise a singleton registered once per process). Named distinctly
// from the stage-type registry package this file's siblings import.
var metricsRegistry = prometheus.NewRegistry()

func init() {
	metricsRegistry.MustRegister(activeStages, stageOpenSeconds, stageCloseSeconds, shutdownsTotal)
}

// MetricsHandler exposes the runtime's Prometheus collectors for mounting
// onto an existing HTTP mux (the control plane's, per SPEC_FULL.md §11 — no
// separate listener is required).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{})
}
