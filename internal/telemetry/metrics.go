package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsAdmitted  = prometheus.NewCounter(prometheus.CounterOpts{Name: "videoscan_jobs_admitted_total", Help: "Jobs accepted into the admission queue"})
	JobsRejected  = prometheus.NewCounter(prometheus.CounterOpts{Name: "videoscan_jobs_rejected_total", Help: "Jobs rejected at submission"})
	RateLimitHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "videoscan_rate_limit_rejects_total", Help: "Submissions rejected by the token bucket"})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "videoscan_jobs_completed_total", Help: "Jobs that reached COMPLETED"})
	JobsFailed    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "videoscan_jobs_failed_total", Help: "Jobs that reached FAILED, by error kind"}, []string{"kind"})

	QueueDepth   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "videoscan_admission_queue_depth", Help: "Jobs currently waiting in the admission queue"})
	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{Name: "videoscan_jobs_inflight", Help: "Jobs currently being sampled, inspected or fused"})

	InspectorOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "videoscan_inspector_outcomes_total", Help: "Inspector completions by name and outcome kind"}, []string{"inspector", "kind"})

	FusionConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "videoscan_fusion_confidence",
		Help:    "Distribution of the final confidence score across completed jobs",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)

// Handler exposes the /metrics HTTP handler behind a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsAdmitted,
			JobsRejected,
			RateLimitHits,
			JobsCompleted,
			JobsFailed,
			QueueDepth,
			JobsInFlight,
			InspectorOutcomes,
			FusionConfidence,
		)
	})
	return promhttp.Handler()
}
