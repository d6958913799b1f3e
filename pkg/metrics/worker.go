package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerJobMetrics records metadata for background worker runs.
type WorkerJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewWorkerJobMetrics registers the worker job metrics on the provided registerer.
func NewWorkerJobMetrics(reg prometheus.Registerer) *WorkerJobMetrics {
	if reg == nil {
		return &WorkerJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of worker jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful worker job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed worker job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &WorkerJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (w *WorkerJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (w *WorkerJobMetrics) IncSuccess(job string) {
	if w == nil || w.success == nil {
		return
	}
	w.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (w *WorkerJobMetrics) IncFailure(job string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
