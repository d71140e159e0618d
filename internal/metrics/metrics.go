// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scribe/internal/job"
)

const namespace = "scribe"

// Metrics holds the collectors on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec
	crashesTotal    *prometheus.CounterVec
	segmentsTotal   prometheus.Counter
	queueJobs       *prometheus.GaugeVec
	currentProgress prometheus.Gauge
}

// New registers all collectors, including Go runtime and process metrics,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"status"}),
		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock time spent in each pipeline phase.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"phase"}),
		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acceleration_fallbacks_total",
			Help:      "Phases retried on CPU after an acceleration failure.",
		}, []string{"component"}),
		crashesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_crashes_total",
			Help:      "Worker processes that exited without a result.",
		}, []string{"component"}),
		segmentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Transcript segments assembled.",
		}),
		queueJobs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_jobs",
			Help:      "Jobs in the queue by status.",
		}, []string{"status"}),
		currentProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_job_progress_ratio",
			Help:      "Progress of the running job between 0 and 1.",
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// JobCompleted counts a job reaching status.
func (m *Metrics) JobCompleted(status job.Status) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(string(status)).Inc()
}

// ObservePhase records the duration of one phase run.
func (m *Metrics) ObservePhase(phase job.Status, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

// AccelerationFallback counts a CPU retry for component.
func (m *Metrics) AccelerationFallback(component string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(component).Inc()
}

// WorkerCrash counts a worker dying without a result.
func (m *Metrics) WorkerCrash(component string) {
	if m == nil {
		return
	}
	m.crashesTotal.WithLabelValues(component).Inc()
}

// SegmentAssembled counts one transcript segment.
func (m *Metrics) SegmentAssembled() {
	if m == nil {
		return
	}
	m.segmentsTotal.Inc()
}

// SetProgress publishes the running job's progress.
func (m *Metrics) SetProgress(value float64) {
	if m == nil {
		return
	}
	m.currentProgress.Set(value)
}

// ObserveQueue publishes per-status queue counts.
func (m *Metrics) ObserveQueue(summary job.Summary) {
	if m == nil {
		return
	}
	for _, status := range job.AllStatuses() {
		m.queueJobs.WithLabelValues(string(status)).Set(float64(summary.ByStatus[status]))
	}
}
