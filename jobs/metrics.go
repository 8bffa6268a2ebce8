package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are shared by every tenant's scheduler. A nil *Metrics records nothing.
type Metrics struct {
	queued           *prometheus.CounterVec
	finished         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	loopsPrevented   *prometheus.CounterVec
	documentsMatched *prometheus.CounterVec
	dispatchFailures prometheus.Counter
}

// InitPrometheusMetrics creates and registers the job metrics.
// A nil registerer uses the default one.
func InitPrometheusMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		queued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_queued_total",
				Help:      "Total number of queued job executions",
			},
			[]string{"job"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total number of job executions reaching a terminal status",
			},
			[]string{"job", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of job handler runs",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"job", "status"},
		),
		loopsPrevented: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_loop_prevented_total",
				Help:      "Auto-triggers skipped by loop prevention",
			},
			[]string{"job"},
		),
		documentsMatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trigger_documents_matched_total",
				Help:      "Automation documents matched by a trigger event",
			},
			[]string{"verb"},
		),
		dispatchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trigger_dispatch_failures_total",
				Help:      "Script job dispatches that failed to queue",
			},
		),
	}

	reg.MustRegister(
		m.queued,
		m.finished,
		m.duration,
		m.loopsPrevented,
		m.documentsMatched,
		m.dispatchFailures,
	)

	return m
}

func (m *Metrics) RecordQueued(job string) {
	if m == nil {
		return
	}
	m.queued.WithLabelValues(job).Inc()
}

func (m *Metrics) RecordFinished(job string, status JobStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(job, string(status)).Inc()
	m.duration.WithLabelValues(job, string(status)).Observe(d.Seconds())
}

func (m *Metrics) RecordLoopPrevented(job string) {
	if m == nil {
		return
	}
	m.loopsPrevented.WithLabelValues(job).Inc()
}

func (m *Metrics) RecordDocumentMatched(verb string) {
	if m == nil {
		return
	}
	m.documentsMatched.WithLabelValues(verb).Inc()
}

func (m *Metrics) RecordDispatchFailure() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}
