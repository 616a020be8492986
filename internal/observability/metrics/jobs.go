package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

// JobMetrics instruments upload job tracking. It satisfies the tracker's
// metrics hook and owns its registry so the watcher can expose it standalone.
type JobMetrics struct {
	service  string
	registry *prometheus.Registry

	jobsTotal    *prometheus.CounterVec
	jobsInFlight prometheus.Gauge
	jobDuration  *prometheus.HistogramVec
	pollAttempts *prometheus.HistogramVec
}

func NewJobMetrics(service string) *JobMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "filingdesk",
			Subsystem: "jobs",
			Name:      "resolved_total",
			Help:      "Total resolved upload jobs by terminal phase.",
		},
		[]string{"service", "phase"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "filingdesk",
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of upload jobs awaiting resolution.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filingdesk",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Upload-to-resolution duration in seconds by terminal phase.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "phase"},
	)
	pollAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "filingdesk",
			Subsystem: "jobs",
			Name:      "poll_attempts",
			Help:      "Distribution of status polls spent per resolved job.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "phase"},
	)

	registry.MustRegister(jobsTotal, jobsInFlight, jobDuration, pollAttempts)

	return &JobMetrics{
		service:      service,
		registry:     registry,
		jobsTotal:    jobsTotal,
		jobsInFlight: jobsInFlight,
		jobDuration:  jobDuration,
		pollAttempts: pollAttempts,
	}
}

func (m *JobMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *JobMetrics) Started() {
	m.jobsInFlight.Inc()
}

func (m *JobMetrics) Finished(outcome domain.JobPhase, polls int, duration time.Duration) {
	m.jobsInFlight.Dec()

	phase := string(outcome)
	m.jobsTotal.WithLabelValues(m.service, phase).Inc()
	m.jobDuration.WithLabelValues(m.service, phase).Observe(duration.Seconds())
	m.pollAttempts.WithLabelValues(m.service, phase).Observe(float64(polls))
}
