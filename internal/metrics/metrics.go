// Package metrics exposes Prometheus collectors for backup jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Backup collects export and import job metrics. A nil *Backup is valid and
// records nothing.
type Backup struct {
	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	items    *prometheus.CounterVec
}

// NewBackup creates the collectors and registers them with reg.
func NewBackup(reg prometheus.Registerer) *Backup {
	m := &Backup{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dustgatherer",
			Subsystem: "backup",
			Name:      "jobs_total",
			Help:      "Finished backup jobs by kind and status.",
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dustgatherer",
			Subsystem: "backup",
			Name:      "job_duration_seconds",
			Help:      "Backup job duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dustgatherer",
			Subsystem: "backup",
			Name:      "jobs_in_flight",
			Help:      "Backup jobs currently running.",
		}, []string{"kind"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dustgatherer",
			Subsystem: "backup",
			Name:      "items_total",
			Help:      "Items processed by backup jobs by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.jobs, m.duration, m.inFlight, m.items)
	return m
}

// JobStarted marks a job of the given kind as running.
func (m *Backup) JobStarted(kind string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(kind).Inc()
}

// JobFinished records the end of a job.
func (m *Backup) JobFinished(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(kind).Dec()
	m.jobs.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Items adds item counts by result: exported, imported, skipped or failed.
func (m *Backup) Items(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(result).Add(float64(n))
}
