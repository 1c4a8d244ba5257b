package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveBuilds is the number of package builds currently running.
	ActiveBuilds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pkgforge",
			Subsystem: "scheduler",
			Name:      "active_builds",
			Help:      "Package builds currently running",
		},
	)

	// QueuedBuilds is the number of ready packages waiting for capacity.
	QueuedBuilds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pkgforge",
			Subsystem: "scheduler",
			Name:      "queued_builds",
			Help:      "Ready packages waiting for a free build slot",
		},
	)

	// TasksTotal counts finished tasks.
	// Labels: state (PUBLISHED, FAILED, SKIPPED, AWAITING_HUMAN)
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pkgforge",
			Subsystem: "scheduler",
			Name:      "tasks_total",
			Help:      "Package build tasks finished, by final state",
		},
		[]string{"state"},
	)

	// BuildDuration tracks how long package builds take.
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pkgforge",
			Subsystem: "scheduler",
			Name:      "build_duration_seconds",
			Help:      "Duration of package builds in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
	)
)

func recordQueue(c *Coordinator) {
	ActiveBuilds.Set(float64(c.Active()))
	QueuedBuilds.Set(float64(c.Queued()))
}

func recordFinished(t Task) {
	TasksTotal.WithLabelValues(string(t.State)).Inc()
	if d := t.Duration(); d > 0 {
		BuildDuration.Observe(d.Seconds())
	}
}
