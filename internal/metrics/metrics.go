// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExamsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exams_scheduled_total",
			Help: "Total number of exams accepted for scheduling",
		},
		[]string{"department", "exam_type"},
	)

	ScheduleRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_schedule_rejections_total",
			Help: "Schedule requests refused by the daily capacity check",
		},
		[]string{"department", "exam_type"},
	)

	Conflicts = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exam_conflicts",
			Help: "Conflicts found by the most recent detection, by type",
		},
		[]string{"type"},
	)

	ExamsRescheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exams_rescheduled_total",
			Help: "Exams moved into a free canonical slot by auto-resolve",
		},
	)

	RescheduleMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_reschedule_misses_total",
			Help: "Conflicting exams for which no slot was found in the search window",
		},
	)

	ExamsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exams_published_total",
			Help: "Exams transitioned from DRAFT to PUBLISHED",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
