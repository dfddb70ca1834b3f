package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NavigationAttempts counts page loads by page kind (listing, detail) and
	// outcome (success, soft_blocked, failed).
	NavigationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaharvest_navigation_attempts_total",
			Help: "Page load attempts by page kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	NavigationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qaharvest_navigation_duration_seconds",
			Help:    "Duration of single navigation attempts.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// PagesSkipped counts pages given up on after the retry budget.
	PagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaharvest_pages_skipped_total",
			Help: "Pages skipped after exhausting retries, by page kind and error code.",
		},
		[]string{"kind", "code"},
	)

	RecordsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaharvest_records_committed_total",
			Help: "Committed records by partition.",
		},
		[]string{"partition"},
	)

	Images = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaharvest_images_total",
			Help: "Image downloads by outcome.",
		},
		[]string{"outcome"},
	)

	Flushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qaharvest_flushes_total",
			Help: "Result set flushes by sink and outcome.",
		},
		[]string{"sink", "outcome"},
	)
)
