package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedRowsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopulse_feed_rows_ingested_total",
			Help: "Total feed rows stored during population",
		},
		[]string{"feed"},
	)

	FeedFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopulse_feed_failures_total",
			Help: "Total feed passes aborted by a read, parse or insert error",
		},
		[]string{"feed"},
	)

	FeedFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecopulse_feed_fetch_latency_seconds",
			Help:    "Time to open a feed source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scheme"},
	)

	DailyQualityFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopulse_daily_quality_flags_total",
			Help: "Daily rows stored with a range-check flag",
		},
		[]string{"flag"},
	)

	CitiesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ecopulse_cities_created_total",
			Help: "Cities created while resolving feed rows",
		},
	)

	PopulateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecopulse_populate_duration_seconds",
			Help:    "Duration of a population pass across all feeds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopulse_api_requests_total",
			Help: "Total API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecopulse_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecopulse_analysis_requests_total",
			Help: "City analyses served by text source",
		},
		[]string{"source"},
	)
)
