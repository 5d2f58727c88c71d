package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// result: accepted | validation | link_invalid | quota_exceeded | not_found | error
	ReviewsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewhub_reviews_submitted_total",
			Help: "Review submissions by result",
		},
		[]string{"result"},
	)

	// outcome: applied | duplicate | signature_mismatch | not_found | error
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewhub_webhook_events_total",
			Help: "Payment webhook notifications by outcome",
		},
		[]string{"outcome"},
	)

	LinksCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewhub_links_created_total",
			Help: "Total number of review links issued",
		},
	)

	ShopsDowngradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewhub_shops_downgraded_total",
			Help: "Shops moved back to FREE by the expiry sweep",
		},
	)

	CounterDriftTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewhub_counter_drift_repaired_total",
			Help: "Shops whose reviews_used counter was repaired by reconciliation",
		},
	)
)
