// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// MessagesSentTotal tracks messages accepted by the store.
	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total direct messages sent",
		},
	)

	// SendRejectionsTotal tracks sends refused before or at the store.
	SendRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_send_rejections_total",
			Help: "Message sends rejected, by reason",
		},
		[]string{"reason"},
	)

	// ReconciliationsTotal tracks re-pulls triggered by the change feed.
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Full re-pulls performed, by surface and outcome",
		},
		[]string{"surface", "outcome"},
	)

	// FeedEventsTotal tracks change events received from the push channel.
	FeedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_received_total",
			Help: "Change-feed events received, by table",
		},
		[]string{"table"},
	)

	// FeedSubscriptionFailuresTotal tracks failed subscribe attempts.
	FeedSubscriptionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_subscription_failures_total",
			Help: "Change-feed subscribe attempts that failed, by surface",
		},
		[]string{"surface"},
	)

	// ModerationDuration tracks classifier round trips.
	ModerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_request_duration_seconds",
			Help:    "Moderation classifier latency in seconds, by provider and outcome",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5},
		},
		[]string{"provider", "outcome"},
	)

	// MalformedRowsTotal tracks stored rows dropped at the read boundary.
	MalformedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_malformed_rows_total",
			Help: "Stored rows skipped because they failed validation, by table",
		},
		[]string{"table"},
	)

	// NotificationsMarkedReadTotal tracks notifications flipped to read.
	NotificationsMarkedReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_marked_read_total",
			Help: "Notifications marked as read",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordReconcile records the outcome of one re-pull.
func RecordReconcile(surface string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ReconciliationsTotal.WithLabelValues(surface, outcome).Inc()
}

// RecordModeration records one classifier call.
func RecordModeration(provider string, err error, seconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ModerationDuration.WithLabelValues(provider, outcome).Observe(seconds)
}

// RecordMalformedRows counts rows dropped by a read.
func RecordMalformedRows(table string, n int) {
	if n > 0 {
		MalformedRowsTotal.WithLabelValues(table).Add(float64(n))
	}
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
