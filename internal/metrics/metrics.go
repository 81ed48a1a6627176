// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "enroll"

// Notification outcomes.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
	NotificationDropped = "dropped"
)

// Registration outcomes.
const (
	RegistrationCreated   = "created"
	RegistrationDuplicate = "duplicate"
	RegistrationRejected  = "rejected"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status_code"},
	)

	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration attempts by queue type and result",
		},
		[]string{"type", "result"},
	)

	Deletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_total",
			Help:      "Entries removed by an administrator",
		},
		[]string{"type"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Turn notifications by outcome",
		},
		[]string{"status"},
	)

	QueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Number of waiting entries per queue type",
		},
		[]string{"type"},
	)
)

func RecordRegistration(queueType, result string) {
	Registrations.WithLabelValues(queueType, result).Inc()
}

func RecordDeletion(queueType string) {
	Deletions.WithLabelValues(queueType).Inc()
}

func RecordNotification(status string) {
	Notifications.WithLabelValues(status).Inc()
}
