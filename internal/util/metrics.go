package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_requests_created_total",
		Help: "Total number of purchase requests created",
	})

	RequestsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_requests_create_failed_total",
		Help: "Total number of purchase request creations that failed",
	}, []string{"reason"})

	RequestTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_request_transitions_total",
		Help: "Total number of successful purchase request status transitions",
	}, []string{"from", "to"})

	RequestTransitionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_request_transitions_failed_total",
		Help: "Total number of refused purchase request status transitions",
	}, []string{"reason"})

	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Total number of messages sent",
	})

	MessagesMarkedReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_marked_read_total",
		Help: "Total number of messages marked read",
	})

	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_delivered_total",
		Help: "Total number of events delivered to live sessions",
	})

	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Total number of events that reached no session",
	}, []string{"reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "push_sessions_active",
		Help: "Number of live push sessions on this instance",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
