// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipjar_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tipjar_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// WebhookEventsTotal counts verified deliveries by event type and outcome
	// (processed, ignored, duplicate, failed).
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipjar_webhook_events_total",
			Help: "Verified webhook deliveries by event type and outcome",
		},
		[]string{"type", "outcome"},
	)

	WebhookRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipjar_webhook_rejected_total",
			Help: "Webhook deliveries rejected before dispatch",
		},
		[]string{"reason"},
	)

	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tipjar_reconcile_duration_seconds",
			Help:    "Time spent in a reconciliation routine",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	EarningsCreditedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tipjar_earnings_credited_total",
			Help: "Payment intents credited to recipient earnings",
		},
	)

	GatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tipjar_gateway_errors_total",
			Help: "Payment gateway call failures by operation and error code",
		},
		[]string{"operation", "code"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			WebhookEventsTotal,
			WebhookRejectedTotal,
			ReconcileDuration,
			EarningsCreditedTotal,
			GatewayErrorsTotal,
		)
	})
}
