package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookNotificationsTotal,
		webhookDuration,
	)
}

var (
	// outcome: applied|no_id|provider_miss|sub_not_found|forbidden|error|health
	webhookNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Payment provider notifications by outcome.",
		},
		[]string{"outcome"},
	)

	webhookDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Duration of webhook reconciliation in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

func IncWebhook(outcome string) {
	webhookNotificationsTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveWebhookDuration(seconds float64) {
	webhookDuration.Observe(seconds)
}
