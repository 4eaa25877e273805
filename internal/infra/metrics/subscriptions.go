package metrics

import (
	"zapfollow-billing/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionTransitionsTotal,
		planChangesTotal,
		subscriptionsTotal,
	)
}

var (
	subscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Status writes applied by reconciliation, by target status.",
		},
		[]string{"status"},
	)

	planChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_changes_total",
			Help: "Profile plan writes by target plan.",
		},
		[]string{"plan"},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"}, // 'pending', 'active', 'cancelled'
	)
)

func IncSubscriptionTransition(status model.SubscriptionStatus) {
	subscriptionTransitionsTotal.WithLabelValues(string(status)).Inc()
}

func IncPlanChange(plan model.PlanTier) {
	planChangesTotal.WithLabelValues(string(plan)).Inc()
}

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusPending,
		model.SubscriptionStatusActive,
		model.SubscriptionStatusCancelled,
	}
	for _, status := range statuses {
		subscriptionsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
