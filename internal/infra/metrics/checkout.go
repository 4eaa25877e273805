package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(checkoutRequestsTotal) }

// result: redirect|already_active|bad_origin|invalid_plan|unauthorized|rate_limited|in_progress|provider_error|error
var checkoutRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_requests_total",
		Help: "Checkout initiation requests by result.",
	},
	[]string{"result"},
)

func IncCheckout(result string) {
	checkoutRequestsTotal.WithLabelValues(norm(result)).Inc()
}
