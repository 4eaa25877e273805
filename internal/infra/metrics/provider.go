package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(providerRequestDuration) }

var providerRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "provider_requests_duration_seconds",
		Help:    "Payment provider API latency by operation and success.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"op", "success"},
)

func ObserveProviderCall(op string, seconds float64, success bool) {
	providerRequestDuration.WithLabelValues(norm(op), strconv.FormatBool(success)).Observe(seconds)
}
