package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rupped"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency. Streaming routes include the full stream.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RelayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Negotiation relay requests by outcome.",
		},
		[]string{"outcome"},
	)

	RelayBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_streamed_bytes_total",
			Help:      "Bytes copied from the negotiator to storefront clients.",
		},
	)

	NegotiationStreams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_streams_total",
			Help:      "Negotiator reply streams by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	NegotiationSnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_snapshots_total",
			Help:      "Snapshot events emitted by the negotiator.",
		},
	)

	CartOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Cart operations by kind.",
		},
		[]string{"op"},
	)

	ActiveCarts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "carts_active",
			Help:      "Carts currently held in storage.",
		},
	)

	SetupProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_probes_total",
			Help:      "Negotiator health probes by resulting backend status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		RelayRequests,
		RelayBytes,
		NegotiationStreams,
		NegotiationSnapshots,
		CartOperations,
		ActiveCarts,
		SetupProbes,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
