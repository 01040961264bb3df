package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts requests by method, route and status code
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maksab_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// ResponseTimeHistogram tracks request latency per route
	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maksab_http_response_time_seconds",
			Help:    "HTTP response time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ActivationsConfirmed counts accounts that completed fee payment
	ActivationsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maksab_activations_confirmed_total",
			Help: "Total number of successful account activations",
		},
	)

	// WithdrawalsResolved counts admin decisions by outcome
	WithdrawalsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maksab_withdrawals_resolved_total",
			Help: "Total number of withdrawal requests resolved by an admin",
		},
		[]string{"outcome"},
	)
)
