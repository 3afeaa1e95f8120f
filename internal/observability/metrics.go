// Package observability holds the prometheus collectors shared by the client packages.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP client metrics
	HTTPClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkadmin_http_client_requests_total",
			Help: "Total number of outgoing API requests",
		},
		[]string{"client", "method", "status"},
	)

	HTTPClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkadmin_http_client_request_duration_seconds",
			Help:    "Outgoing API request latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"client", "method"},
	)

	// Cache metrics
	CacheReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkadmin_cache_reads_total",
			Help: "Cache reads by namespace and result (hit, stale, miss)",
		},
		[]string{"namespace", "result"},
	)

	CacheFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkadmin_cache_fetches_total",
			Help: "Network fetches issued by the cache by namespace and outcome",
		},
		[]string{"namespace", "outcome"},
	)

	// Session metrics
	TokenRevalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkadmin_token_revalidations_total",
			Help: "Access token revalidation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Chat metrics
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkadmin_chat_messages_total",
			Help: "Chat messages exchanged over the websocket by direction",
		},
		[]string{"direction"},
	)
)
