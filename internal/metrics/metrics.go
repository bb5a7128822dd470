// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream fetch outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeStatus      = "non_2xx"
	OutcomeError       = "error"
	OutcomeDecodeError = "decode_error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	relayLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ogrelay_lookups_total",
			Help: "Total number of completed lookups, labeled by the source that answered.",
		},
		[]string{"source"},
	)

	relayUpstreamFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ogrelay_upstream_fetches_total",
			Help: "Total number of upstream fetches, labeled by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	headlessPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ogrelay_headless_promotions_total",
			Help: "Total number of page fetches re-rendered in a headless browser, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	relayUpstreamDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ogrelay_upstream_duration_seconds",
			Help:    "Histogram of upstream fetch latencies, labeled by strategy.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"strategy"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveLookup counts a finished lookup answered by source.
func ObserveLookup(source string) {
	relayLookupsTotal.WithLabelValues(source).Inc()
}

// ObserveUpstream records one upstream fetch made by a strategy.
func ObserveUpstream(strategy, outcome string, duration time.Duration) {
	relayUpstreamFetchesTotal.WithLabelValues(strategy, outcome).Inc()
	relayUpstreamDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObservePromotion counts a headless re-render with its outcome.
func ObservePromotion(outcome string) {
	headlessPromotionsTotal.WithLabelValues(outcome).Inc()
}
