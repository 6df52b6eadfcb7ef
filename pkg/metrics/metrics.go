// Package metrics provides centralized Prometheus metrics registry for the SumAPI client.
// All metrics are defined in their respective packages (client, batch, cache, ratelimit)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation for all available metrics and an
// HTTP handler to expose them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the SumAPI client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns an HTTP handler serving every registered metric in the
// Prometheus text format, typically mounted at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - sumapi_requests_total{endpoint, status} (Counter): POSTs by endpoint and HTTP status
//   - sumapi_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - sumapi_errors_total{class} (Counter): Errors by class (auth, network, gateway, token_expired, invalid_request)
//
// Session Metrics (pkg/client):
//   - sumapi_auth_requests_total{outcome} (Counter): Token endpoint calls (success, rejected, malformed, network_error)
//   - sumapi_token_refreshes_total{outcome} (Counter): Session refreshes (success, error, malformed)
//
// Retry Metrics (pkg/client):
//   - sumapi_retries_total{error_class} (Counter): Resends by error class
//   - sumapi_retry_backoff_seconds{error_class} (Histogram): Backoff waited before a resend
//   - sumapi_retry_exhausted_total{error_class} (Counter): Requests that still failed after their retries
//
// Batch Metrics (pkg/batch):
//   - sumapi_batch_packets_total{outcome} (Counter): Packets by outcome (success, malformed, missing_evaluations, error)
//   - sumapi_batch_items_total (Counter): Items evaluated
//   - sumapi_batch_run_duration_seconds (Histogram): Duration of batch runs
//
// Cache Metrics (pkg/cache):
//   - sumapi_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - sumapi_cache_misses_total (Counter): Cache misses
//   - sumapi_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - sumapi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Rate Limit Metrics (pkg/ratelimit):
//   - sumapi_rate_limit_waits_total (Counter): Requests delayed by client side pacing
//   - sumapi_rate_limit_wait_seconds (Histogram): Time spent waiting
//
// Example Prometheus Queries:
//
//   # Gateway failures per hour
//   increase(sumapi_errors_total{class="gateway"}[1h])
//
//   # Token refresh rate
//   rate(sumapi_token_refreshes_total{outcome="success"}[15m])
//
//   # Batch throughput (items/s)
//   rate(sumapi_batch_items_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(sumapi_request_duration_seconds_bucket[5m]))
//
//   # Cache Hit Rate
//   sum(rate(sumapi_cache_hits_total[5m])) /
//   (sum(rate(sumapi_cache_hits_total[5m])) + sum(rate(sumapi_cache_misses_total[5m])))
