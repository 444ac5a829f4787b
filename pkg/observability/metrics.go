// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring confwhisper.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rhuss/confwhisper/pkg/api"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confwhisper_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confwhisper_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "confwhisper_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// ProviderRequestsTotal counts completion streams opened against the
	// backend, by outcome ("success" or "error").
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confwhisper_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"model", "status"},
	)

	// ProviderLatency records the time until the backend accepted the stream.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confwhisper_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confwhisper_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// StreamEventsTotal counts normalized events yielded to callers.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confwhisper_stream_events_total",
			Help: "Stream events",
		},
		[]string{"model", "type"},
	)

	// ProviderRetriesTotal counts retried backend calls.
	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confwhisper_provider_retries_total",
			Help: "Provider retries",
		},
		[]string{"model"},
	)

	// OHTTPRequestsTotal counts requests sent through the OHTTP relay by
	// outcome ("success", "encapsulate_error", "relay_error", "decapsulate_error").
	OHTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confwhisper_ohttp_requests_total",
			Help: "OHTTP requests",
		},
		[]string{"status"},
	)

	// RateLimitRejectedTotal counts gateway requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confwhisper_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)

	// UsageRecordErrorsTotal counts usage records the ledger failed to store.
	UsageRecordErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "confwhisper_usage_record_errors_total",
			Help: "Usage ledger write failures",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		StreamEventsTotal,
		ProviderRetriesTotal,
		OHTTPRequestsTotal,
		RateLimitRejectedTotal,
		UsageRecordErrorsTotal,
	)
}

// RecordStreamEvent counts ev and, for usage events, its tokens.
func RecordStreamEvent(model string, ev api.StreamEvent) {
	StreamEventsTotal.WithLabelValues(model, string(ev.Type)).Inc()
	if ev.Type == api.EventUsage {
		ProviderTokensTotal.WithLabelValues(model, "input").Add(float64(ev.InputTokens))
		ProviderTokensTotal.WithLabelValues(model, "output").Add(float64(ev.OutputTokens))
	}
}
