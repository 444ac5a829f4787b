package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/confwhisper/pkg/api"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	expected := map[string]bool{
		"confwhisper_requests_total":               false,
		"confwhisper_request_duration_seconds":     false,
		"confwhisper_streaming_connections_active": false,
		"confwhisper_provider_requests_total":      false,
		"confwhisper_provider_latency_seconds":     false,
		"confwhisper_provider_tokens_total":        false,
		"confwhisper_stream_events_total":          false,
		"confwhisper_provider_retries_total":       false,
		"confwhisper_ohttp_requests_total":         false,
		"confwhisper_ratelimit_rejected_total":     false,
		"confwhisper_usage_record_errors_total":    false,
	}

	// Vectors only appear after their first observation.
	RequestsTotal.WithLabelValues("GET", "2xx").Inc()
	RequestDuration.WithLabelValues("GET").Observe(0.1)
	ProviderRequestsTotal.WithLabelValues("test", "success").Inc()
	ProviderLatency.WithLabelValues("test").Observe(0.1)
	ProviderTokensTotal.WithLabelValues("test", "input").Add(10)
	StreamEventsTotal.WithLabelValues("test", "text").Inc()
	ProviderRetriesTotal.WithLabelValues("test").Inc()
	OHTTPRequestsTotal.WithLabelValues("success").Inc()
	RateLimitRejectedTotal.WithLabelValues("default").Inc()
	UsageRecordErrorsTotal.Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error after seeding: %v", err)
	}

	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

// TestRecordStreamEvent verifies event and token counters.
func TestRecordStreamEvent(t *testing.T) {
	const model = "record-test"
	RecordStreamEvent(model, api.TextEvent("hi"))
	RecordStreamEvent(model, api.UsageEvent(7, 3))

	if got := counterValue(t, StreamEventsTotal, model, "text"); got != 1 {
		t.Errorf("expected 1 text event, got %f", got)
	}
	if got := counterValue(t, StreamEventsTotal, model, "usage"); got != 1 {
		t.Errorf("expected 1 usage event, got %f", got)
	}
	if got := counterValue(t, ProviderTokensTotal, model, "input"); got != 7 {
		t.Errorf("expected 7 input tokens, got %f", got)
	}
	if got := counterValue(t, ProviderTokensTotal, model, "output"); got != 3 {
		t.Errorf("expected 3 output tokens, got %f", got)
	}
}

// TestMiddlewareRecordsRequestCount verifies that the middleware increments
// the request counter for each served request.
func TestMiddlewareRecordsRequestCount(t *testing.T) {
	// Get baseline count.
	before := counterValue(t, RequestsTotal, "GET", "2xx")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/messages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := counterValue(t, RequestsTotal, "GET", "2xx")
	if after-before != 1 {
		t.Errorf("expected request count to increase by 1, got delta=%f", after-before)
	}
}

// TestMiddlewareRecordsDuration verifies that the middleware records
// a positive request duration observation.
func TestMiddlewareRecordsDuration(t *testing.T) {
	before := histogramCount(t, RequestDuration, "POST")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := histogramCount(t, RequestDuration, "POST")
	if after-before != 1 {
		t.Errorf("expected histogram sample count to increase by 1, got delta=%d", after-before)
	}
}

// TestMiddlewareStreamingGauge verifies that the streaming connections gauge
// counts event-stream responses while they are open.
func TestMiddlewareStreamingGauge(t *testing.T) {
	baseline := gaugeValue(t, StreamingConnections)

	var beforeHeader, afterHeader float64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		beforeHeader = gaugeValue(t, StreamingConnections)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		afterHeader = gaugeValue(t, StreamingConnections)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/messages", nil))

	if beforeHeader != baseline {
		t.Errorf("gauge before headers = %f, want %f", beforeHeader, baseline)
	}
	if afterHeader != baseline+1 {
		t.Errorf("gauge while streaming = %f, want %f", afterHeader, baseline+1)
	}
	if after := gaugeValue(t, StreamingConnections); after != baseline {
		t.Errorf("gauge after request = %f, want %f", after, baseline)
	}
}

// TestMiddlewareJSONNotStreaming verifies that plain JSON responses leave
// the streaming gauge alone.
func TestMiddlewareJSONNotStreaming(t *testing.T) {
	baseline := gaugeValue(t, StreamingConnections)

	var during float64
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
		during = gaugeValue(t, StreamingConnections)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/model", nil))

	if during != baseline {
		t.Errorf("gauge = %f, want %f", during, baseline)
	}
}

// TestMiddlewareCapturesStatusCode verifies that non-200 status codes are
// captured correctly in the status label.
func TestMiddlewareCapturesStatusCode(t *testing.T) {
	before := counterValue(t, RequestsTotal, "POST", "4xx")

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := counterValue(t, RequestsTotal, "POST", "4xx")
	if after-before != 1 {
		t.Errorf("expected 4xx count to increase by 1, got delta=%f", after-before)
	}
}

// TestStatusWriterFlushesThroughController verifies that the wrapped writer
// can still be flushed with http.ResponseController.
func TestStatusWriterFlushesThroughController(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	if err := http.NewResponseController(sw).Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !rec.Flushed {
		t.Error("expected underlying writer to be flushed")
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

// gaugeValue reads the current value of a Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("writing gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}
