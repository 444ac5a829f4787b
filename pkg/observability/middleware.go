package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsMiddleware records confwhisper_requests_total and
// confwhisper_request_duration_seconds for every request. Responses sent as
// text/event-stream also count towards
// confwhisper_streaming_connections_active until the handler returns.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if sw.streaming {
				StreamingConnections.Dec()
			}
			RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status/100)+"xx").Inc()
			RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		}()
		next.ServeHTTP(sw, r)
	})
}

// statusWriter captures the status code and notices when the response
// turns into an event stream.
type statusWriter struct {
	http.ResponseWriter
	status    int
	written   bool
	streaming bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
		if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
			w.streaming = true
			StreamingConnections.Inc()
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController, which
// the SSE writer uses to flush.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
