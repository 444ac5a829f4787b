package ohttp

import (
	"fmt"
	"net/http"

	"github.com/rhuss/confwhisper/pkg/debug"
	"github.com/rhuss/confwhisper/pkg/observability"
)

// Transport is an http.RoundTripper that sends every request through the
// relay. It waits for the pending client on first use.
type Transport struct {
	Pending *Pending

	// Base carries the outer request to the relay. Nil uses
	// http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip encapsulates req, posts it to the relay and returns the
// decapsulated inner response.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	client, err := t.Pending.Wait(req.Context())
	if err != nil {
		closeBody(req)
		observability.OHTTPRequestsTotal.WithLabelValues("encapsulate_error").Inc()
		return nil, fmt.Errorf("ohttp: client unavailable: %w", err)
	}

	outer, rc, err := client.EncapsulateRequest(req)
	if err != nil {
		observability.OHTTPRequestsTotal.WithLabelValues("encapsulate_error").Inc()
		return nil, err
	}
	debug.Log("ohttp", "relaying request", "relay", client.RelayURL(), "method", req.Method, "path", req.URL.Path)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(outer)
	if err != nil {
		observability.OHTTPRequestsTotal.WithLabelValues("relay_error").Inc()
		return nil, err
	}

	inner, err := rc.Decapsulate(resp)
	if err != nil {
		observability.OHTTPRequestsTotal.WithLabelValues("decapsulate_error").Inc()
		return nil, err
	}
	observability.OHTTPRequestsTotal.WithLabelValues("success").Inc()
	return inner, nil
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
