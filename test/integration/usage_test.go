package integration

import (
	"net/http"
	"testing"

	"github.com/rhuss/confwhisper/pkg/provider"
	"github.com/rhuss/confwhisper/pkg/usage"
)

func fetchUsage(t *testing.T, baseURL, key string) usage.Totals {
	t.Helper()
	resp := getURL(t, baseURL+"/v1/usage", key)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/usage: status %d", resp.StatusCode)
	}
	var totals usage.Totals
	decodeJSON(t, resp, &totals)
	return totals
}

func TestUsageAccumulatesPerSubject(t *testing.T) {
	// The OHTTP gateway has its own ledger, and only this test uses it as alice.
	base := testEnv.OHTTPGateway.URL
	before := fetchUsage(t, base, aliceKey)

	for range 2 {
		resp := postMessage(t, base, aliceKey, messageBody("tally"))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		parseSSE(t, resp)
	}

	after := fetchUsage(t, base, aliceKey)
	if after.Subject != "alice" {
		t.Errorf("subject = %q, want alice", after.Subject)
	}
	if got := after.Requests - before.Requests; got != 2 {
		t.Errorf("requests delta = %d, want 2", got)
	}
	if got := after.InputTokens - before.InputTokens; got != 22 {
		t.Errorf("input tokens delta = %d, want 22", got)
	}
	if got := after.OutputTokens - before.OutputTokens; got != 10 {
		t.Errorf("output tokens delta = %d, want 10", got)
	}
	if len(after.Models) != 1 || after.Models[0].Model != "deepseek-ai/DeepSeek-R1" {
		t.Errorf("models = %+v", after.Models)
	}
}

func TestUsageRequiresAuth(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/usage", "")
	readBody(t, resp)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestModelEndpoints(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/model", bobKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/model: status %d", resp.StatusCode)
	}
	var model provider.Model
	decodeJSON(t, resp, &model)
	if model.ID != "deepseek-ai/DeepSeek-R1" {
		t.Errorf("model id = %q", model.ID)
	}

	resp = getURL(t, testEnv.BaseURL()+"/v1/models", bobKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/models: status %d", resp.StatusCode)
	}
	var list struct {
		Data []string `json:"data"`
	}
	decodeJSON(t, resp, &list)
	if len(list.Data) != 2 {
		t.Errorf("models = %v, want 2 entries", list.Data)
	}
}
