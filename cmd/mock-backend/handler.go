package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rhuss/confwhisper/pkg/ohttp"
)

type options struct {
	ohttp          bool
	rateLimitFirst int
}

type mockBackend struct {
	opts  options
	calls atomic.Int64
}

// newHandler builds the mock API. With opts.ohttp the same API is also
// reachable through an OHTTP gateway.
func newHandler(opts options, logger *slog.Logger) (http.Handler, error) {
	m := &mockBackend{opts: opts}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/chat/completions", m.handleChatCompletions)
	api.HandleFunc("GET /v1/models", handleModels)

	mux := http.NewServeMux()
	mux.Handle("/v1/", api)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	if opts.ohttp {
		gw, err := ohttp.NewGateway(1, api, logger)
		if err != nil {
			return nil, err
		}
		mux.Handle("POST /ohttp", gw)
		mux.Handle("GET /ohttp-keys", gw.KeysHandler())
	}
	return mux, nil
}

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// --- Handler ---

func (m *mockBackend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if n := m.calls.Add(1); n <= int64(m.opts.rateLimitFirst) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"mock rate limit","type":"rate_limit_error"}}`))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}
	if !req.Stream {
		http.Error(w, `{"error":{"message":"only streaming is supported","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	handleStreaming(w, &req)
}

// --- Streaming ---

func handleStreaming(w http.ResponseWriter, req *chatRequest) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	model := req.Model
	if model == "" {
		model = "mock-model"
	}

	// Send role chunk.
	writeChunk(w, model, map[string]any{"role": "assistant"}, nil)
	rc.Flush()

	completion := 0
	if isReasoningModel(model) {
		for _, token := range []string{"Let me ", "think ", "about that."} {
			writeChunk(w, model, map[string]any{"reasoning_content": token}, nil)
			rc.Flush()
			completion++
		}
	}

	for _, token := range replyTokens(req) {
		writeChunk(w, model, map[string]any{"content": token}, nil)
		rc.Flush()
		completion++
	}

	stop := "stop"
	writeChunk(w, model, map[string]any{}, &stop)

	prompt := promptTokens(req)
	writeJSON(w, map[string]any{
		"id":      "chatcmpl-mock-stream",
		"object":  "chat.completion.chunk",
		"model":   model,
		"choices": []any{},
		"usage": map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	})

	fmt.Fprint(w, "data: [DONE]\n\n")
	rc.Flush()
}

func isReasoningModel(model string) bool {
	model = strings.ToLower(model)
	return strings.Contains(model, "reasoner") || strings.Contains(model, "r1")
}

// replyTokens echoes the last user message word by word.
func replyTokens(req *chatRequest) []string {
	text := "You said: " + getLastUserMessage(req)
	if hasImageContent(req) {
		text = "I can see the image you shared. " + text
	}
	words := strings.SplitAfter(text, " ")
	tokens := words[:0]
	for _, w := range words {
		if w != "" {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// promptTokens approximates the prompt size as the number of words.
func promptTokens(req *chatRequest) int {
	n := 0
	for _, msg := range req.Messages {
		n += len(strings.Fields(textOf(msg.Content)))
	}
	return n
}

func writeChunk(w http.ResponseWriter, model string, delta map[string]any, finishReason *string) {
	writeJSON(w, map[string]any{
		"id":     "chatcmpl-mock-stream",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"delta":         delta,
				"finish_reason": finishReason,
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, chunk map[string]any) {
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "confwhisper-mock"},
			{"id": "deepseek-ai/DeepSeek-R1", "object": "model", "owned_by": "confwhisper-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Helpers ---

func getLastUserMessage(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return textOf(req.Messages[i].Content)
		}
	}
	return ""
}

// textOf returns string content, or the text parts of a content array.
func textOf(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, part := range v {
			if m, ok := part.(map[string]any); ok && m["type"] == "text" {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func hasImageContent(req *chatRequest) bool {
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			if parts, ok := msg.Content.([]any); ok {
				for _, part := range parts {
					if m, ok := part.(map[string]any); ok && m["type"] == "image_url" {
						return true
					}
				}
			}
		}
	}
	return false
}
