package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/confwhisper/pkg/api"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the API root including the version segment, for example
	// "https://api.example.com/v1". Paths such as "/chat/completions" are
	// appended to it.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Headers are added to every request after the Authorization header,
	// so they may override it.
	Headers map[string]string

	// Transport is the round-tripper for all requests. Nil uses
	// http.DefaultTransport.
	Transport http.RoundTripper

	// Timeout bounds non-streaming requests. Zero means 120s. Streaming
	// requests are bounded only by their context.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client performs HTTP requests against an OpenAI-compatible Chat Completions
// backend. It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	apiKey       string
	headers      map[string]string
	logger       *slog.Logger
}

// NewClient creates a new Client for an OpenAI-compatible backend.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		httpClient: &http.Client{
			Transport: cfg.Transport,
			Timeout:   timeout,
		},
		// A stream can legitimately last longer than any fixed timeout.
		// Lifecycle control relies on context cancellation instead.
		streamClient: &http.Client{
			Transport: cfg.Transport,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		headers: headers,
		logger:  logger,
	}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OpenStream sends a streaming Chat Completions request and returns the open
// stream once the backend has answered with a 2xx status. Non-2xx responses
// are mapped with MapHTTPError and transport failures with MapNetworkError.
//
// The caller owns the returned stream and must either drain Chunks or call
// Close.
func (c *Client) OpenStream(ctx context.Context, req *ChatCompletionRequest) (*ChunkStream, error) {
	reqCopy := *req
	reqCopy.Stream = true

	body, err := json.Marshal(&reqCopy)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.setAuth(httpReq)

	httpResp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, MapHTTPError(httpResp)
	}

	return newChunkStream(ctx, httpResp, c.logger), nil
}

// ListModels returns the models advertised by the backend's /models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]ChatModel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	c.setAuth(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse models response: %s", err.Error()))
	}

	return modelsResp.Data, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}
