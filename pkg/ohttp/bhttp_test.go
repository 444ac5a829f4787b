package ohttp

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBHTTP_RequestRoundTrip(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "https://backend.example/v1/chat/completions?x=1", strings.NewReader(`{"model":"m"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer k")
	req.Header.Set("Connection", "keep-alive")

	data, err := encodeRequest(req)
	require.NoError(t, err)

	got, err := decodeRequest(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "https", got.URL.Scheme)
	assert.Equal(t, "backend.example", got.Host)
	assert.Equal(t, "/v1/chat/completions", got.URL.Path)
	assert.Equal(t, "x=1", got.URL.RawQuery)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer k", got.Header.Get("Authorization"))
	assert.Empty(t, got.Header.Get("Connection"))

	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"model":"m"}`, string(body))
}

func TestBHTTP_ResponseRoundTrip(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/event-stream")
	data := encodeResponse(http.StatusTooManyRequests, h, []byte("slow"))

	resp, err := decodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "429 Too Many Requests", resp.Status)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "slow", string(body))
}

func TestBHTTP_ResponseSkipsInformational(t *testing.T) {
	// framing 1, status 103 + empty fields, status 200 + empty fields, content "ok"
	data := []byte{0x01, 0x40, 0x67, 0x00, 0x40, 0xc8, 0x00, 0x02, 'o', 'k'}

	resp, err := decodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestBHTTP_TruncatedResponseHasEmptyBody(t *testing.T) {
	// framing 1, status 204, no further sections
	resp, err := decodeResponse([]byte{0x01, 0x40, 0xcc})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, resp.ContentLength)
}

func TestBHTTP_Errors(t *testing.T) {
	_, err := decodeResponse([]byte{0x00})
	assert.Error(t, err, "request framing is not a response")

	_, err = decodeRequest(context.Background(), []byte{0x01})
	assert.Error(t, err, "response framing is not a request")

	_, err = decodeResponse([]byte{0x01, 0x40, 0xc8, 0x05, 'a'})
	assert.Error(t, err, "field section length exceeds message")
}
