package http

import (
	"context"
	"io"
	"net"
	gohttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/transport"
)

func startServer(t *testing.T, svc Service, opts ...ServerOption) (addr string, stop func() error) {
	t.Helper()
	srv := NewServer(svc, append([]ServerOption{WithShutdownTimeout(5 * time.Second)}, opts...)...)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeOn(ctx, ln) }()

	return ln.Addr().String(), func() error {
		cancel()
		return <-done
	}
}

func TestServerStartsAndAcceptsRequests(t *testing.T) {
	svc := &fakeService{events: []api.StreamEvent{api.TextEvent("pong")}}
	addr, stop := startServer(t, svc, WithMetrics("/metrics"))

	resp, err := gohttp.Post("http://"+addr+"/v1/messages", "application/json", strings.NewReader(messageBody))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"text":"pong"`)

	resp, err = gohttp.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gohttp.StatusOK, resp.StatusCode)

	assert.NoError(t, stop())
}

func TestServerWithoutMetrics(t *testing.T) {
	addr, stop := startServer(t, &fakeService{})
	defer stop()

	resp, err := gohttp.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gohttp.StatusNotFound, resp.StatusCode, "metrics disabled")
}

type slowService struct {
	*fakeService
	delay time.Duration
}

func (s *slowService) CreateMessage(ctx context.Context, req *transport.MessageRequest, w transport.EventWriter) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return w.WriteEvent(ctx, api.TextEvent("done"))
}

func TestServerGracefulShutdown(t *testing.T) {
	svc := &slowService{fakeService: &fakeService{}, delay: 200 * time.Millisecond}
	addr, stop := startServer(t, svc)

	result := make(chan string, 1)
	go func() {
		resp, err := gohttp.Post("http://"+addr+"/v1/messages", "application/json", strings.NewReader(messageBody))
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		result <- string(body)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, stop())

	select {
	case body := <-result:
		assert.Contains(t, body, `"text":"done"`, "in-flight request should complete")
		assert.Contains(t, body, "[DONE]")
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request did not complete")
	}
}
