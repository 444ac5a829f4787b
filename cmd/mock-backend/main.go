// Command mock-backend runs a deterministic streaming Chat Completions
// server for local development and end-to-end tests.
//
// Configuration:
//
//	MOCK_PORT            - Listen port (default: 9090)
//	MOCK_OHTTP           - "true" also serves the API through an OHTTP gateway
//	                       at /ohttp with its key configuration at /ohttp-keys
//	MOCK_RATE_LIMIT_FIRST - Answer the first N completions with 429 (default: 0)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	var opts options
	opts.ohttp = os.Getenv("MOCK_OHTTP") == "true"
	if v := os.Getenv("MOCK_RATE_LIMIT_FIRST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Error("invalid MOCK_RATE_LIMIT_FIRST", "value", v, "error", err)
			os.Exit(1)
		}
		opts.rateLimitFirst = n
	}

	handler, err := newHandler(opts, slog.Default())
	if err != nil {
		slog.Error("mock backend setup failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{Addr: ":" + port, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "ohttp", opts.ohttp)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
