package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/confwhisper/pkg/config"
	"github.com/rhuss/confwhisper/pkg/gateway"
	"github.com/rhuss/confwhisper/pkg/provider/confwhisper"
	transporthttp "github.com/rhuss/confwhisper/pkg/transport/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured backend as an authenticated SSE gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, slog.Default())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	h := confwhisper.New(cfg.HandlerOptions(logger))
	defer h.Close()

	ledger, err := cfg.OpenLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close()

	gw, err := gateway.New(h, ledger, logger)
	if err != nil {
		return err
	}

	chain, limiter := cfg.AuthChain()
	srvOpts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithAuth(chain, limiter),
		transporthttp.WithLogger(logger),
	}
	if cfg.Observability.Metrics.Enabled {
		srvOpts = append(srvOpts, transporthttp.WithMetrics(cfg.Observability.Metrics.Path))
	}

	logger.Info("gateway configured",
		"model", h.GetModel().ID,
		"backend", cfg.Provider.BaseURL,
		"ohttp", cfg.OHTTP.Enabled,
		"auth", cfg.Auth.Type,
		"usage", cfg.Usage.Type,
	)
	return transporthttp.NewServer(gw, srvOpts...).Run(ctx)
}
