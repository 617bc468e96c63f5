// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/locus-dev/locus/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Load configuration, open the store and serve the location API until interrupted.",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "override listen address (host:port)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	app, err := Wire(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	svc, err := server.NewServices(app.Locations, app.Search, app.Encoder, server.SearchDefaults{
		Threshold: cfg.Search.DefaultThreshold,
		Limit:     cfg.Search.DefaultLimit,
	}, app.Metrics)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		ListenAddr:   cfg.Server.Listen,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		},
		Version: version,
	}, svc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting locus",
		"listen", cfg.Server.Listen,
		"backend", cfg.Storage.Backend,
		"encoder", app.Encoder.Info().ID(),
		"config", cfg.File)
	return srv.Start(ctx)
}
