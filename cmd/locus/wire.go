// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/locus-dev/locus/internal/config"
	"github.com/locus-dev/locus/internal/encoder"
	_ "github.com/locus-dev/locus/internal/encoder/gemini"  // register gemini variant
	_ "github.com/locus-dev/locus/internal/encoder/hashing" // register hashing variant
	_ "github.com/locus-dev/locus/internal/encoder/openai"  // register openai variant
	_ "github.com/locus-dev/locus/internal/encoder/tei"     // register tei variant
	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/metrics"
	"github.com/locus-dev/locus/internal/search"
	"github.com/locus-dev/locus/internal/secrets"
	"github.com/locus-dev/locus/internal/store"
	_ "github.com/locus-dev/locus/internal/store/memstore" // register memory backend
	_ "github.com/locus-dev/locus/internal/store/postgres" // register postgres backend
	_ "github.com/locus-dev/locus/internal/store/sqlite"   // register sqlite backend
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute an in-memory implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// App holds the wired subsystems shared by every command.
type App struct {
	Config    *config.Config
	Store     store.EntityStore
	Encoder   *encoder.Cache
	Locations *index.Service
	Search    *search.Engine
	Metrics   *metrics.Metrics
}

// loadConfig reads the config named by --config, bootstrapping a default
// file first when none exists anywhere.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		config.BootstrapConfig()
	}

	cfg, err := config.LoadWithSecrets(path, secretStoreFactory())
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(cfg.File)
	return cfg, nil
}

// Wire opens the store and the encoder cache and builds the services on
// top of them. The encoder model itself loads lazily on first use.
func Wire(cfg *config.Config) (*App, error) {
	m := metrics.New()

	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeCLISetupFailure, "opening %s store", cfg.Storage.Backend)
	}

	cache, err := encoder.NewCache(cfg.EncoderConfig(), encoder.WithMetrics(m))
	if err != nil {
		_ = st.Close()
		return nil, locuserr.Wrapf(err, locuserr.CodeCLISetupFailure, "creating encoder")
	}

	app := &App{Config: cfg, Store: st, Encoder: cache, Metrics: m}

	app.Locations, err = index.NewService(st, cache, m)
	if err != nil {
		_ = app.Close()
		return nil, locuserr.Wrapf(err, locuserr.CodeCLISetupFailure, "creating index service")
	}

	opts := []search.Option{search.WithMaxLimit(cfg.Search.MaxLimit), search.WithMetrics(m)}
	if cfg.Search.InProcess {
		opts = append(opts, search.WithInProcess())
	}
	app.Search, err = search.NewEngine(st, cache, opts...)
	if err != nil {
		_ = app.Close()
		return nil, locuserr.Wrapf(err, locuserr.CodeCLISetupFailure, "creating search engine")
	}
	return app, nil
}

// Close releases the encoder and the store.
func (a *App) Close() error {
	return errors.Join(a.Encoder.Close(), a.Store.Close())
}

// openApp loads config and wires the app for a single command.
func openApp(cmd *cobra.Command) (*App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return Wire(cfg)
}
