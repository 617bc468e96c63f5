// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/search"
	"github.com/locus-dev/locus/internal/server"
	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/locus-dev/locus/pkg/health"
)

func main() {
	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	spec, err := generateSpec(formatFor(outPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// generateSpec creates a server with all routes registered and renders the
// OpenAPI document huma derives from the handler types.
func generateSpec(format string) ([]byte, error) {
	stub := stubServices{}
	svc, err := server.NewServices(stub, stub, stub, server.SearchDefaults{}, nil)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeCLISetupFailure, "creating server")
	}
	defer func() { _ = srv.Close() }()

	if format == "yaml" {
		return srv.API().OpenAPI().YAML()
	}
	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stubServices satisfies every handler dependency. Handlers are never
// invoked during spec generation.
type stubServices struct{}

func (stubServices) Create(context.Context, index.Request) (*store.Entity, error) { return nil, nil }
func (stubServices) Update(context.Context, string, index.Request) (*store.Entity, error) {
	return nil, nil
}
func (stubServices) Get(context.Context, string) (*store.Entity, error) { return nil, nil }
func (stubServices) Delete(context.Context, string) error { return nil }
func (stubServices) List(context.Context, store.ListOpts) ([]*store.Entity, error) {
	return nil, nil
}
func (stubServices) Reindex(context.Context, bool) (index.ReindexReport, error) {
	return index.ReindexReport{}, nil
}
func (stubServices) Stale(*store.Entity) bool { return false }
func (stubServices) SearchLocations(context.Context, search.Query) ([]search.Hit, error) {
	return nil, nil
}
func (stubServices) MaxLimit() int { return search.DefaultMaxLimit }
func (stubServices) Info() encoder.ModelInfo { return encoder.ModelInfo{} }
func (stubServices) Loaded() bool { return false }
func (stubServices) Health() health.Metrics { return health.Metrics{} }
func (stubServices) LastError() string { return "" }
