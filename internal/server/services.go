// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package server

import (
	"context"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/metrics"
	"github.com/locus-dev/locus/internal/search"
	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/locus-dev/locus/pkg/health"
)

// LocationService is the indexing pipeline as seen by the handlers.
// *index.Service implements it.
type LocationService interface {
	Create(ctx context.Context, req index.Request) (*store.Entity, error)
	Update(ctx context.Context, id string, req index.Request) (*store.Entity, error)
	Get(ctx context.Context, id string) (*store.Entity, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts store.ListOpts) ([]*store.Entity, error)
	Reindex(ctx context.Context, force bool) (index.ReindexReport, error)
	Stale(e *store.Entity) bool
}

// SearchService runs similarity queries. *search.Engine implements it.
type SearchService interface {
	SearchLocations(ctx context.Context, q search.Query) ([]search.Hit, error)
	MaxLimit() int
}

// EncoderStatus reports the shared encoder's state without loading it.
// *encoder.Cache implements it.
type EncoderStatus interface {
	Info() encoder.ModelInfo
	Loaded() bool
	Health() health.Metrics
	LastError() string
}

// Compile-time interface checks.
var (
	_ LocationService = (*index.Service)(nil)
	_ SearchService   = (*search.Engine)(nil)
	_ EncoderStatus   = (*encoder.Cache)(nil)
)

// SearchDefaults fill in a query's omitted threshold and limit.
type SearchDefaults struct {
	Threshold float64
	Limit     int
}

// Services holds the dependencies injected into route handlers.
type Services struct {
	locations LocationService
	search    SearchService
	encoder   EncoderStatus
	defaults  SearchDefaults
	metrics   *metrics.Metrics // optional; nil disables /metrics
}

// NewServices validates and bundles the handler dependencies.
func NewServices(locations LocationService, searcher SearchService, enc EncoderStatus, defaults SearchDefaults, m *metrics.Metrics) (*Services, error) {
	if locations == nil {
		return nil, locuserr.New(locuserr.CodeServerConfigInvalid, "location service is required")
	}
	if searcher == nil {
		return nil, locuserr.New(locuserr.CodeServerConfigInvalid, "search service is required")
	}
	if enc == nil {
		return nil, locuserr.New(locuserr.CodeServerConfigInvalid, "encoder status is required")
	}
	if defaults.Limit <= 0 {
		defaults.Limit = search.DefaultLimit
	}
	return &Services{locations: locations, search: searcher, encoder: enc, defaults: defaults, metrics: m}, nil
}
