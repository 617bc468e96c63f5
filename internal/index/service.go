// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package index keeps every stored location's vector consistent with its
// text. Writes always encode first and then persist text, vector and
// payload in one store call, so a failure at either step leaves the
// previously visible state untouched.
package index

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/metrics"
	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Request is the caller-supplied part of a location.
type Request struct {
	Text    string
	Payload store.Payload
}

// Service is the indexing pipeline plus the record operations that go with
// it.
type Service struct {
	store    store.EntityStore
	encoders encoder.Source
	metrics  *metrics.Metrics
}

// NewService wires a store to an encoder source. The encoder's output size
// must equal the store's vector size.
func NewService(st store.EntityStore, encoders encoder.Source, m *metrics.Metrics) (*Service, error) {
	if got, want := encoders.Info().Dimensions, st.Dimensions(); got != want {
		return nil, locuserr.Errorf(locuserr.CodeStoreVectorDimension,
			"encoder %s produces %d dimensions, store expects %d", encoders.Info().ID(), got, want)
	}
	return &Service{store: st, encoders: encoders, metrics: m}, nil
}

// Create encodes req.Text and inserts a new location.
func (s *Service) Create(ctx context.Context, req Request) (*store.Entity, error) {
	e, err := s.create(ctx, req)
	s.metrics.ObserveIndexOperation("create", err)
	return e, err
}

func (s *Service) create(ctx context.Context, req Request) (*store.Entity, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	e, err := s.encode(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	e.Payload = req.Payload

	if err := s.store.Upsert(ctx, e); err != nil {
		return nil, err
	}
	slog.Info("indexed location", "id", e.ID, "model", e.ModelVersion)
	return e, nil
}

// Update re-encodes req.Text and replaces text, vector and payload of id
// together. A missing id is reported as not found; nothing is created.
func (s *Service) Update(ctx context.Context, id string, req Request) (*store.Entity, error) {
	e, err := s.update(ctx, id, req)
	s.metrics.ObserveIndexOperation("update", err)
	return e, err
}

func (s *Service) update(ctx context.Context, id string, req Request) (*store.Entity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, locuserr.New(locuserr.CodeIndexRequestInvalid, "location id is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	e, err := s.encode(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	e.ID = id
	e.Payload = req.Payload

	if err := s.store.Upsert(ctx, e); err != nil {
		return nil, err
	}
	slog.Info("reindexed location", "id", e.ID, "model", e.ModelVersion)
	return e, nil
}

func (s *Service) Get(ctx context.Context, id string) (*store.Entity, error) {
	return s.store.Get(ctx, id)
}

// Delete removes id from storage and therefore from every later search.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	s.metrics.ObserveIndexOperation("delete", err)
	if err == nil {
		slog.Info("deleted location", "id", id)
	}
	return err
}

// List returns locations newest first. Category "" or "all" lists every
// category.
func (s *Service) List(ctx context.Context, opts store.ListOpts) ([]*store.Entity, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, locuserr.Errorf(locuserr.CodeStoreListOptionsInvalid,
			"limit and offset must not be negative (limit=%d, offset=%d)", opts.Limit, opts.Offset)
	}
	return s.store.List(ctx, opts)
}

// Stale reports whether e's vector no longer belongs to its text or was
// produced by a different model than the configured one.
func (s *Service) Stale(e *store.Entity) bool {
	return e.Fingerprint != store.Fingerprint(e.Text) || e.ModelVersion != s.encoders.Info().ID()
}

// encode builds an entity whose vector, fingerprint and model version all
// derive from text.
func (s *Service) encode(ctx context.Context, text string) (*store.Entity, error) {
	enc, err := s.encoders.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := enc.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	return &store.Entity{
		Text:         text,
		Vector:       vec,
		Fingerprint:  store.Fingerprint(text),
		ModelVersion: enc.Info().ID(),
	}, nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return locuserr.New(locuserr.CodeIndexRequestInvalid, "location description is required")
	}
	if lat := req.Payload.Latitude; lat != nil && (math.IsNaN(*lat) || *lat < -90 || *lat > 90) {
		return locuserr.Errorf(locuserr.CodeIndexRequestInvalid, "latitude %v out of range [-90, 90]", *lat)
	}
	if lng := req.Payload.Longitude; lng != nil && (math.IsNaN(*lng) || *lng < -180 || *lng > 180) {
		return locuserr.Errorf(locuserr.CodeIndexRequestInvalid, "longitude %v out of range [-180, 180]", *lng)
	}
	return nil
}
