// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package search answers similarity queries over indexed locations.
//
// The Engine encodes the query text with the shared encoder and ranks
// stored vectors either through the store's server-side Matcher or by
// scanning every vector in process. Both paths keep the same contract:
// the threshold is an inclusive minimum, results are ordered by similarity
// descending with ties broken by ascending id, and at most limit results
// are returned.
package search

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/metrics"
	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/vecmath"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Defaults for callers that leave threshold or limit unset.
const (
	DefaultThreshold = 0.5
	DefaultLimit     = 10
	DefaultMaxLimit  = 100
)

const (
	modeMatcher = "matcher"
	modeScan    = "scan"
)

// Query is one similarity search.
type Query struct {
	Text      string
	Threshold float64 // inclusive minimum similarity in [-1, 1]
	Limit     int     // 1..MaxLimit
}

// Hit is a ranked match joined with its stored location.
type Hit struct {
	store.Match
	Location *store.Entity
}

// Option configures an Engine.
type Option func(*Engine)

// WithInProcess ranks by scanning every stored vector even when the store
// implements store.Matcher.
func WithInProcess() Option {
	return func(e *Engine) { e.inProcess = true }
}

// WithMaxLimit caps Query.Limit. Values <= 0 keep DefaultMaxLimit.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

// WithMetrics records search latency and result counts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine ranks stored locations against query text.
type Engine struct {
	store     store.EntityStore
	encoders  encoder.Source
	matcher   store.Matcher
	inProcess bool
	maxLimit  int
	metrics   *metrics.Metrics
}

// NewEngine builds an engine over st. The encoder's output size must equal
// the store's vector size.
func NewEngine(st store.EntityStore, encoders encoder.Source, opts ...Option) (*Engine, error) {
	if got, want := encoders.Info().Dimensions, st.Dimensions(); got != want {
		return nil, locuserr.Errorf(locuserr.CodeStoreVectorDimension,
			"encoder %s produces %d dimensions, store expects %d", encoders.Info().ID(), got, want)
	}
	e := &Engine{store: st, encoders: encoders, maxLimit: DefaultMaxLimit}
	for _, opt := range opts {
		opt(e)
	}
	if m, ok := st.(store.Matcher); ok && !e.inProcess {
		e.matcher = m
	}
	return e, nil
}

// MaxLimit is the largest accepted Query.Limit.
func (e *Engine) MaxLimit() int { return e.maxLimit }

// Search returns the ids and similarities of the best matches for q.
// Arguments are validated before the encoder is touched.
func (e *Engine) Search(ctx context.Context, q Query) ([]store.Match, error) {
	_, matches, err := e.run(ctx, q)
	return matches, err
}

// run times and records one search, returning the encoded query with the
// matches so callers can rescore rows that change after ranking.
func (e *Engine) run(ctx context.Context, q Query) ([]float32, []store.Match, error) {
	mode := modeScan
	if e.matcher != nil {
		mode = modeMatcher
	}

	start := time.Now()
	vec, matches, err := e.search(ctx, q)
	elapsed := time.Since(start)
	e.metrics.ObserveSearch(mode, elapsed, len(matches), err)
	if err != nil {
		return nil, nil, err
	}

	slog.Debug("search finished", "mode", mode, "results", len(matches),
		"threshold", q.Threshold, "limit", q.Limit, "duration", elapsed)
	return vec, matches, nil
}

func (e *Engine) search(ctx context.Context, q Query) ([]float32, []store.Match, error) {
	if err := e.validate(q); err != nil {
		return nil, nil, err
	}

	enc, err := e.encoders.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	vec, err := enc.Encode(ctx, q.Text)
	if err != nil {
		return nil, nil, err
	}

	var matches []store.Match
	if e.matcher != nil {
		matches, err = e.matcher.Match(ctx, vec, q.Threshold, q.Limit)
	} else {
		matches, err = Rank(ctx, e.store.ScanAll(ctx), vec, q.Threshold, q.Limit)
	}
	return vec, matches, err
}

// SearchLocations runs Search and loads each matched location. Locations
// deleted between ranking and loading are dropped. A location replaced in
// that window is rescored against its current vector, so every hit's
// similarity belongs to the text it is returned with.
func (e *Engine) SearchLocations(ctx context.Context, q Query) ([]Hit, error) {
	vec, matches, err := e.run(ctx, q)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(matches))
	rescored := false
	for _, m := range matches {
		loc, err := e.store.Get(ctx, m.ID)
		if locuserr.IsNotFound(err) {
			slog.Debug("search hit vanished before load", "id", m.ID)
			continue
		}
		if err != nil {
			return nil, err
		}

		if loc.Fingerprint != m.Fingerprint {
			if err := store.CheckDimensions(loc.Vector, len(vec)); err != nil {
				return nil, err
			}
			m.Similarity = store.ClampSimilarity(vecmath.Dot(vec, loc.Vector))
			m.Fingerprint = loc.Fingerprint
			rescored = true
			if m.Similarity < q.Threshold {
				slog.Debug("search hit replaced below threshold", "id", m.ID, "similarity", m.Similarity)
				continue
			}
		}
		hits = append(hits, Hit{Match: m, Location: loc})
	}

	if rescored {
		slices.SortFunc(hits, func(a, b Hit) int {
			if a.Similarity != b.Similarity {
				if a.Similarity > b.Similarity {
					return -1
				}
				return 1
			}
			return strings.Compare(a.ID, b.ID)
		})
	}
	return hits, nil
}

func (e *Engine) validate(q Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return locuserr.New(locuserr.CodeSearchQueryInvalid, "query text is required")
	}
	if q.Limit <= 0 || q.Limit > e.maxLimit {
		return locuserr.Errorf(locuserr.CodeSearchQueryInvalid,
			"limit must be within [1, %d], got %d", e.maxLimit, q.Limit)
	}
	if math.IsNaN(q.Threshold) || q.Threshold < -1 || q.Threshold > 1 {
		return locuserr.Errorf(locuserr.CodeSearchQueryInvalid,
			"threshold must be within [-1, 1], got %v", q.Threshold)
	}
	return nil
}
