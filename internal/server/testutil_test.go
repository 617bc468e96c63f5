// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/encoder/hashing"
	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/metrics"
	"github.com/locus-dev/locus/internal/search"
	"github.com/locus-dev/locus/internal/server"
	"github.com/locus-dev/locus/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

const testDims = 64

type testEnv struct {
	srv     *server.Server
	cache   *encoder.Cache
	store   *memstore.Store
	metrics *metrics.Metrics
}

type envSettings struct {
	server server.Config
	load   encoder.LoadFunc
}

type envOption func(*envSettings)

func withRateLimit(rps float64, burst int) envOption {
	return func(s *envSettings) {
		s.server.RateLimit = server.RateLimitConfig{RequestsPerSecond: rps, Burst: burst}
	}
}

// withLoader replaces the hashing model loader.
func withLoader(load encoder.LoadFunc) envOption {
	return func(s *envSettings) { s.load = load }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := encoder.DefaultConfig()
	cfg.Variant = hashing.Variant
	cfg.Dimensions = testDims
	settings := envSettings{
		server: server.Config{ListenAddr: "127.0.0.1:0", CORSOrigins: []string{"http://app.example"}},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	m := metrics.New()
	var cache *encoder.Cache
	if settings.load != nil {
		cache = encoder.NewCacheWithLoader(cfg, settings.load, encoder.WithMetrics(m))
	} else {
		var err error
		cache, err = encoder.NewCache(cfg, encoder.WithMetrics(m))
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	st := memstore.New(testDims)
	locations, err := index.NewService(st, cache, m)
	require.NoError(t, err)
	engine, err := search.NewEngine(st, cache, search.WithMaxLimit(20), search.WithMetrics(m))
	require.NoError(t, err)

	svc, err := server.NewServices(locations, engine, cache, server.SearchDefaults{Threshold: 0.5, Limit: 5}, m)
	require.NoError(t, err)

	srv, err := server.New(settings.server, svc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return &testEnv{srv: srv, cache: cache, store: st, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

// create registers a location and returns its decoded body.
func (e *testEnv) create(t *testing.T, in server.LocationInput) server.Location {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/locations", in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var loc server.Location
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loc))
	return loc
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type searchResponse struct {
	Query     string             `json:"query"`
	Threshold float64            `json:"threshold"`
	Limit     int                `json:"limit"`
	Results   []server.SearchHit `json:"results"`
}

func ptr[T any](v T) *T { return &v }
