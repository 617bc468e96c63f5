// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package server_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/locus-dev/locus/internal/server"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_New_EmptyListenAddr(t *testing.T) {
	_, err := server.New(server.Config{}, &server.Services{})
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeServerConfigInvalid), "got %s", locuserr.CodeOf(err))
	assert.Contains(t, err.Error(), "listen address is required")
}

func TestServer_New_NilServices(t *testing.T) {
	_, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, nil)
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeServerConfigInvalid))
}

func TestServer_New_InvalidRateLimit(t *testing.T) {
	_, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		RateLimit:  server.RateLimitConfig{RequestsPerSecond: 5},
	}, &server.Services{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "burst must be positive")
}

func TestNewServices_RequiresDependencies(t *testing.T) {
	_, err := server.NewServices(nil, nil, nil, server.SearchDefaults{}, nil)
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeServerConfigInvalid))
	assert.Contains(t, err.Error(), "location service is required")
}

func TestServer_HealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[server.HealthBody](t, w)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, env.cache.Info().ID(), body.Encoder.Model)
	assert.Contains(t, body.Encoder.Model, "/64")
	assert.False(t, body.Encoder.Loaded, "health must not load the encoder")
	assert.False(t, env.cache.Loaded())
	assert.True(t, body.Encoder.Available)
}

func TestServer_HealthReportsLoadedEncoder(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, server.LocationInput{Description: "a quiet harbour at dawn"})

	body := decode[server.HealthBody](t, env.do(t, http.MethodGet, "/health", nil))
	assert.True(t, body.Encoder.Loaded)
	assert.Empty(t, body.Encoder.LastError)
}

func TestServer_OpenAPISpec(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, path := range []string{"/health", "/api/v1/locations", "/api/v1/locations/{id}", "/api/v1/search", "/api/v1/admin/reindex"} {
		assert.Contains(t, body, `"`+path+`"`)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, server.LocationInput{Description: "old lighthouse on the cliff"})
	env.do(t, http.MethodGet, "/api/v1/search?q=lighthouse", nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "locus_encoder_loads_total")
	assert.Contains(t, body, "locus_index_operations_total")
	assert.Contains(t, body, "locus_search_duration_seconds")
}

func TestServer_CORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/locations", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_StartInvalidAddress(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:-1"}, &server.Services{})
	require.NoError(t, err)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeServerStartFailure), "got %s", locuserr.CodeOf(err))
}
