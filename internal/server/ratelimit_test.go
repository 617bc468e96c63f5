// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/locus-dev/locus/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     server.RateLimitConfig
		wantErr string
	}{
		{"disabled", server.RateLimitConfig{}, ""},
		{"enabled", server.RateLimitConfig{RequestsPerSecond: 10, Burst: 20}, ""},
		{"negative rate", server.RateLimitConfig{RequestsPerSecond: -1}, "must not be negative"},
		{"rate without burst", server.RateLimitConfig{RequestsPerSecond: 1}, "burst must be positive"},
		{"negative max clients", server.RateLimitConfig{MaxClients: -1}, "max clients"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, 10000, tt.cfg.MaxClients)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRateLimit_RejectsBurstOverflow(t *testing.T) {
	env := newTestEnv(t, withRateLimit(0.001, 2))

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodGet, "/api/v1/locations", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/v1/locations", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimit_PerClient(t *testing.T) {
	env := newTestEnv(t, withRateLimit(0.001, 1))

	first := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	first.RemoteAddr = "10.0.0.1:5000"
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	again := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	again.RemoteAddr = "10.0.0.1:5001"
	w = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, again)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	other := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	w = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_HealthNotLimited(t *testing.T) {
	env := newTestEnv(t, withRateLimit(0.001, 1))

	for i := 0; i < 5; i++ {
		w := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
}
