// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package tei

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyServer answers the first len(fail) requests with the given statuses
// and Retry-After values, then succeeds.
func flakyServer(t *testing.T, fail []int, retryAfter string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n <= len(fail) {
			if retryAfter != "" {
				w.Header().Set("Retry-After", retryAfter)
			}
			w.WriteHeader(fail[n-1])
			return
		}
		_, _ = w.Write([]byte(`[1]`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func recordingModel(url string) (*Model, *[]time.Duration) {
	var waits []time.Duration
	m := &Model{
		baseURL: url,
		client:  &http.Client{},
		limiter: encoder.NewLimiter(0),
		pause: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	return m, &waits
}

func TestDo_BackoffWithoutRetryAfter(t *testing.T) {
	srv, calls := flakyServer(t, []int{http.StatusServiceUnavailable, http.StatusBadGateway}, "")
	m, waits := recordingModel(srv.URL)

	var out []int
	require.NoError(t, m.do(context.Background(), http.MethodPost, "/embed_all", nil, &out))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, *waits)
}

func TestDo_RetryAfterReplacesBackoff(t *testing.T) {
	srv, calls := flakyServer(t, []int{http.StatusTooManyRequests, http.StatusTooManyRequests}, "1")
	m, waits := recordingModel(srv.URL)

	var out []int
	require.NoError(t, m.do(context.Background(), http.MethodPost, "/embed_all", nil, &out))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *waits,
		"one pause per retry, at least the advertised delay")
}

func TestDo_BackoffDoublesPerAttempt(t *testing.T) {
	fail := []int{http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable}
	srv, _ := flakyServer(t, fail, "")
	m, waits := recordingModel(srv.URL)

	var out []int
	require.NoError(t, m.do(context.Background(), http.MethodPost, "/embed_all", nil, &out))
	require.Len(t, *waits, 3)
	assert.Equal(t, 800*time.Millisecond, (*waits)[2])
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	fail := make([]int, maxRetries+1)
	for i := range fail {
		fail[i] = http.StatusServiceUnavailable
	}
	srv, calls := flakyServer(t, fail, "")
	m, waits := recordingModel(srv.URL)

	var out []int
	err := m.do(context.Background(), http.MethodPost, "/embed_all", nil, &out)
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
	assert.Len(t, *waits, maxRetries)
}
