// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package tei talks to a Hugging Face text-embeddings-inference server. It
// requests raw token states from /embed_all so pooling and normalization
// stay under this process's control.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/locus-dev/locus/internal/encoder"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Variant is the registry name of this encoder.
const Variant = "tei"

const maxRetries = 3

func init() {
	encoder.RegisterVariant(Variant, func(ctx context.Context, cfg encoder.Config) (encoder.Model, error) {
		return Load(ctx, cfg)
	})
}

// Model is a handle to a running TEI server.
type Model struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	pause   func(context.Context, time.Duration) error
}

type info struct {
	ModelID string `json:"model_id"`
	MaxLen  int    `json:"max_input_length"`
}

// Load checks that the server is reachable and serving the configured
// model. A different model id is logged, not rejected, since TEI reports
// local paths for self-hosted weights.
func Load(ctx context.Context, cfg encoder.Config) (*Model, error) {
	if cfg.BaseURL == "" {
		return nil, locuserr.New(locuserr.CodeEncoderConfigInvalid,
			"encoder.base_url is required for the tei variant", locuserr.FieldModel(cfg.Model))
	}
	m := &Model{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: encoder.NewLimiter(cfg.RequestsPerSecond),
		pause:   sleep,
	}

	var got info
	if err := m.do(ctx, http.MethodGet, "/info", nil, &got); err != nil {
		return nil, err
	}
	if got.ModelID != "" && got.ModelID != cfg.Model {
		slog.Warn("tei server reports a different model", "configured", cfg.Model, "served", got.ModelID)
	}
	return m, nil
}

type embedAllRequest struct {
	Inputs   string `json:"inputs"`
	Truncate bool   `json:"truncate"`
}

// Infer returns the token states of text.
func (m *Model) Infer(ctx context.Context, text string) ([][]float32, error) {
	var out [][][]float32
	if err := m.do(ctx, http.MethodPost, "/embed_all", embedAllRequest{Inputs: text, Truncate: true}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return nil, locuserr.New(locuserr.CodeEncoderUpstreamFailure, "tei returned no token states")
	}
	return out[0], nil
}

func (m *Model) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

// do performs one JSON request, retrying transport errors, 429 and 5xx
// with exponential backoff. A Retry-After header raises the wait before the
// next attempt to at least the advertised delay.
func (m *Model) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return locuserr.Wrapf(err, locuserr.CodeEncoderEncodeFailure, "encoding tei request")
		}
	}

	var (
		lastErr error
		after   time.Duration
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.pause(ctx, max(after, retryDelay(attempt-1))); err != nil {
				return err
			}
		}
		if err := encoder.Wait(ctx, m.limiter); err != nil {
			return err
		}

		retry, wait, err := m.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		after = wait
	}
	return lastErr
}

func (m *Model) once(ctx context.Context, method, path string, payload []byte, out any) (retry bool, wait time.Duration, err error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return false, 0, locuserr.Wrapf(err, locuserr.CodeEncoderConfigInvalid, "building tei request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, locuserr.Wrap(ctx.Err(), locuserr.CodeEncoderEncodeCanceled, "tei request abandoned")
		}
		return true, 0, locuserr.Wrapf(err, locuserr.CodeEncoderUpstreamFailure, "calling tei %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, 0, locuserr.Wrapf(err, locuserr.CodeEncoderUpstreamFailure, "reading tei %s response", path)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, retryAfter(resp.Header.Get("Retry-After")),
			locuserr.Errorf(locuserr.CodeEncoderUpstreamFailure, "tei %s: %s: %s", path, resp.Status, snippet(data))
	case resp.StatusCode == http.StatusRequestEntityTooLarge || resp.StatusCode == http.StatusUnprocessableEntity:
		return false, 0, locuserr.Errorf(locuserr.CodeEncoderEncodeInvalidInput, "tei %s: %s: %s", path, resp.Status, snippet(data))
	case resp.StatusCode >= 300:
		return false, 0, locuserr.Errorf(locuserr.CodeEncoderUpstreamFailure, "tei %s: %s: %s", path, resp.Status, snippet(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, 0, locuserr.Wrapf(err, locuserr.CodeEncoderUpstreamFailure, "decoding tei %s response", path)
	}
	return false, 0, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, 10*time.Second)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return locuserr.Wrap(ctx.Err(), locuserr.CodeEncoderEncodeCanceled, "backing off tei request")
	}
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return fmt.Sprintf("%s...", s[:limit])
	}
	return s
}
