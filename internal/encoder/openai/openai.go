// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package openai encodes text with the OpenAI embeddings API, or any server
// that speaks it. The API returns an already pooled sentence vector, which
// is passed on as a single token row.
package openai

import (
	"context"
	"errors"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"golang.org/x/time/rate"

	"github.com/locus-dev/locus/internal/encoder"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Variant is the registry name of this encoder.
const Variant = "openai"

func init() {
	encoder.RegisterVariant(Variant, func(_ context.Context, cfg encoder.Config) (encoder.Model, error) {
		return New(cfg)
	})
}

// Model calls the embeddings endpoint for every Infer.
type Model struct {
	client     openaisdk.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// New creates a client for cfg. Returns an error if the API key is missing.
func New(cfg encoder.Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, locuserr.New(locuserr.CodeEncoderConfigInvalid,
			"openai: missing encoder.api_key", locuserr.FieldModel(cfg.Model))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(2),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	return &Model{
		client:     openaisdk.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		limiter:    encoder.NewLimiter(cfg.RequestsPerSecond),
	}, nil
}

func (m *Model) Infer(ctx context.Context, text string) ([][]float32, error) {
	if err := encoder.Wait(ctx, m.limiter); err != nil {
		return nil, err
	}

	resp, err := m.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:      openaisdk.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model:      openaisdk.EmbeddingModel(m.model),
		Dimensions: param.NewOpt(int64(m.dimensions)),
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, locuserr.New(locuserr.CodeEncoderUpstreamFailure,
			"openai: embeddings response has no data", locuserr.FieldModel(m.model))
	}

	raw := resp.Data[0].Embedding
	row := make([]float32, len(raw))
	for i, x := range raw {
		row[i] = float32(x)
	}
	return [][]float32{row}, nil
}

func (m *Model) Close() error { return nil }

func classify(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
		return locuserr.Wrapf(err, locuserr.CodeEncoderEncodeInvalidInput, "openai: embeddings request rejected")
	}
	return locuserr.Wrapf(err, locuserr.CodeEncoderUpstreamFailure, "openai: embeddings request failed")
}
