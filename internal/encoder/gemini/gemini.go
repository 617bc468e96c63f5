// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package gemini encodes text with the Gemini embedding models through the
// genai SDK, asking for output_dimensionality equal to the index size.
package gemini

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/locus-dev/locus/internal/encoder"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Variant is the registry name of this encoder.
const Variant = "gemini"

// taskType tunes the embedding for symmetric text similarity.
const taskType = "SEMANTIC_SIMILARITY"

func init() {
	encoder.RegisterVariant(Variant, func(ctx context.Context, cfg encoder.Config) (encoder.Model, error) {
		return New(ctx, cfg)
	})
}

type embedFunc func(ctx context.Context, text string) ([]float32, error)

// Model wraps a genai client.
type Model struct {
	embed   embedFunc
	model   string
	limiter *rate.Limiter
}

// New creates a Gemini API client for cfg. Returns an error if the API key
// is missing.
func New(ctx context.Context, cfg encoder.Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, locuserr.New(locuserr.CodeEncoderConfigInvalid,
			"gemini: missing encoder.api_key", locuserr.FieldModel(cfg.Model))
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout > 0 {
		timeout := cfg.RequestTimeout
		clientCfg.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeEncoderUpstreamFailure, "gemini: creating client")
	}

	dims := int32(cfg.Dimensions)
	embed := func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.Models.EmbedContent(ctx, cfg.Model, genai.Text(text), &genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: &dims,
		})
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return nil, nil
		}
		return resp.Embeddings[0].Values, nil
	}
	return newModel(cfg, embed), nil
}

func newModel(cfg encoder.Config, embed embedFunc) *Model {
	return &Model{
		embed:   embed,
		model:   cfg.Model,
		limiter: encoder.NewLimiter(cfg.RequestsPerSecond),
	}
}

func (m *Model) Infer(ctx context.Context, text string) ([][]float32, error) {
	if err := encoder.Wait(ctx, m.limiter); err != nil {
		return nil, err
	}
	values, err := m.embed(ctx, text)
	if err != nil {
		return nil, locuserr.Wrap(err, locuserr.CodeEncoderUpstreamFailure,
			"gemini: embed content failed", locuserr.FieldModel(m.model))
	}
	if len(values) == 0 {
		return nil, locuserr.New(locuserr.CodeEncoderUpstreamFailure,
			"gemini: response has no embedding", locuserr.FieldModel(m.model))
	}
	return [][]float32{values}, nil
}

func (m *Model) Close() error { return nil }
