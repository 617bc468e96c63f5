// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package encoder turns location descriptions into unit-length vectors.
//
// A Model produces token-level representations for one text. TextEncoder
// mean-pools them and L2-normalizes the result. Cache loads the model once
// per process and hands the same TextEncoder to every caller.
package encoder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/locus-dev/locus/internal/metrics"
	"github.com/locus-dev/locus/internal/vecmath"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// ModelInfo is the fixed identity of a loaded model. Vectors produced under
// different identities are not comparable.
type ModelInfo struct {
	Variant    string `json:"variant"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Dimensions int    `json:"dimensions"`
	Pooling    string `json:"pooling"`
	Normalize  bool   `json:"normalize"`
}

// ID renders the identity persisted next to every vector, e.g.
// "hashing/feature-hash@1/384".
func (m ModelInfo) ID() string {
	return fmt.Sprintf("%s/%s@%s/%d", m.Variant, m.Name, m.Version, m.Dimensions)
}

// Model is a loaded inference backend.
type Model interface {
	// Infer returns one row per token, each of the model's hidden size.
	// Backends that only expose a pooled sentence vector return a single row.
	Infer(ctx context.Context, text string) ([][]float32, error)
	Close() error
}

// Encoder maps text to a normalized vector of Info().Dimensions floats.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Info() ModelInfo
}

// Compile-time interface check.
var _ Encoder = (*TextEncoder)(nil)

// TextEncoder applies mean pooling and L2 normalization on top of a Model.
// It is safe for concurrent use; when the model is not reentrant, inference
// calls are serialized through a weighted semaphore.
type TextEncoder struct {
	model   Model
	info    ModelInfo
	sem     *semaphore.Weighted
	health  *HealthTracker
	metrics *metrics.Metrics
}

// NewTextEncoder wraps model. maxConcurrency <= 0 leaves inference
// unbounded.
func NewTextEncoder(model Model, info ModelInfo, maxConcurrency int, health *HealthTracker, m *metrics.Metrics) *TextEncoder {
	e := &TextEncoder{model: model, info: info, health: health, metrics: m}
	if maxConcurrency > 0 {
		e.sem = semaphore.NewWeighted(int64(maxConcurrency))
	}
	return e
}

func (e *TextEncoder) Info() ModelInfo { return e.info }

// Encode returns the normalized embedding of text. Empty or whitespace-only
// text is rejected rather than mapped to a zero vector.
func (e *TextEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, locuserr.New(locuserr.CodeEncoderEncodeInvalidInput,
			"cannot encode empty text", locuserr.FieldModel(e.info.ID()))
	}

	start := time.Now()
	vec, err := e.encode(ctx, text)
	e.metrics.ObserveEncode(time.Since(start), err)
	if err != nil {
		if locuserr.IsEncodingFailure(err) && e.health != nil {
			e.health.RecordFailure(err)
		}
		return nil, err
	}
	if e.health != nil {
		e.health.RecordSuccess()
	}
	return vec, nil
}

func (e *TextEncoder) encode(ctx context.Context, text string) ([]float32, error) {
	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, locuserr.Wrap(err, locuserr.CodeEncoderEncodeCanceled,
				"waiting for inference slot", locuserr.FieldModel(e.info.ID()))
		}
		defer e.sem.Release(1)
	}

	tokens, err := e.model.Infer(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, locuserr.Wrap(ctxErr, locuserr.CodeEncoderEncodeCanceled,
				"inference abandoned", locuserr.FieldModel(e.info.ID()))
		}
		// Codes set by the model (invalid input, upstream failure) win.
		return nil, locuserr.Wrap(err, locuserr.CodeEncoderEncodeFailure,
			"running inference", locuserr.FieldModel(e.info.ID()))
	}

	vec, err := vecmath.MeanPool(tokens, e.info.Dimensions)
	if err != nil {
		return nil, locuserr.Wrap(err, locuserr.CodeEncoderEncodeFailure,
			"pooling token vectors", locuserr.FieldModel(e.info.ID()))
	}
	if e.info.Normalize {
		if err := vecmath.Normalize(vec); err != nil {
			return nil, locuserr.Wrap(err, locuserr.CodeEncoderEncodeFailure,
				"normalizing embedding", locuserr.FieldModel(e.info.ID()))
		}
	}
	return vec, nil
}

// Close releases the underlying model.
func (e *TextEncoder) Close() error {
	return e.model.Close()
}
