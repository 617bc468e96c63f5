// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package index_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/encoder/hashing"
	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/store/memstore"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testDims = 64

func newCache(t *testing.T, version string) *encoder.Cache {
	t.Helper()
	cfg := encoder.DefaultConfig()
	cfg.Variant = hashing.Variant
	cfg.Version = version
	cfg.Dimensions = testDims
	c, err := encoder.NewCache(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newService(t *testing.T, st store.EntityStore, src encoder.Source) *index.Service {
	t.Helper()
	svc, err := index.NewService(st, src, nil)
	require.NoError(t, err)
	return svc
}

// encodeWith returns what src produces for text, for comparing against
// stored vectors.
func encodeWith(t *testing.T, src encoder.Source, text string) []float32 {
	t.Helper()
	enc, err := src.Acquire(context.Background())
	require.NoError(t, err)
	vec, err := enc.Encode(context.Background(), text)
	require.NoError(t, err)
	return vec
}

// flakySource fails every Acquire while fail is set.
type flakySource struct {
	encoder.Source
	fail atomic.Bool
}

func (f *flakySource) Acquire(ctx context.Context) (encoder.Encoder, error) {
	if f.fail.Load() {
		return nil, locuserr.New(locuserr.CodeEncoderEncodeFailure, "encoder unavailable")
	}
	return f.Source.Acquire(ctx)
}

// flakyStore fails every Upsert while fail is set.
type flakyStore struct {
	store.EntityStore
	fail atomic.Bool
}

func (f *flakyStore) Upsert(ctx context.Context, e *store.Entity) error {
	if f.fail.Load() {
		return store.DatabaseError(errors.New("disk I/O error"), "upserting location")
	}
	return f.EntityStore.Upsert(ctx, e)
}

func newMemStore() *memstore.Store {
	return memstore.New(testDims)
}

func ptr[T any](v T) *T { return &v }
