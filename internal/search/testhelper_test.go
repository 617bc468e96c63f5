// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package search_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/store/sqlite"
	"github.com/locus-dev/locus/internal/store/storetest"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/stretchr/testify/require"
)

// tableSource encodes text by looking it up in a fixed table of vectors.
type tableSource struct {
	vectors  map[string][]float32
	acquires atomic.Int64
}

func newTableSource(vectors map[string][]float32) *tableSource {
	return &tableSource{vectors: vectors}
}

func (s *tableSource) Acquire(context.Context) (encoder.Encoder, error) {
	s.acquires.Add(1)
	return s, nil
}

func (s *tableSource) Info() encoder.ModelInfo {
	return encoder.ModelInfo{Variant: "test", Name: "fixture", Version: "1", Dimensions: storetest.Dims, Pooling: "mean", Normalize: true}
}

func (s *tableSource) Encode(_ context.Context, text string) ([]float32, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, locuserr.New(locuserr.CodeEncoderEncodeFailure, "no vector for "+text)
	}
	return v, nil
}

// put stores text with vector v and returns the assigned id.
func put(t *testing.T, st store.EntityStore, text string, v ...float32) string {
	t.Helper()
	e := storetest.Entity(text, "", v...)
	require.NoError(t, st.Upsert(context.Background(), e))
	return e.ID
}

func newSQLiteStore(t *testing.T) *sqlite.LocationStore {
	t.Helper()
	return newSQLiteStoreDims(t, storetest.Dims)
}

func newSQLiteStoreDims(t *testing.T, dims int) *sqlite.LocationStore {
	t.Helper()
	dir, err := os.MkdirTemp("", "locus-search-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	s, err := sqlite.NewLocationStore(filepath.Join(dir, "search.db"), dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
