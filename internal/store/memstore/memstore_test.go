// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/store/memstore"
	"github.com/locus-dev/locus/internal/store/storetest"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.EntityStore {
		return memstore.New(storetest.Dims)
	})
}

func TestStore_ListOrdersNewestFirst(t *testing.T) {
	s := memstore.New(storetest.Dims)
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.SetNowFunc(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	})

	first := storetest.Entity("first", "", 1, 0, 0)
	second := storetest.Entity("second", "", 0, 1, 0)
	require.NoError(t, s.Upsert(context.Background(), first))
	require.NoError(t, s.Upsert(context.Background(), second))

	got, err := s.List(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, first.ID, got[1].ID)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := memstore.New(storetest.Dims)
	e := storetest.Entity("shrine", "", 1, 0, 0)
	require.NoError(t, s.Upsert(context.Background(), e))

	got, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	got.Vector[0] = 42
	got.Text = "mutated"

	again, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "shrine", again.Text)
	assert.InDelta(t, 1.0, again.Vector[0], 1e-6)
}

func TestStore_CanceledContext(t *testing.T) {
	s := memstore.New(storetest.Dims)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Upsert(ctx, storetest.Entity("x", "", 1, 0, 0))
	require.Error(t, err)
	assert.True(t, locuserr.IsCanceled(err))
}

func TestOpen_RegisteredBackend(t *testing.T) {
	s, err := store.Open(store.Config{Backend: "memory", Dimensions: 8})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Equal(t, 8, s.Dimensions())
	assert.Contains(t, store.Backends(), "memory")
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := store.Open(store.Config{Backend: "cassandra"})
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeStoreBackendUnsupported))
	assert.Contains(t, err.Error(), "cassandra")
}
