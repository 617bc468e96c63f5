// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package index_test

import (
	"context"
	"testing"

	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, svc *index.Service, texts ...string) []*store.Entity {
	t.Helper()
	out := make([]*store.Entity, 0, len(texts))
	for _, text := range texts {
		e, err := svc.Create(context.Background(), index.Request{Text: text, Payload: store.Payload{Title: text}})
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestReindex_FreshEntitiesAreSkipped(t *testing.T) {
	svc := newService(t, newMemStore(), newCache(t, "1"))
	seed(t, svc, "cedar shrine", "fish market")

	report, err := svc.Reindex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 0, report.Reindexed)
	assert.Equal(t, 2, report.Skipped)
}

func TestReindex_ModelVersionChange(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	seeded := seed(t, newService(t, st, newCache(t, "1")), "cedar shrine", "fish market")

	next := newCache(t, "2")
	svc := newService(t, st, next)
	for _, e := range seeded {
		assert.True(t, svc.Stale(e))
	}

	report, err := svc.Reindex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Reindexed)
	assert.Equal(t, 0, report.Failed)

	for _, e := range seeded {
		got, err := svc.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, next.Info().ID(), got.ModelVersion)
		assert.Equal(t, e.Text, got.Text)
		assert.Equal(t, e.Payload.Title, got.Payload.Title)
		assert.Equal(t, e.CreatedAt, got.CreatedAt)
		assert.InDeltaSlice(t, encodeWith(t, next, e.Text), got.Vector, 1e-6)
		assert.False(t, svc.Stale(got))
	}
}

func TestReindex_ForceRewritesEverything(t *testing.T) {
	svc := newService(t, newMemStore(), newCache(t, "1"))
	seed(t, svc, "cedar shrine", "fish market", "stone bridge")

	report, err := svc.Reindex(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 3, report.Reindexed)
	assert.Equal(t, 0, report.Skipped)
}

func TestReindex_CountsFailures(t *testing.T) {
	mem := newMemStore()
	st := &flakyStore{EntityStore: mem}
	svc := newService(t, st, newCache(t, "1"))
	seeded := seed(t, svc, "cedar shrine", "fish market")

	st.fail.Store(true)
	report, err := svc.Reindex(context.Background(), true)
	require.Error(t, err)
	assert.True(t, locuserr.IsPersistenceFailure(err))
	assert.ErrorContains(t, err, "2 of 2 locations failed")
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, report.Reindexed)

	got, err := svc.Get(context.Background(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, seeded[0].Vector, got.Vector)
}

// racingStore rewrites the location's text between the pass reading it and
// the pass writing it back.
type racingStore struct {
	store.EntityStore
	svc  *index.Service
	once bool
}

func (r *racingStore) Upsert(ctx context.Context, e *store.Entity) error {
	if e.ExpectFingerprint != "" && !r.once {
		r.once = true
		if _, err := r.svc.Update(ctx, e.ID, index.Request{Text: "renovated fish market"}); err != nil {
			return err
		}
	}
	return r.EntityStore.Upsert(ctx, e)
}

func TestReindex_ConcurrentUpdateWins(t *testing.T) {
	ctx := context.Background()
	mem := newMemStore()
	cache := newCache(t, "1")
	seeded := seed(t, newService(t, mem, cache), "fish market")

	racing := &racingStore{EntityStore: mem}
	svc := newService(t, racing, cache)
	racing.svc = newService(t, mem, cache)

	report, err := svc.Reindex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Reindexed)

	got, err := svc.Get(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "renovated fish market", got.Text)
	assert.InDeltaSlice(t, encodeWith(t, cache, got.Text), got.Vector, 1e-6)
}

func TestReindex_CanceledContext(t *testing.T) {
	svc := newService(t, newMemStore(), newCache(t, "1"))
	seed(t, svc, "cedar shrine")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Reindex(ctx, true)
	require.Error(t, err)
}
