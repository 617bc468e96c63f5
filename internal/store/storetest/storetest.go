// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package storetest provides fixtures and a behavioural suite shared by the
// EntityStore backends.
package storetest

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/vecmath"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Dims is the vector length used by the suite.
const Dims = 3

// Unit returns v normalized to unit length.
func Unit(v ...float32) []float32 {
	out := vecmath.Clone(v)
	if err := vecmath.Normalize(out); err != nil {
		panic(err)
	}
	return out
}

// Entity builds a valid entity for text with the given raw vector.
func Entity(text string, category string, v ...float32) *store.Entity {
	return &store.Entity{
		Text:         text,
		Vector:       Unit(v...),
		Fingerprint:  store.Fingerprint(text),
		ModelVersion: "test/fixture@1/3",
		Payload:      store.Payload{Title: text, Category: category},
	}
}

// Collect drains a ScanAll sequence.
func Collect(t *testing.T, s store.EntityStore) map[string][]float32 {
	t.Helper()
	out := map[string][]float32{}
	for rec, err := range s.ScanAll(context.Background()) {
		require.NoError(t, err)
		out[rec.ID] = rec.Vector
	}
	return out
}

// Run exercises the EntityStore contract against stores produced by open.
// Each subtest gets a fresh, empty store with Dims dimensions.
func Run(t *testing.T, open func(t *testing.T) store.EntityStore) {
	t.Run("insert assigns id", func(t *testing.T) {
		s := open(t)
		e := Entity("quiet shrine", "shrine", 1, 0, 0)
		require.NoError(t, s.Upsert(context.Background(), e))
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())

		got, err := s.Get(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, "quiet shrine", got.Text)
		assert.Equal(t, "shrine", got.Payload.Category)
		assert.InDeltaSlice(t, e.Vector, got.Vector, 1e-6)
		assert.Equal(t, e.Fingerprint, got.Fingerprint)
	})

	t.Run("ids are unique", func(t *testing.T) {
		s := open(t)
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			e := Entity("place", "", 1, float32(i), 0)
			require.NoError(t, s.Upsert(context.Background(), e))
			assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
			seen[e.ID] = true
		}
	})

	t.Run("rejects wrong dimensions", func(t *testing.T) {
		s := open(t)
		e := Entity("short vector", "", 1, 0)
		err := s.Upsert(context.Background(), e)
		require.Error(t, err)
		assert.True(t, locuserr.IsDimensionMismatch(err), "got %s", locuserr.CodeOf(err))
		assert.Empty(t, e.ID)
		assert.Empty(t, Collect(t, s))
	})

	t.Run("rejects stale fingerprint", func(t *testing.T) {
		s := open(t)
		e := Entity("new text", "", 1, 0, 0)
		e.Fingerprint = store.Fingerprint("old text")
		err := s.Upsert(context.Background(), e)
		require.Error(t, err)
		assert.Equal(t, locuserr.CodeStoreFingerprintMismatch, locuserr.CodeOf(err))
		assert.False(t, locuserr.IsInvalidInput(err), "a mismatched fingerprint is an internal fault")
	})

	t.Run("rejects unnormalized vector", func(t *testing.T) {
		s := open(t)
		e := Entity("loose", "", 1, 0, 0)
		e.Vector = []float32{2, 0, 0}
		err := s.Upsert(context.Background(), e)
		require.Error(t, err)
		assert.Equal(t, locuserr.CodeStoreVectorNotNormalized, locuserr.CodeOf(err))
		assert.Equal(t, http.StatusInternalServerError, locuserr.HTTPStatus(err))
	})

	t.Run("replace swaps text and vector together", func(t *testing.T) {
		s := open(t)
		e := Entity("before", "a", 1, 0, 0)
		require.NoError(t, s.Upsert(context.Background(), e))
		created := e.CreatedAt

		upd := Entity("after", "b", 0, 1, 0)
		upd.ID = e.ID
		require.NoError(t, s.Upsert(context.Background(), upd))
		assert.True(t, created.Equal(upd.CreatedAt), "created_at must be preserved")

		got, err := s.Get(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Text)
		assert.Equal(t, store.Fingerprint("after"), got.Fingerprint)
		assert.Equal(t, "b", got.Payload.Category)
		assert.InDeltaSlice(t, []float32{0, 1, 0}, Collect(t, s)[e.ID], 1e-6)
	})

	t.Run("replace unknown id", func(t *testing.T) {
		s := open(t)
		e := Entity("ghost", "", 1, 0, 0)
		e.ID = "does-not-exist"
		err := s.Upsert(context.Background(), e)
		require.Error(t, err)
		assert.True(t, locuserr.IsNotFound(err))
	})

	t.Run("conditional replace", func(t *testing.T) {
		s := open(t)
		e := Entity("original", "", 1, 0, 0)
		require.NoError(t, s.Upsert(context.Background(), e))

		stale := Entity("from stale read", "", 0, 1, 0)
		stale.ID = e.ID
		stale.ExpectFingerprint = store.Fingerprint("something else")
		err := s.Upsert(context.Background(), stale)
		require.Error(t, err)
		assert.True(t, locuserr.IsConflict(err))

		got, err := s.Get(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, "original", got.Text)

		ok := Entity("guarded write", "", 0, 1, 0)
		ok.ID = e.ID
		ok.ExpectFingerprint = store.Fingerprint("original")
		require.NoError(t, s.Upsert(context.Background(), ok))
		assert.Empty(t, ok.ExpectFingerprint)
	})

	t.Run("delete removes from scan", func(t *testing.T) {
		s := open(t)
		a := Entity("a", "", 1, 0, 0)
		b := Entity("b", "", 0, 1, 0)
		require.NoError(t, s.Upsert(context.Background(), a))
		require.NoError(t, s.Upsert(context.Background(), b))

		require.NoError(t, s.Delete(context.Background(), a.ID))
		vecs := Collect(t, s)
		assert.NotContains(t, vecs, a.ID)
		assert.Contains(t, vecs, b.ID)

		_, err := s.Get(context.Background(), a.ID)
		assert.True(t, locuserr.IsNotFound(err))
		assert.True(t, locuserr.IsNotFound(s.Delete(context.Background(), a.ID)))
	})

	t.Run("scan is restartable", func(t *testing.T) {
		s := open(t)
		assert.Empty(t, Collect(t, s))

		e := Entity("x", "", 1, 1, 0)
		require.NoError(t, s.Upsert(context.Background(), e))
		assert.Len(t, Collect(t, s), 1)

		e2 := Entity("y", "", 0, 1, 1)
		require.NoError(t, s.Upsert(context.Background(), e2))
		assert.Len(t, Collect(t, s), 2, "a fresh scan must see the new row")
	})

	t.Run("scan pairs vector with fingerprint", func(t *testing.T) {
		s := open(t)
		e := Entity("harbour steps", "", 0, 1, 0)
		require.NoError(t, s.Upsert(context.Background(), e))

		upd := Entity("market arcade", "", 1, 0, 0)
		upd.ID = e.ID
		require.NoError(t, s.Upsert(context.Background(), upd))

		for rec, err := range s.ScanAll(context.Background()) {
			require.NoError(t, err)
			assert.Equal(t, store.Fingerprint("market arcade"), rec.Fingerprint)
			assert.InDeltaSlice(t, []float32{1, 0, 0}, rec.Vector, 1e-6)
		}

		m, ok := s.(store.Matcher)
		if !ok {
			return
		}
		matches, err := m.Match(context.Background(), Unit(1, 0, 0), 0.5, 5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, store.Fingerprint("market arcade"), matches[0].Fingerprint)
		assert.LessOrEqual(t, matches[0].Similarity, 1.0)
	})

	t.Run("scan stops early", func(t *testing.T) {
		s := open(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Upsert(context.Background(), Entity("p", "", 1, float32(i), 1)))
		}
		n := 0
		for _, err := range s.ScanAll(context.Background()) {
			require.NoError(t, err)
			n++
			break
		}
		assert.Equal(t, 1, n)
	})

	t.Run("list filters by category", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Upsert(context.Background(), Entity("shrine", "shrine", 1, 0, 0)))
		require.NoError(t, s.Upsert(context.Background(), Entity("street", "street", 0, 1, 0)))
		require.NoError(t, s.Upsert(context.Background(), Entity("temple", "shrine", 0, 0, 1)))

		all, err := s.List(context.Background(), store.ListOpts{Category: "all"})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		shrines, err := s.List(context.Background(), store.ListOpts{Category: "shrine"})
		require.NoError(t, err)
		assert.Len(t, shrines, 2)

		page, err := s.List(context.Background(), store.ListOpts{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})

	t.Run("concurrent replaces stay consistent", func(t *testing.T) {
		s := open(t)
		e := Entity("v0", "", 1, 0, 0)
		require.NoError(t, s.Upsert(context.Background(), e))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				upd := Entity("variant", "", 1, float32(i), 0)
				upd.Text = upd.Text + string(rune('a'+i))
				upd.Fingerprint = store.Fingerprint(upd.Text)
				upd.ID = e.ID
				assert.NoError(t, s.Upsert(context.Background(), upd))
			}(i)
		}
		wg.Wait()

		got, err := s.Get(context.Background(), e.ID)
		require.NoError(t, err)
		assert.Equal(t, store.Fingerprint(got.Text), got.Fingerprint)
		i := int(got.Text[len(got.Text)-1] - 'a')
		assert.InDeltaSlice(t, Unit(1, float32(i), 0), got.Vector, 1e-6,
			"stored vector must belong to the stored text")
	})
}
