// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package search_test

import (
	"context"
	"iter"
	"math"
	"sort"
	"testing"

	"github.com/locus-dev/locus/internal/search"
	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/store/storetest"
	"github.com/locus-dev/locus/internal/vecmath"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(recs ...store.VectorRecord) iter.Seq2[store.VectorRecord, error] {
	return func(yield func(store.VectorRecord, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func rec(id string, v ...float32) store.VectorRecord {
	return store.VectorRecord{ID: id, Vector: storetest.Unit(v...)}
}

func TestRank_OrdersBySimilarityThenID(t *testing.T) {
	query := storetest.Unit(1, 0, 0)
	got, err := search.Rank(context.Background(), records(
		rec("c", 1, 1, 0),
		rec("b", 1, 0, 0),
		rec("a", 1, 1, 0),
		rec("d", 0, 1, 0),
	), query, 0, 10)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ID
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.InDelta(t, math.Sqrt2/2, got[1].Similarity, 1e-6)
	assert.Equal(t, got[1].Similarity, got[2].Similarity)
}

func TestRank_ThresholdIsInclusive(t *testing.T) {
	query := storetest.Unit(0.6, 0.8, 0)
	stored := rec("edge", 1, 0, 0)
	exact := vecmath.Dot(query, stored.Vector)

	got, err := search.Rank(context.Background(), records(stored), query, exact, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "edge", got[0].ID)

	got, err = search.Rank(context.Background(), records(stored), query, math.Nextafter(exact, 2), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRank_KeepsBestWithinLimit(t *testing.T) {
	query := storetest.Unit(1, 0, 0)
	var recs []store.VectorRecord
	for i := range 50 {
		recs = append(recs, rec(string(rune('A'+i)), 1, float32(i)/10, 0))
	}
	got, err := search.Rank(context.Background(), records(recs...), query, -1, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Similarity > got[j].Similarity }))
}

func TestRank_EmptyInput(t *testing.T) {
	got, err := search.Rank(context.Background(), records(), storetest.Unit(1, 0, 0), 0, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRank_DimensionMismatch(t *testing.T) {
	_, err := search.Rank(context.Background(),
		records(store.VectorRecord{ID: "short", Vector: []float32{1, 0}}),
		storetest.Unit(1, 0, 0), 0, 5)
	require.Error(t, err)
	assert.True(t, locuserr.IsDimensionMismatch(err))
}

func TestRank_PropagatesScanError(t *testing.T) {
	failing := func(yield func(store.VectorRecord, error) bool) {
		yield(store.VectorRecord{}, locuserr.New(locuserr.CodeStoreDatabaseFailure, "disk gone"))
	}
	_, err := search.Rank(context.Background(), failing, storetest.Unit(1, 0, 0), 0, 5)
	assert.True(t, locuserr.IsPersistenceFailure(err))
}

func TestRank_ClampsRoundingAboveOne(t *testing.T) {
	v := []float32{0.57735026, 0.57735026, 0.57735026}
	got, err := search.Rank(context.Background(), records(store.VectorRecord{ID: "x", Vector: v}), v, 0.99, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.LessOrEqual(t, got[0].Similarity, 1.0)
}
