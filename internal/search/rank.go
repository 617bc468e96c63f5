// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package search

import (
	"context"
	"iter"

	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/vecmath"
)

// Rank scores every record against query and returns at most limit matches
// with similarity >= threshold, ordered by similarity descending then id
// ascending. Both query and records must be unit length, so the dot product
// is the cosine similarity. Arguments are assumed validated.
func Rank(ctx context.Context, records iter.Seq2[store.VectorRecord, error], query []float32, threshold float64, limit int) ([]store.Match, error) {
	q := newTopK(limit)
	n := 0
	for rec, err := range records {
		if err != nil {
			return nil, err
		}
		n++
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, store.DatabaseError(err, "ranking locations")
			}
		}
		if err := store.CheckDimensions(rec.Vector, len(query)); err != nil {
			return nil, err
		}

		sim := store.ClampSimilarity(vecmath.Dot(query, rec.Vector))
		if sim < threshold {
			continue
		}
		q.offer(store.Match{ID: rec.ID, Similarity: sim, Fingerprint: rec.Fingerprint})
	}
	return q.sorted(), nil
}
