// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package store

import "context"

// VectorRecord is one row yielded by ScanAll. Fingerprint is read in the
// same statement as Vector, so it identifies the text Vector was derived from.
type VectorRecord struct {
	ID          string
	Vector      []float32
	Fingerprint string
}

// Match is a ranked search hit. Similarity is cosine similarity in [-1, 1]
// and was computed against the vector whose text hashes to Fingerprint.
type Match struct {
	ID          string  `json:"id"`
	Similarity  float64 `json:"similarity"`
	Fingerprint string  `json:"-"`
}

// Matcher is implemented by backends that can rank vectors server-side.
// Implementations must keep matches with Similarity >= threshold, order them
// by Similarity descending then ID ascending, return at most limit, clamp
// Similarity into [-1, 1], and fill Fingerprint from the matched row.
type Matcher interface {
	Match(ctx context.Context, query []float32, threshold float64, limit int) ([]Match, error)
}

// ClampSimilarity absorbs float rounding that pushes unit-vector cosine
// similarities just outside [-1, 1].
func ClampSimilarity(sim float64) float64 {
	return max(-1, min(1, sim))
}
