// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package store

import (
	"context"
	"iter"
)

// EntityStore persists locations together with their vectors.
type EntityStore interface {
	// Dimensions is the fixed vector length the store accepts.
	Dimensions() int

	// Upsert validates and writes e as one atomic unit. An empty e.ID inserts
	// a new row and assigns ID and CreatedAt; otherwise the existing row is
	// replaced and a not-found error is returned if it does not exist. A
	// replace with ExpectFingerprint set fails with a conflict error when the
	// stored fingerprint differs. On success e reflects the persisted state.
	Upsert(ctx context.Context, e *Entity) error

	Get(ctx context.Context, id string) (*Entity, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOpts) ([]*Entity, error)

	// ScanAll yields every stored (id, vector) pair. Each call reads current
	// state; a sequence is never reused across calls.
	ScanAll(ctx context.Context) iter.Seq2[VectorRecord, error]

	Close() error
}
