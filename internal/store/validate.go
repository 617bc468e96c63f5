// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package store

import (
	"math"
	"strings"

	"github.com/locus-dev/locus/internal/vecmath"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Validate checks the invariants every persisted entity must hold: non-empty
// text, a vector of exactly dims unit-length components, and a fingerprint
// matching the text the vector was derived from.
func (e *Entity) Validate(dims int) error {
	if e == nil {
		return locuserr.New(locuserr.CodeStoreEntityInvalidInput, "entity is nil")
	}
	if strings.TrimSpace(e.Text) == "" {
		return locuserr.New(locuserr.CodeStoreEntityInvalidInput, "entity text is empty", locuserr.FieldEntityID(e.ID))
	}
	if err := CheckDimensions(e.Vector, dims); err != nil {
		return locuserr.With(err, locuserr.FieldEntityID(e.ID))
	}
	if !vecmath.IsUnit(e.Vector) {
		return locuserr.Errorf(locuserr.CodeStoreVectorNotNormalized,
			"entity %s: vector is not unit length (norm %.6f)", e.ID, vecmath.Norm(e.Vector))
	}
	if e.Fingerprint != Fingerprint(e.Text) {
		return locuserr.New(locuserr.CodeStoreFingerprintMismatch,
			"entity fingerprint does not match its text", locuserr.FieldEntityID(e.ID))
	}
	return nil
}

// CheckDimensions rejects vectors whose length is not dims.
func CheckDimensions(v []float32, dims int) error {
	if len(v) != dims {
		return locuserr.Errorf(locuserr.CodeStoreVectorDimension,
			"vector has %d dimensions, store expects %d", len(v), dims)
	}
	return nil
}

// CheckMatchArgs validates the arguments shared by every Matcher.
func CheckMatchArgs(query []float32, dims int, threshold float64, limit int) error {
	if err := CheckDimensions(query, dims); err != nil {
		return err
	}
	if limit <= 0 {
		return locuserr.Errorf(locuserr.CodeStoreMatchLimitInvalid, "limit must be positive, got %d", limit)
	}
	if threshold < -1 || threshold > 1 || math.IsNaN(threshold) {
		return locuserr.Errorf(locuserr.CodeStoreMatchThresholdInvalid, "threshold must be within [-1, 1], got %v", threshold)
	}
	return nil
}
