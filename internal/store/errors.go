// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package store

import (
	"context"
	"errors"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// NotFound returns the error stores report for an unknown id.
func NotFound(id string) error {
	return locuserr.New(locuserr.CodeStoreEntityNotFound, "location not found", locuserr.FieldEntityID(id))
}

// Conflict is returned when a conditional replace finds newer text stored.
func Conflict(id string) error {
	return locuserr.New(locuserr.CodeStoreEntityConflict,
		"location text changed since it was read", locuserr.FieldEntityID(id))
}

// DatabaseError classifies a backend error. Context cancellation keeps its
// own code so callers can tell an abandoned request from an I/O failure.
func DatabaseError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return locuserr.Wrapf(err, locuserr.CodeStoreOperationCanceled, "%s", op)
	}
	return locuserr.Wrapf(err, locuserr.CodeStoreDatabaseFailure, "%s", op)
}
