// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package secrets resolves keyring://service/key references in
// configuration values against the OS keyring.
package secrets

// Store reads and writes secrets by service and key.
type Store interface {
	// Set saves value under service/key, replacing any previous value.
	Set(service, key, value string) error

	// Get returns the value under service/key. A missing secret is reported
	// with locuserr.CodeSecretNotFound.
	Get(service, key string) (string, error)

	// Delete removes service/key. A missing secret is reported with
	// locuserr.CodeSecretNotFound.
	Delete(service, key string) error
}

// DefaultService is the keyring service used by `locus secret set` when
// none is given.
const DefaultService = "locus"
