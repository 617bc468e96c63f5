// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package store

// DefaultDimensions matches the encoder default, which is sized like
// all-MiniLM-L6-v2 sentence embeddings.
const DefaultDimensions = 384

// Config controls which backend the store factory uses.
type Config struct {
	Backend    string // "sqlite", "postgres" or "memory"; empty means "sqlite".
	Path       string // sqlite database file
	DSN        string // postgres connection string
	Dimensions int    // vector length; 0 uses DefaultDimensions
}
