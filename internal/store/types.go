// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Payload holds the descriptive fields of a location. The core never
// interprets them; they are carried through writes and reads unchanged.
type Payload struct {
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	ImageURLs  []string `json:"image_urls,omitempty"`
	VisitDates []string `json:"visit_dates,omitempty"`
}

// Entity is an indexed location: free text, the vector derived from it, and
// the payload. Vector and Fingerprint are always written together with Text.
type Entity struct {
	ID           string
	Text         string
	Vector       []float32
	Fingerprint  string // Fingerprint(Text) at the time Vector was encoded
	ModelVersion string // encoder identity that produced Vector
	Payload      Payload
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// ExpectFingerprint, when set on a replace, makes Upsert fail with a
	// conflict unless the stored fingerprint still equals it. Not persisted.
	ExpectFingerprint string
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	if e.Vector != nil {
		out.Vector = append([]float32(nil), e.Vector...)
	}
	out.Payload.ImageURLs = append([]string(nil), e.Payload.ImageURLs...)
	out.Payload.VisitDates = append([]string(nil), e.Payload.VisitDates...)
	if e.Payload.Latitude != nil {
		lat := *e.Payload.Latitude
		out.Payload.Latitude = &lat
	}
	if e.Payload.Longitude != nil {
		lng := *e.Payload.Longitude
		out.Payload.Longitude = &lng
	}
	return &out
}

// ListOpts controls pagination and filtering for List queries.
type ListOpts struct {
	Category string // empty or "all" disables the filter
	Limit    int
	Offset   int
}

// CategoryFilter returns the effective category filter, or "" for none.
func (o ListOpts) CategoryFilter() string {
	if o.Category == "all" {
		return ""
	}
	return o.Category
}

// Fingerprint returns the hex SHA-256 of text. Stores persist it next to the
// vector so staleness can be detected without re-encoding.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewID returns a fresh time-ordered identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
