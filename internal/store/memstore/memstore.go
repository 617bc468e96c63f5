// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package memstore is a process-local EntityStore. It has no server-side
// matcher, so search ranks its ScanAll output in process.
package memstore

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/locus-dev/locus/internal/store"
)

func init() {
	store.RegisterBackend("memory", func(cfg store.Config) (store.EntityStore, error) {
		return New(cfg.Dimensions), nil
	})
}

// Compile-time interface check.
var _ store.EntityStore = (*Store)(nil)

// Store keeps entities in a map guarded by a RWMutex. Writers swap whole
// entities, so readers never observe text and vector from different writes.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	entities   map[string]*store.Entity
	nowFunc    func() time.Time
}

// New creates an empty store accepting vectors of the given length.
func New(dimensions int) *Store {
	if dimensions <= 0 {
		dimensions = store.DefaultDimensions
	}
	return &Store{
		dimensions: dimensions,
		entities:   make(map[string]*store.Entity),
		nowFunc:    time.Now,
	}
}

func (s *Store) Dimensions() int { return s.dimensions }

// Len returns the number of stored locations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

func (s *Store) Upsert(ctx context.Context, e *store.Entity) error {
	if err := ctx.Err(); err != nil {
		return store.DatabaseError(err, "upserting location")
	}
	if err := e.Validate(s.dimensions); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc().UTC()
	if e.ID == "" {
		e.ID = store.NewID()
		e.CreatedAt = now
	} else {
		existing, ok := s.entities[e.ID]
		if !ok {
			return store.NotFound(e.ID)
		}
		if e.ExpectFingerprint != "" && existing.Fingerprint != e.ExpectFingerprint {
			return store.Conflict(e.ID)
		}
		e.CreatedAt = existing.CreatedAt
	}
	e.UpdatedAt = now
	e.ExpectFingerprint = ""
	s.entities[e.ID] = e.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.DatabaseError(err, "getting location")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, store.NotFound(id)
	}
	return e.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return store.DatabaseError(err, "deleting location")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; !ok {
		return store.NotFound(id)
	}
	delete(s.entities, id)
	return nil
}

func (s *Store) List(ctx context.Context, opts store.ListOpts) ([]*store.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.DatabaseError(err, "listing locations")
	}
	category := opts.CategoryFilter()

	s.mu.RLock()
	out := make([]*store.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if category != "" && e.Payload.Category != category {
			continue
		}
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*store.Entity{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ScanAll snapshots the current vectors under the read lock and yields them
// in id order. Vectors are shared read-only with the stored entities, which
// are replaced rather than mutated on update.
func (s *Store) ScanAll(ctx context.Context) iter.Seq2[store.VectorRecord, error] {
	return func(yield func(store.VectorRecord, error) bool) {
		s.mu.RLock()
		records := make([]store.VectorRecord, 0, len(s.entities))
		for id, e := range s.entities {
			records = append(records, store.VectorRecord{ID: id, Vector: e.Vector, Fingerprint: e.Fingerprint})
		}
		s.mu.RUnlock()

		sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				yield(store.VectorRecord{}, store.DatabaseError(err, "scanning vectors"))
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// SetNowFunc overrides the time source (for testing).
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	s.nowFunc = fn
	s.mu.Unlock()
}

func (s *Store) Close() error { return nil }
