// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package postgres stores locations in PostgreSQL with the pgvector
// extension and ranks them server-side with the cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pgvector/pgvector-go"

	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

func init() {
	store.RegisterBackend("postgres", func(cfg store.Config) (store.EntityStore, error) {
		if cfg.DSN == "" {
			return nil, locuserr.New(locuserr.CodeStoreBackendConfigInvalid,
				"storage.dsn is required for the postgres backend", locuserr.FieldBackend("postgres"))
		}
		return Open(cfg.DSN, cfg.Dimensions)
	})
}

// Compile-time interface checks.
var (
	_ store.EntityStore = (*LocationStore)(nil)
	_ store.Matcher     = (*LocationStore)(nil)
)

// LocationStore implements store.EntityStore on PostgreSQL.
type LocationStore struct {
	db         *sql.DB
	dimensions int
	nowFunc    func() time.Time
}

// Open connects to dsn, verifies the connection and runs Migrate.
func Open(dsn string, dimensions int) (*LocationStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, store.DatabaseError(err, "opening postgres")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, store.DatabaseError(err, "pinging postgres")
	}

	s := NewWithDB(db, dimensions)
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection pool. The caller is responsible for
// calling Migrate.
func NewWithDB(db *sql.DB, dimensions int) *LocationStore {
	return &LocationStore{db: db, dimensions: dimensions, nowFunc: time.Now}
}

// Migrate creates the pgvector extension and the locations table.
func (s *LocationStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS locations (
	id            TEXT PRIMARY KEY,
	description   TEXT NOT NULL,
	embedding     vector(%d) NOT NULL,
	fingerprint   TEXT NOT NULL,
	model_version TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	image_urls    JSONB NOT NULL DEFAULT '[]',
	visit_dates   JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_locations_category ON locations (category, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return locuserr.Wrapf(err, locuserr.CodeStoreMigrationFailure, "migrating locations table")
		}
	}
	return nil
}

func (s *LocationStore) Dimensions() int { return s.dimensions }

func (s *LocationStore) Upsert(ctx context.Context, e *store.Entity) error {
	if err := e.Validate(s.dimensions); err != nil {
		return err
	}
	images, visits, err := encodeLists(e.Payload)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.DatabaseError(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := s.nowFunc().UTC()
	id := e.ID
	createdAt := now

	if id == "" {
		id = store.NewID()
		const q = `INSERT INTO locations
(id, description, embedding, fingerprint, model_version, title, category, latitude, longitude, image_urls, visit_dates, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
		if _, err := tx.ExecContext(ctx, q,
			id, e.Text, pgvector.NewVector(e.Vector), e.Fingerprint, e.ModelVersion,
			e.Payload.Title, e.Payload.Category, nullFloat(e.Payload.Latitude), nullFloat(e.Payload.Longitude),
			images, visits, now, now,
		); err != nil {
			return store.DatabaseError(err, "inserting location")
		}
	} else {
		var fingerprint string
		err := tx.QueryRowContext(ctx, `SELECT created_at, fingerprint FROM locations WHERE id = $1 FOR UPDATE`, id).Scan(&createdAt, &fingerprint)
		if errors.Is(err, sql.ErrNoRows) {
			return store.NotFound(id)
		}
		if err != nil {
			return store.DatabaseError(err, "reading location "+id)
		}
		if e.ExpectFingerprint != "" && fingerprint != e.ExpectFingerprint {
			return store.Conflict(id)
		}

		const q = `UPDATE locations SET
description = $2, embedding = $3, fingerprint = $4, model_version = $5, title = $6, category = $7,
latitude = $8, longitude = $9, image_urls = $10, visit_dates = $11, updated_at = $12
WHERE id = $1`
		if _, err := tx.ExecContext(ctx, q,
			id, e.Text, pgvector.NewVector(e.Vector), e.Fingerprint, e.ModelVersion, e.Payload.Title, e.Payload.Category,
			nullFloat(e.Payload.Latitude), nullFloat(e.Payload.Longitude), images, visits, now,
		); err != nil {
			return store.DatabaseError(err, "updating location "+id)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.DatabaseError(err, "committing location")
	}

	e.ID = id
	e.CreatedAt = createdAt
	e.UpdatedAt = now
	e.ExpectFingerprint = ""
	return nil
}

const selectColumns = `id, description, embedding, fingerprint, model_version, title, category,
latitude, longitude, image_urls, visit_dates, created_at, updated_at`

func (s *LocationStore) Get(ctx context.Context, id string) (*store.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM locations WHERE id = $1`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(id)
	}
	return e, err
}

func (s *LocationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return store.DatabaseError(err, "deleting location "+id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.DatabaseError(err, "deleting location "+id)
	}
	if n == 0 {
		return store.NotFound(id)
	}
	return nil
}

func (s *LocationStore) List(ctx context.Context, opts store.ListOpts) ([]*store.Entity, error) {
	var limit any // NULL means no limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + selectColumns + ` FROM locations
WHERE ($1 = '' OR category = $1)
ORDER BY created_at DESC, id ASC
LIMIT $2 OFFSET $3`
	rows, err := s.db.QueryContext(ctx, q, opts.CategoryFilter(), limit, offset)
	if err != nil {
		return nil, store.DatabaseError(err, "listing locations")
	}
	defer func() { _ = rows.Close() }()

	out := []*store.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating locations")
	}
	return out, nil
}

// ScanAll streams (id, vector, fingerprint) rows in id order.
func (s *LocationStore) ScanAll(ctx context.Context) iter.Seq2[store.VectorRecord, error] {
	return func(yield func(store.VectorRecord, error) bool) {
		rows, err := s.db.QueryContext(ctx, `SELECT id, embedding, fingerprint FROM locations ORDER BY id`)
		if err != nil {
			yield(store.VectorRecord{}, store.DatabaseError(err, "scanning vectors"))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				rec store.VectorRecord
				vec pgvector.Vector
			)
			if err := rows.Scan(&rec.ID, &vec, &rec.Fingerprint); err != nil {
				yield(store.VectorRecord{}, locuserr.Wrapf(err, locuserr.CodeStoreVectorDecodeFailure, "scanning vector row"))
				return
			}
			rec.Vector = vec.Slice()
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(store.VectorRecord{}, store.DatabaseError(err, "iterating vectors"))
		}
	}
}

// Match ranks with pgvector's <=> cosine distance operator, clamping the
// similarity before the threshold filter sees it.
func (s *LocationStore) Match(ctx context.Context, query []float32, threshold float64, limit int) ([]store.Match, error) {
	if err := store.CheckMatchArgs(query, s.dimensions, threshold, limit); err != nil {
		return nil, err
	}

	const q = `SELECT id, similarity, fingerprint FROM (
	SELECT id, fingerprint, LEAST(1.0, GREATEST(-1.0, 1 - (embedding <=> $1::vector))) AS similarity
	FROM locations
) ranked
WHERE similarity >= $2
ORDER BY similarity DESC, id ASC
LIMIT $3`
	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(query), threshold, limit)
	if err != nil {
		return nil, store.DatabaseError(err, "matching vectors")
	}
	defer func() { _ = rows.Close() }()

	matches := []store.Match{}
	for rows.Next() {
		var m store.Match
		if err := rows.Scan(&m.ID, &m.Similarity, &m.Fingerprint); err != nil {
			return nil, store.DatabaseError(err, "scanning match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, store.DatabaseError(err, "iterating matches")
	}
	return matches, nil
}

// SetNowFunc overrides the time source (for testing).
func (s *LocationStore) SetNowFunc(fn func() time.Time) {
	s.nowFunc = fn
}

func (s *LocationStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*store.Entity, error) {
	var (
		e              store.Entity
		vec            pgvector.Vector
		lat, lng       sql.NullFloat64
		images, visits []byte
	)
	err := row.Scan(&e.ID, &e.Text, &vec, &e.Fingerprint, &e.ModelVersion, &e.Payload.Title, &e.Payload.Category,
		&lat, &lng, &images, &visits, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, store.DatabaseError(err, "scanning location")
	}

	e.Vector = vec.Slice()
	if lat.Valid {
		e.Payload.Latitude = &lat.Float64
	}
	if lng.Valid {
		e.Payload.Longitude = &lng.Float64
	}
	if err := json.Unmarshal(images, &e.Payload.ImageURLs); err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeStorePayloadDecodeFailure, "decoding image_urls for %s", e.ID)
	}
	if err := json.Unmarshal(visits, &e.Payload.VisitDates); err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeStorePayloadDecodeFailure, "decoding visit_dates for %s", e.ID)
	}
	return &e, nil
}

func encodeLists(p store.Payload) (images, visits string, err error) {
	imgs := p.ImageURLs
	if imgs == nil {
		imgs = []string{}
	}
	vs := p.VisitDates
	if vs == nil {
		vs = []string{}
	}
	ib, err := json.Marshal(imgs)
	if err != nil {
		return "", "", locuserr.Wrapf(err, locuserr.CodeStorePayloadEncodeFailure, "encoding image_urls")
	}
	vb, err := json.Marshal(vs)
	if err != nil {
		return "", "", locuserr.Wrapf(err, locuserr.CodeStorePayloadEncodeFailure, "encoding visit_dates")
	}
	return string(ib), string(vb), nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
