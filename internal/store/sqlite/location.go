// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/locus-dev/locus/internal/store"
	"github.com/locus-dev/locus/internal/vecmath"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface checks.
var (
	_ store.EntityStore = (*LocationStore)(nil)
	_ store.Matcher     = (*LocationStore)(nil)
)

// LocationStore implements store.EntityStore backed by SQLite. Vectors are
// stored as sqlite-vec float32 blobs in the same row as their text, so one
// statement swaps both.
type LocationStore struct {
	db         *sql.DB
	dimensions int
	nowFunc    func() time.Time
}

// NewLocationStore opens (or creates) a SQLite database at dbPath and
// initialises the locations table.
func NewLocationStore(dbPath string, dimensions int) (*LocationStore, error) {
	// _txlock=immediate takes the write lock at BEGIN so concurrent writers
	// wait on busy_timeout instead of failing a lock upgrade.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, store.DatabaseError(err, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, store.DatabaseError(err, "pinging sqlite db")
	}

	if err := migrateLocations(db); err != nil {
		_ = db.Close()
		return nil, locuserr.Wrapf(err, locuserr.CodeStoreMigrationFailure, "migrating locations table")
	}

	return &LocationStore{db: db, dimensions: dimensions, nowFunc: time.Now}, nil
}

func migrateLocations(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS locations (
	id            TEXT PRIMARY KEY,
	description   TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	fingerprint   TEXT NOT NULL,
	model_version TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	latitude      REAL,
	longitude     REAL,
	image_urls    TEXT NOT NULL DEFAULT '[]',
	visit_dates   TEXT NOT NULL DEFAULT '[]',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_locations_category ON locations(category, created_at);`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating locations table: %w", err)
	}
	return nil
}

func (s *LocationStore) Dimensions() int { return s.dimensions }

// Upsert inserts or replaces a location inside a single transaction.
func (s *LocationStore) Upsert(ctx context.Context, e *store.Entity) error {
	if err := e.Validate(s.dimensions); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(e.Vector)
	if err != nil {
		return locuserr.Wrapf(err, locuserr.CodeStoreVectorEncodeFailure, "serializing embedding")
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
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q,
			id, e.Text, blob, e.Fingerprint, e.ModelVersion,
			e.Payload.Title, e.Payload.Category, nullFloat(e.Payload.Latitude), nullFloat(e.Payload.Longitude),
			images, visits, formatTime(now), formatTime(now),
		); err != nil {
			return store.DatabaseError(err, "inserting location")
		}
	} else {
		var created, fingerprint string
		err := tx.QueryRowContext(ctx, `SELECT created_at, fingerprint FROM locations WHERE id = ?`, id).Scan(&created, &fingerprint)
		if errors.Is(err, sql.ErrNoRows) {
			return store.NotFound(id)
		}
		if err != nil {
			return store.DatabaseError(err, "reading location "+id)
		}
		if e.ExpectFingerprint != "" && fingerprint != e.ExpectFingerprint {
			return store.Conflict(id)
		}
		if createdAt, err = parseTime(created); err != nil {
			return store.DatabaseError(err, "parsing created_at")
		}

		const q = `UPDATE locations SET
description = ?, embedding = ?, fingerprint = ?, model_version = ?, title = ?, category = ?,
latitude = ?, longitude = ?, image_urls = ?, visit_dates = ?, updated_at = ?
WHERE id = ?`
		if _, err := tx.ExecContext(ctx, q,
			e.Text, blob, e.Fingerprint, e.ModelVersion, e.Payload.Title, e.Payload.Category,
			nullFloat(e.Payload.Latitude), nullFloat(e.Payload.Longitude), images, visits, formatTime(now),
			id,
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
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM locations WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *LocationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
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
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + selectColumns + ` FROM locations`
	args := []any{}
	if category := opts.CategoryFilter(); category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
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

// ScanAll streams (id, vector, fingerprint) rows in id order. The query runs when the
// sequence is first iterated, so every range over it sees current state.
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
				rec  store.VectorRecord
				blob []byte
			)
			if err := rows.Scan(&rec.ID, &blob, &rec.Fingerprint); err != nil {
				yield(store.VectorRecord{}, store.DatabaseError(err, "scanning vector row"))
				return
			}
			if rec.Vector, err = vecmath.Decode(blob); err != nil {
				yield(store.VectorRecord{}, locuserr.Wrapf(err, locuserr.CodeStoreVectorDecodeFailure, "decoding vector %s", rec.ID))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(store.VectorRecord{}, store.DatabaseError(err, "iterating vectors"))
		}
	}
}

// Match ranks rows inside SQLite with vec_distance_cosine. Stored vectors
// are unit length, so 1 - distance is the cosine similarity. The fingerprint
// comes from the same row read as the embedding.
func (s *LocationStore) Match(ctx context.Context, query []float32, threshold float64, limit int) ([]store.Match, error) {
	if err := store.CheckMatchArgs(query, s.dimensions, threshold, limit); err != nil {
		return nil, err
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeStoreVectorEncodeFailure, "serializing query vector")
	}

	const q = `SELECT id, similarity, fingerprint FROM (
	SELECT id, fingerprint, MIN(1.0, MAX(-1.0, 1.0 - vec_distance_cosine(embedding, ?))) AS similarity
	FROM locations
)
WHERE similarity >= ?
ORDER BY similarity DESC, id ASC
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, blob, threshold, limit)
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

// Close closes the underlying database connection.
func (s *LocationStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*store.Entity, error) {
	var (
		e                  store.Entity
		blob               []byte
		lat, lng           sql.NullFloat64
		images, visits     string
		createdAt, updated string
	)
	err := row.Scan(&e.ID, &e.Text, &blob, &e.Fingerprint, &e.ModelVersion, &e.Payload.Title, &e.Payload.Category,
		&lat, &lng, &images, &visits, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, store.DatabaseError(err, "scanning location")
	}

	if e.Vector, err = vecmath.Decode(blob); err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeStoreVectorDecodeFailure, "decoding vector %s", e.ID)
	}
	if lat.Valid {
		e.Payload.Latitude = &lat.Float64
	}
	if lng.Valid {
		e.Payload.Longitude = &lng.Float64
	}
	if err := json.Unmarshal([]byte(images), &e.Payload.ImageURLs); err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeStorePayloadDecodeFailure, "decoding image_urls for %s", e.ID)
	}
	if err := json.Unmarshal([]byte(visits), &e.Payload.VisitDates); err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeStorePayloadDecodeFailure, "decoding visit_dates for %s", e.ID)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, store.DatabaseError(err, "parsing created_at")
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, store.DatabaseError(err, "parsing updated_at")
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

// timeLayout is fixed width so created_at sorts lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
