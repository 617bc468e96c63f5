// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package index

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// ReindexReport summarizes one Reindex pass.
type ReindexReport struct {
	Scanned   int           `json:"scanned"`
	Reindexed int           `json:"reindexed"`
	Skipped   int           `json:"skipped"` // fresh, or changed during the pass
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Reindex re-encodes every stale location, or every location when force is
// set. Each entity is replaced atomically and only if its text is still the
// text that was encoded, so a concurrent Update always wins. Failures are
// counted and the pass continues. A non-nil error means at least one entity failed.
func (s *Service) Reindex(ctx context.Context, force bool) (ReindexReport, error) {
	start := time.Now()
	var report ReindexReport

	entities, err := s.store.List(ctx, store.ListOpts{})
	if err != nil {
		s.metrics.ObserveIndexOperation("reindex", err)
		return report, err
	}

	var errs []error
	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report.Scanned++
		if !force && !s.Stale(e) {
			report.Skipped++
			continue
		}

		fresh, err := s.encode(ctx, e.Text)
		if err == nil {
			fresh.ID = e.ID
			fresh.Payload = e.Payload
			fresh.ExpectFingerprint = e.Fingerprint
			err = s.store.Upsert(ctx, fresh)
		}
		switch {
		case err == nil:
			report.Reindexed++
		case locuserr.IsNotFound(err), locuserr.IsConflict(err):
			// deleted or rewritten by a concurrent update
			report.Skipped++
		default:
			report.Failed++
			errs = append(errs, locuserr.With(err, locuserr.FieldEntityID(e.ID)))
			slog.Warn("reindex failed", "id", e.ID, "error", err)
		}
	}
	report.Duration = time.Since(start)

	slog.Info("reindex finished",
		"scanned", report.Scanned, "reindexed", report.Reindexed,
		"skipped", report.Skipped, "failed", report.Failed, "duration", report.Duration)

	if len(errs) > 0 {
		err := locuserr.Wrapf(errors.Join(errs...), locuserr.CodeIndexReindexFailure,
			"reindex: %d of %d locations failed", report.Failed, report.Scanned)
		s.metrics.ObserveIndexOperation("reindex", err)
		return report, err
	}
	s.metrics.ObserveIndexOperation("reindex", nil)
	return report, nil
}
