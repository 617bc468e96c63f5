// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newLocationStore)
}

func newLocationStore(cfg store.Config) (store.EntityStore, error) {
	path := cfg.Path
	if path == "" {
		path = "locus.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, locuserr.Wrap(err, locuserr.CodeStoreBackendConfigInvalid,
				"creating database directory", locuserr.FieldBackend("sqlite"))
		}
	}
	return NewLocationStore(path, cfg.Dimensions)
}
