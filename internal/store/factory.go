// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package store

import (
	"sort"
	"sync"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Factory opens an EntityStore for a backend.
type Factory func(cfg Config) (EntityStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg Config) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the store selected by cfg.
func Open(cfg Config) (EntityStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, locuserr.New(locuserr.CodeStoreBackendUnsupported,
			"unsupported storage backend: "+backend, locuserr.FieldBackend(backend))
	}

	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return factory(cfg)
}
