// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package encoder

import (
	"context"
	"sort"
	"sync"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// LoadFunc loads a Model for cfg. It is called at most once per successful
// load; ctx carries the load timeout, not any single caller's deadline.
type LoadFunc func(ctx context.Context, cfg Config) (Model, error)

var (
	variants   = map[string]LoadFunc{}
	variantsMu sync.RWMutex
)

// RegisterVariant registers the loader for a named encoder variant.
// Variant packages call this from init(). This function is goroutine-safe.
func RegisterVariant(name string, load LoadFunc) {
	variantsMu.Lock()
	defer variantsMu.Unlock()
	variants[name] = load
}

// Variants returns the registered variant names in sorted order.
func Variants() []string {
	variantsMu.RLock()
	defer variantsMu.RUnlock()
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupVariant(name string) (LoadFunc, error) {
	variantsMu.RLock()
	load, ok := variants[name]
	variantsMu.RUnlock()
	if !ok {
		return nil, locuserr.New(locuserr.CodeEncoderVariantUnsupported,
			"unsupported encoder variant: "+name, locuserr.Field("variant", name))
	}
	return load, nil
}
