// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package secrets

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI splits keyring://service/key. The key may contain slashes.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", locuserr.Errorf(locuserr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(uri, keyringScheme), "/")
	if !ok || service == "" || key == "" {
		return "", "", locuserr.Errorf(locuserr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return service, key, nil
}

// Resolve returns value unchanged unless it is a keyring URI, in which case
// it returns the referenced secret.
func Resolve(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}
	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Get(service, key)
	if err != nil {
		return "", locuserr.Wrapf(err, locuserr.CodeSecretResolveFailure, "resolving %q", value)
	}
	return secret, nil
}

// ResolveViperKeys replaces keyring URIs stored under keys with their
// secrets. Every key is attempted; all failures are returned together.
func ResolveViperKeys(v *viper.Viper, store Store, keys ...string) error {
	var errs []error
	for _, key := range keys {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}
		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, locuserr.With(err, locuserr.Field("config_key", key)))
			continue
		}
		v.Set(key, resolved)
	}
	return errors.Join(errs...)
}
