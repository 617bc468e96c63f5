// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Compile-time interface check.
var _ Store = (*KeyringStore)(nil)

// KeyringStore implements Store on the OS keyring (Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows).
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Set(service, key, value string) error {
	if err := checkRef(service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return locuserr.Wrapf(err, locuserr.CodeSecretKeyringFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (s *KeyringStore) Get(service, key string) (string, error) {
	if err := checkRef(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", locuserr.Errorf(locuserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", locuserr.Wrapf(err, locuserr.CodeSecretKeyringFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef(service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return locuserr.Errorf(locuserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return locuserr.Wrapf(err, locuserr.CodeSecretKeyringFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

func checkRef(service, key string) error {
	if service == "" || key == "" {
		return locuserr.Errorf(locuserr.CodeSecretInvalidInput,
			"secret service and key must not be empty (got %q/%q)", service, key)
	}
	return nil
}
