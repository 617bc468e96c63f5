// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locus-dev/locus/internal/secrets"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

var _ secrets.Store = (*mockSecretStore)(nil)

// mockSecretStore is an in-memory secrets.Store keyed by service/key.
type mockSecretStore struct {
	data map[string]string
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{data: make(map[string]string)}
}

func (m *mockSecretStore) Set(service, key, value string) error {
	m.data[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Get(service, key string) (string, error) {
	v, ok := m.data[service+"/"+key]
	if !ok {
		return "", locuserr.Errorf(locuserr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.data[service+"/"+key]; !ok {
		return locuserr.Errorf(locuserr.CodeSecretNotFound, "not found")
	}
	delete(m.data, service+"/"+key)
	return nil
}

func useMockSecrets(t *testing.T) *mockSecretStore {
	t.Helper()
	m := newMockSecretStore()
	prev := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return m }
	t.Cleanup(func() { secretStoreFactory = prev })
	return m
}

func TestSecretSet(t *testing.T) {
	m := useMockSecrets(t)

	out, err := execute(t, "sk-test-123\n", "secret", "set", "openai")
	require.NoError(t, err)
	assert.Contains(t, out, "keyring://locus/openai")
	assert.Equal(t, "sk-test-123", m.data["locus/openai"])
	assert.NotContains(t, out, "sk-test-123")
}

func TestSecretSet_NoTrailingNewline(t *testing.T) {
	m := useMockSecrets(t)

	_, err := execute(t, "postgres://u:p@db/locus", "secret", "set", "pg")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/locus", m.data["locus/pg"])
}

func TestSecretSet_EmptyValue(t *testing.T) {
	useMockSecrets(t)

	_, err := execute(t, "\n", "secret", "set", "openai")
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeCLIInputInvalid))
}

func TestSecretDelete(t *testing.T) {
	m := useMockSecrets(t)
	m.data["locus/openai"] = "sk"

	out, err := execute(t, "", "secret", "delete", "openai")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret: openai")
	assert.Empty(t, m.data)
}

func TestSecretDelete_NotFound(t *testing.T) {
	useMockSecrets(t)

	_, err := execute(t, "", "secret", "delete", "missing")
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeSecretNotFound))
	assert.Contains(t, err.Error(), `secret "missing" not found`)
}

func TestConfigSecretsResolvedThroughFactory(t *testing.T) {
	m := useMockSecrets(t)
	m.data["locus/openai"] = "sk-from-keyring"

	path := testConfig(t)
	t.Setenv("LOCUS_ENCODER_VARIANT", "openai")
	t.Setenv("LOCUS_ENCODER_API_KEY", "keyring://locus/openai")

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-keyring", cfg.Encoder.APIKey)
}
