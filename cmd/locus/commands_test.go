// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/locus-dev/locus/internal/config"
	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

func addLocation(t *testing.T, cfg, description string, extra ...string) locationView {
	t.Helper()
	args := append([]string{"add", "--config", cfg, "-o", "json", description}, extra...)
	out, err := execute(t, "", args...)
	require.NoError(t, err, out)
	var v locationView
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestAddAndGet(t *testing.T) {
	cfg := testConfig(t)

	added := addLocation(t, cfg, "a small shrine hidden behind the bamboo grove",
		"--title", "Bamboo shrine", "--category", "temple", "--lat", "35.0169", "--lng", "135.6717",
		"--visited", "2024-04-02", "--visited", "2024-11-20")
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, "Bamboo shrine", added.Title)
	require.NotNil(t, added.Latitude)
	assert.InDelta(t, 35.0169, *added.Latitude, 1e-9)
	assert.Equal(t, []string{"2024-04-02", "2024-11-20"}, added.VisitDates)
	assert.Contains(t, added.ModelVersion, "hashing/")

	out, err := execute(t, "", "get", "--config", cfg, "-o", "yaml", added.ID)
	require.NoError(t, err, out)
	var got []locationView
	require.NoError(t, yaml.Unmarshal([]byte(out), &got), out)
	require.Len(t, got, 1)
	assert.Equal(t, added.ID, got[0].ID)
	assert.Equal(t, "a small shrine hidden behind the bamboo grove", got[0].Description)
	assert.False(t, got[0].Stale)
}

func TestAdd_TableOutput(t *testing.T) {
	cfg := testConfig(t)
	out, err := execute(t, "", "add", "--config", cfg, "harbour at dawn")
	require.NoError(t, err)
	assert.Contains(t, out, "Added location ")
}

func TestAdd_BlankDescription(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, "", "add", "--config", cfg, "   ")
	require.Error(t, err)
	assert.True(t, locuserr.IsInvalidInput(err), "got %s", locuserr.CodeOf(err))
}

func TestSearch(t *testing.T) {
	cfg := testConfig(t)
	shrine := addLocation(t, cfg, "a small shrine hidden behind the bamboo grove")
	addLocation(t, cfg, "busy ramen shop near the station")

	out, err := execute(t, "", "search", "--config", cfg, "-o", "json", "a", "small", "shrine", "hidden", "behind", "the", "bamboo", "grove")
	require.NoError(t, err, out)
	var hits []hitView
	require.NoError(t, json.Unmarshal([]byte(out), &hits), out)
	require.NotEmpty(t, hits)
	assert.Equal(t, shrine.ID, hits[0].Location.ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Similarity, hits[i].Similarity)
	}

	out, err = execute(t, "", "search", "--config", cfg, "--threshold", "-1", "--limit", "1", "-o", "json", "anything")
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	assert.Len(t, hits, 1)
}

func TestSearch_TableOutput(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "", "search", "--config", cfg, "nothing stored yet")
	require.NoError(t, err)
	assert.Contains(t, out, "No matches.")

	addLocation(t, cfg, "old lighthouse on the cliff", "--title", "Lighthouse")
	out, err = execute(t, "", "search", "--config", cfg, "old lighthouse on the cliff")
	require.NoError(t, err)
	assert.Contains(t, out, "SIMILARITY")
	assert.Contains(t, out, "Lighthouse")
}

func TestSearch_InvalidArguments(t *testing.T) {
	cfg := testConfig(t)

	_, err := execute(t, "", "search", "--config", cfg, "--limit", "21", "x")
	require.Error(t, err)
	assert.True(t, locuserr.IsInvalidInput(err))

	_, err = execute(t, "", "search", "--config", cfg, "--threshold", "2", "x")
	require.Error(t, err)
	assert.True(t, locuserr.IsInvalidInput(err))

	_, err = execute(t, "", "search", "--config", cfg, "-o", "csv", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestUpdateAndDelete(t *testing.T) {
	cfg := testConfig(t)
	loc := addLocation(t, cfg, "windy beach with dunes", "--category", "beach")

	out, err := execute(t, "", "update", "--config", cfg, "-o", "json", "--category", "mountain", loc.ID, "mountain hut above the clouds")
	require.NoError(t, err, out)
	var updated locationView
	require.NoError(t, json.Unmarshal([]byte(out), &updated))
	assert.Equal(t, loc.ID, updated.ID)
	assert.Equal(t, "mountain", updated.Category)
	assert.Equal(t, "mountain hut above the clouds", updated.Description)

	out, err = execute(t, "", "delete", "--config", cfg, loc.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted location "+loc.ID)

	_, err = execute(t, "", "get", "--config", cfg, loc.ID)
	require.Error(t, err)
	assert.True(t, locuserr.IsNotFound(err))

	_, err = execute(t, "", "update", "--config", cfg, loc.ID, "x")
	require.Error(t, err)
	assert.True(t, locuserr.IsNotFound(err))
}

func TestList(t *testing.T) {
	cfg := testConfig(t)
	addLocation(t, cfg, "ramen shop", "--category", "food")
	addLocation(t, cfg, "castle ruins", "--category", "history")

	out, err := execute(t, "", "list", "--config", cfg, "-o", "json", "--category", "food")
	require.NoError(t, err, out)
	var locs []locationView
	require.NoError(t, json.Unmarshal([]byte(out), &locs))
	require.Len(t, locs, 1)
	assert.Equal(t, "ramen shop", locs[0].Description)

	out, err = execute(t, "", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "castle ruins")
}

func TestReindex(t *testing.T) {
	cfg := testConfig(t)
	addLocation(t, cfg, "tea house in the old quarter")

	out, err := execute(t, "", "reindex", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 1, reindexed 0, skipped 1, failed 0")

	out, err = execute(t, "", "reindex", "--config", cfg, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 1, reindexed 1, skipped 0, failed 0")
}

func TestReindex_AfterModelChange(t *testing.T) {
	cfg := testConfig(t)
	addLocation(t, cfg, "tea house in the old quarter")

	t.Setenv("LOCUS_ENCODER_VERSION", "2")

	out, err := execute(t, "", "list", "--config", cfg, "-o", "json")
	require.NoError(t, err)
	var locs []locationView
	require.NoError(t, json.Unmarshal([]byte(out), &locs))
	require.Len(t, locs, 1)
	assert.True(t, locs[0].Stale)

	out, err = execute(t, "", "reindex", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "reindexed 1")
}

func TestWire(t *testing.T) {
	path := testConfig(t)
	cfg, err := config.LoadWithSecrets(path, newMockSecretStore())
	require.NoError(t, err)

	app, err := Wire(cfg)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	assert.Equal(t, 64, app.Store.Dimensions())
	assert.Equal(t, 20, app.Search.MaxLimit())
	assert.False(t, app.Encoder.Loaded(), "wiring must not load the model")

	locs, err := app.Locations.List(context.Background(), store.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestWire_UnknownBackend(t *testing.T) {
	path := testConfig(t)
	cfg, err := config.LoadWithSecrets(path, newMockSecretStore())
	require.NoError(t, err)
	cfg.Storage.Backend = "cassandra"

	_, err = Wire(cfg)
	require.Error(t, err)
	assert.True(t, locuserr.HasCode(err, locuserr.CodeStoreBackendUnsupported), "got %s", locuserr.CodeOf(err))
}
