// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	prev := logOutput
	logOutput = io.Discard
	t.Cleanup(func() { logOutput = prev })

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(bytes.NewBufferString(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// testConfig writes a config that keeps every command inside temp
// directories: a fresh sqlite file and the offline hashing encoder.
func testConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "locus.yaml")
	content := fmt.Sprintf(`storage:
  backend: sqlite
  path: %q
encoder:
  variant: hashing
  dimensions: 64
search:
  default_threshold: 0.5
  default_limit: 5
  max_limit: 20
`, filepath.Join(dir, "locus.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "add", "update", "search", "reindex", "secret", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "locus dev")
}

func TestRootCommand_InvalidLogFormat(t *testing.T) {
	_, err := execute(t, "", "--log-format", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestServeCommand_MissingConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := execute(t, "", "serve", "--config", "/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestServeCommand_InvalidListen(t *testing.T) {
	cfg := testConfig(t)
	_, err := execute(t, "", "serve", "--config", cfg, "--listen", "127.0.0.1:-1")
	assert.Error(t, err)
}
