// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

//go:embed locus.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/locus/locus.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", locuserr.Wrapf(err, locuserr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "locus", FileName), nil
}

// BootstrapConfig writes the commented default config to DefaultConfigPath
// when no config file exists in any of SearchPaths. It returns the path
// written, or "" when nothing was written. Failures are logged, not
// returned.
func BootstrapConfig() string {
	for _, dir := range SearchPaths() {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return ""
		}
	}

	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}
	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
