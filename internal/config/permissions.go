// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// groupOrOtherRead are the mode bits that expose a file beyond its owner.
const groupOrOtherRead fs.FileMode = 0o044

// WarnInsecurePermissions logs a warning when the config file at path can
// be read by group or other users. The config may carry an inline encoder
// API key or database DSN. It never fails startup.
func WarnInsecurePermissions(path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}
	if perm := info.Mode().Perm(); perm&groupOrOtherRead != 0 {
		slog.Warn("config file is readable by other users and may contain credentials",
			"path", path, "mode", perm, "recommended", "0600")
	}
}
