// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/locus-dev/locus/internal/config"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// logOutput is where the CLI logger writes. Tests redirect it.
var logOutput io.Writer = os.Stderr

// NewRootCmd creates the root locus command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "locus",
		Short:         "Locus: find places by what they are like",
		Long:          "Locus indexes free-text descriptions of places and finds them again by meaning.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv()
			return setupLogging(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newGetCmd(),
		newDeleteCmd(),
		newListCmd(),
		newSearchCmd(),
		newReindexCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

func setupLogging(cmd *cobra.Command) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("log-format")

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	var h slog.Handler
	switch format {
	case "text", "":
		h = slog.NewTextHandler(logOutput, opts)
	case "json":
		h = slog.NewJSONHandler(logOutput, opts)
	default:
		return locuserr.Errorf(locuserr.CodeCLIInputInvalid, "unknown log format %q (want text or json)", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}
