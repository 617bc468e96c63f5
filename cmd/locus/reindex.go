// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-encode stale locations",
		Long: "Re-encode every location whose vector no longer matches its description " +
			"or the configured encoder model. --force re-encodes everything.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			force, _ := cmd.Flags().GetBool("force")
			report, err := app.Locations.Reindex(cmd.Context(), force)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d, reindexed %d, skipped %d, failed %d in %s\n",
				report.Scanned, report.Reindexed, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().Bool("force", false, "re-encode every location")
	return cmd
}
