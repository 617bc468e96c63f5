// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/locus-dev/locus/internal/search"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Find locations by meaning",
		Long:  "Encode the query and list stored locations whose similarity is at least the threshold, best first.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			q := search.Query{
				Text:      strings.Join(args, " "),
				Threshold: app.Config.Search.DefaultThreshold,
				Limit:     app.Config.Search.DefaultLimit,
			}
			if cmd.Flags().Changed("threshold") {
				q.Threshold, _ = cmd.Flags().GetFloat64("threshold")
			}
			if cmd.Flags().Changed("limit") {
				q.Limit, _ = cmd.Flags().GetInt("limit")
			}

			hits, err := app.Search.SearchLocations(cmd.Context(), q)
			if err != nil {
				return err
			}
			views := make([]hitView, 0, len(hits))
			for _, h := range hits {
				views = append(views, hitView{
					Similarity: h.Similarity,
					Location:   newLocationView(h.Location, app.Locations.Stale(h.Location)),
				})
			}
			return writeHits(cmd.OutOrStdout(), format, views)
		},
	}
	cmd.Flags().Float64("threshold", search.DefaultThreshold, "minimum cosine similarity, inclusive (default from config)")
	cmd.Flags().Int("limit", search.DefaultLimit, "maximum number of results (default from config)")
	addOutputFlag(cmd)
	return cmd
}
