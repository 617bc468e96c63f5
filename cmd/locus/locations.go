// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/store"
)

func addPayloadFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "location title")
	cmd.Flags().String("category", "", "location category")
	cmd.Flags().Float64("lat", 0, "latitude in degrees")
	cmd.Flags().Float64("lng", 0, "longitude in degrees")
	cmd.Flags().StringSlice("image", nil, "image URL (repeatable)")
	cmd.Flags().StringSlice("visited", nil, "visit date (repeatable)")
}

func requestFromFlags(cmd *cobra.Command, text string) index.Request {
	f := cmd.Flags()
	req := index.Request{Text: text}
	req.Payload.Title, _ = f.GetString("title")
	req.Payload.Category, _ = f.GetString("category")
	if f.Changed("lat") {
		lat, _ := f.GetFloat64("lat")
		req.Payload.Latitude = &lat
	}
	if f.Changed("lng") {
		lng, _ := f.GetFloat64("lng")
		req.Payload.Longitude = &lng
	}
	req.Payload.ImageURLs, _ = f.GetStringSlice("image")
	req.Payload.VisitDates, _ = f.GetStringSlice("visited")
	return req
}

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Register a location and index its description",
		Args:  cobra.ExactArgs(1),
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

			e, err := app.Locations.Create(cmd.Context(), requestFromFlags(cmd, args[0]))
			if err != nil {
				return err
			}
			if format == "table" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added location %s\n", e.ID)
				return err
			}
			return writeStructured(cmd.OutOrStdout(), format, newLocationView(e, false))
		},
	}
	addPayloadFlags(cmd)
	addOutputFlag(cmd)
	return cmd
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id> <description>",
		Short: "Replace a location and re-index its description",
		Long:  "Replace the description and payload of a location. Payload fields not given are cleared.",
		Args:  cobra.ExactArgs(2),
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

			e, err := app.Locations.Update(cmd.Context(), args[0], requestFromFlags(cmd, args[1]))
			if err != nil {
				return err
			}
			if format == "table" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated location %s\n", e.ID)
				return err
			}
			return writeStructured(cmd.OutOrStdout(), format, newLocationView(e, false))
		},
	}
	addPayloadFlags(cmd)
	addOutputFlag(cmd)
	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a location",
		Args:  cobra.ExactArgs(1),
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

			e, err := app.Locations.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeLocations(cmd.OutOrStdout(), format, []locationView{newLocationView(e, app.Locations.Stale(e))})
		},
	}
	addOutputFlag(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if err := app.Locations.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted location %s\n", args[0])
			return err
		},
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List locations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			opts := store.ListOpts{}
			opts.Category, _ = cmd.Flags().GetString("category")
			opts.Limit, _ = cmd.Flags().GetInt("limit")
			opts.Offset, _ = cmd.Flags().GetInt("offset")

			entities, err := app.Locations.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			views := make([]locationView, 0, len(entities))
			stale := 0
			for _, e := range entities {
				v := newLocationView(e, app.Locations.Stale(e))
				if v.Stale {
					stale++
				}
				views = append(views, v)
			}
			if stale > 0 {
				slog.Warn("some locations are stale; run `locus reindex`", "stale", stale)
			}
			return writeLocations(cmd.OutOrStdout(), format, views)
		},
	}
	cmd.Flags().String("category", "", `category filter ("all" or empty lists every category)`)
	cmd.Flags().Int("limit", 50, "maximum number of locations")
	cmd.Flags().Int("offset", 0, "number of locations to skip")
	addOutputFlag(cmd)
	return cmd
}
