// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// locationView is the printed form of a location.
type locationView struct {
	ID           string    `json:"id" yaml:"id"`
	Description  string    `json:"description" yaml:"description"`
	Title        string    `json:"title,omitempty" yaml:"title,omitempty"`
	Category     string    `json:"category,omitempty" yaml:"category,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	ImageURLs    []string  `json:"image_urls,omitempty" yaml:"image_urls,omitempty"`
	VisitDates   []string  `json:"visit_dates,omitempty" yaml:"visit_dates,omitempty"`
	ModelVersion string    `json:"model_version" yaml:"model_version"`
	Stale        bool      `json:"stale" yaml:"stale"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

type hitView struct {
	Similarity float64      `json:"similarity" yaml:"similarity"`
	Location   locationView `json:"location" yaml:"location"`
}

func newLocationView(e *store.Entity, stale bool) locationView {
	return locationView{
		ID:           e.ID,
		Description:  e.Text,
		Title:        e.Payload.Title,
		Category:     e.Payload.Category,
		Latitude:     e.Payload.Latitude,
		Longitude:    e.Payload.Longitude,
		ImageURLs:    e.Payload.ImageURLs,
		VisitDates:   e.Payload.VisitDates,
		ModelVersion: e.ModelVersion,
		Stale:        stale,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "table", "json", "yaml":
		return format, nil
	default:
		return "", locuserr.Errorf(locuserr.CodeCLIInputInvalid, "unknown output format %q (want table, json or yaml)", format)
	}
}

// writeStructured prints v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	var err error
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(v)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return locuserr.Wrapf(err, locuserr.CodeCLIOutputFailure, "writing %s output", format)
	}
	return nil
}

func writeLocations(w io.Writer, format string, locs []locationView) error {
	if format != "table" {
		return writeStructured(w, format, locs)
	}
	if len(locs) == 0 {
		_, err := fmt.Fprintln(w, "No locations.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tSTALE\tDESCRIPTION")
	for _, l := range locs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", l.ID, l.Category, l.Title, l.Stale, truncate(l.Description, 60))
	}
	return tw.Flush()
}

func writeHits(w io.Writer, format string, hits []hitView) error {
	if format != "table" {
		return writeStructured(w, format, hits)
	}
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "No matches.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SIMILARITY\tID\tTITLE\tDESCRIPTION")
	for _, h := range hits {
		_, _ = fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\n", h.Similarity, h.Location.ID, h.Location.Title, truncate(h.Location.Description, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
