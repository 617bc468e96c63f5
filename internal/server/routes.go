// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/locus-dev/locus/internal/index"
	"github.com/locus-dev/locus/internal/search"
	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/locus-dev/locus/pkg/health"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-location",
		Method:        http.MethodPost,
		Path:          "/api/v1/locations",
		Summary:       "Register a location and index its description",
		Tags:          []string{"locations"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateLocation)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-locations",
		Method:      http.MethodGet,
		Path:        "/api/v1/locations",
		Summary:     "List locations, newest first",
		Tags:        []string{"locations"},
	}, s.handleListLocations)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-location",
		Method:      http.MethodGet,
		Path:        "/api/v1/locations/{id}",
		Summary:     "Get a location",
		Tags:        []string{"locations"},
	}, s.handleGetLocation)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-location",
		Method:      http.MethodPut,
		Path:        "/api/v1/locations/{id}",
		Summary:     "Replace a location and re-index its description",
		Tags:        []string{"locations"},
	}, s.handleUpdateLocation)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-location",
		Method:        http.MethodDelete,
		Path:          "/api/v1/locations/{id}",
		Summary:       "Delete a location",
		Tags:          []string{"locations"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteLocation)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-locations",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Find locations by meaning",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindex",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/reindex",
		Summary:     "Re-encode stale locations",
		Tags:        []string{"admin"},
	}, s.handleReindex)
}

// --- Request/Response types for huma ---

// HealthBody is the JSON body of the health endpoint.
type HealthBody struct {
	Status  string        `json:"status" example:"ok" doc:"ok, or degraded while the encoder is failing"`
	Encoder EncoderHealth `json:"encoder"`
}

// EncoderHealth describes the shared encoder. Reading it never triggers a
// model load.
type EncoderHealth struct {
	Model     string `json:"model" doc:"variant/model@version/dimensions"`
	Loaded    bool   `json:"loaded"`
	LastError string `json:"last_error,omitempty"`
	health.Metrics
}

type healthOutput struct {
	Body HealthBody
}

// Location is the wire form of a stored location.
type Location struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	ImageURLs    []string  `json:"image_urls"`
	VisitDates   []string  `json:"visit_dates"`
	ModelVersion string    `json:"model_version"`
	Stale        bool      `json:"stale" doc:"true when the stored vector no longer matches the text or the configured model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LocationInput is the writable part of a location.
type LocationInput struct {
	Description string   `json:"description" minLength:"1" maxLength:"10000" doc:"Free-text description that is indexed for search"`
	Title       string   `json:"title,omitempty" maxLength:"200"`
	Category    string   `json:"category,omitempty" maxLength:"100"`
	Latitude    *float64 `json:"latitude,omitempty" minimum:"-90" maximum:"90"`
	Longitude   *float64 `json:"longitude,omitempty" minimum:"-180" maximum:"180"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	VisitDates  []string `json:"visit_dates,omitempty"`
}

func (in LocationInput) request() index.Request {
	return index.Request{
		Text: in.Description,
		Payload: store.Payload{
			Title:      in.Title,
			Category:   in.Category,
			Latitude:   in.Latitude,
			Longitude:  in.Longitude,
			ImageURLs:  in.ImageURLs,
			VisitDates: in.VisitDates,
		},
	}
}

type createLocationInput struct {
	Body LocationInput
}

type updateLocationInput struct {
	ID   string `path:"id"`
	Body LocationInput
}

type locationIDInput struct {
	ID string `path:"id"`
}

type locationOutput struct {
	Body Location
}

type listLocationsInput struct {
	Category string `query:"category" doc:"Category filter; empty or \"all\" lists every category"`
	Limit    int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	Offset   int    `query:"offset" minimum:"0"`
}

type listLocationsOutput struct {
	Body struct {
		Locations []Location `json:"locations"`
	}
}

type searchInput struct {
	Q         string `query:"q" required:"true" minLength:"1" doc:"Free-text query"`
	Threshold string `query:"threshold" doc:"Inclusive minimum cosine similarity in [-1, 1]; server default when omitted"`
	Limit     int    `query:"limit" minimum:"0" doc:"Maximum results; server default when omitted"`
}

// SearchHit is one ranked result.
type SearchHit struct {
	ID         string   `json:"id"`
	Similarity float64  `json:"similarity"`
	Location   Location `json:"location"`
}

type searchOutput struct {
	Body struct {
		Query     string      `json:"query"`
		Threshold float64     `json:"threshold"`
		Limit     int         `json:"limit"`
		Results   []SearchHit `json:"results"`
	}
}

type reindexInput struct {
	Force bool `query:"force" doc:"Re-encode every location, not only stale ones"`
}

type reindexOutput struct {
	Body index.ReindexReport
}

// --- Handlers ---

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	enc := s.services.encoder
	out := &healthOutput{}
	out.Body.Encoder = EncoderHealth{
		Model:     enc.Info().ID(),
		Loaded:    enc.Loaded(),
		LastError: enc.LastError(),
		Metrics:   enc.Health(),
	}
	out.Body.Status = "ok"
	if !out.Body.Encoder.Available {
		out.Body.Status = "degraded"
	}
	return out, nil
}

func (s *Server) handleCreateLocation(ctx context.Context, input *createLocationInput) (*locationOutput, error) {
	e, err := s.services.locations.Create(ctx, input.Body.request())
	if err != nil {
		return nil, apiError("creating location", err)
	}
	return &locationOutput{Body: s.location(e)}, nil
}

func (s *Server) handleListLocations(ctx context.Context, input *listLocationsInput) (*listLocationsOutput, error) {
	entities, err := s.services.locations.List(ctx, store.ListOpts{
		Category: input.Category,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, apiError("listing locations", err)
	}
	out := &listLocationsOutput{}
	out.Body.Locations = make([]Location, 0, len(entities))
	for _, e := range entities {
		out.Body.Locations = append(out.Body.Locations, s.location(e))
	}
	return out, nil
}

func (s *Server) handleGetLocation(ctx context.Context, input *locationIDInput) (*locationOutput, error) {
	e, err := s.services.locations.Get(ctx, input.ID)
	if err != nil {
		return nil, apiError("getting location", err)
	}
	return &locationOutput{Body: s.location(e)}, nil
}

func (s *Server) handleUpdateLocation(ctx context.Context, input *updateLocationInput) (*locationOutput, error) {
	e, err := s.services.locations.Update(ctx, input.ID, input.Body.request())
	if err != nil {
		return nil, apiError("updating location", err)
	}
	return &locationOutput{Body: s.location(e)}, nil
}

func (s *Server) handleDeleteLocation(ctx context.Context, input *locationIDInput) (*struct{}, error) {
	if err := s.services.locations.Delete(ctx, input.ID); err != nil {
		return nil, apiError("deleting location", err)
	}
	return nil, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	q := search.Query{Text: input.Q, Threshold: s.services.defaults.Threshold, Limit: s.services.defaults.Limit}
	if input.Limit > 0 {
		q.Limit = input.Limit
	}
	if raw := strings.TrimSpace(input.Threshold); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, huma.Error400BadRequest("threshold must be a number", err)
		}
		q.Threshold = t
	}

	hits, err := s.services.search.SearchLocations(ctx, q)
	if err != nil {
		return nil, apiError("searching locations", err)
	}

	out := &searchOutput{}
	out.Body.Query = q.Text
	out.Body.Threshold = q.Threshold
	out.Body.Limit = q.Limit
	out.Body.Results = make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		out.Body.Results = append(out.Body.Results, SearchHit{
			ID:         h.ID,
			Similarity: h.Similarity,
			Location:   s.location(h.Location),
		})
	}
	return out, nil
}

func (s *Server) handleReindex(ctx context.Context, input *reindexInput) (*reindexOutput, error) {
	report, err := s.services.locations.Reindex(ctx, input.Force)
	if err != nil && report.Scanned == 0 {
		return nil, apiError("reindexing", err)
	}
	if err != nil {
		slog.Warn("reindex finished with failures", "failed", report.Failed, "error", err)
	}
	return &reindexOutput{Body: report}, nil
}

func (s *Server) location(e *store.Entity) Location {
	return Location{
		ID:           e.ID,
		Description:  e.Text,
		Title:        e.Payload.Title,
		Category:     e.Payload.Category,
		Latitude:     e.Payload.Latitude,
		Longitude:    e.Payload.Longitude,
		ImageURLs:    nonNil(e.Payload.ImageURLs),
		VisitDates:   nonNil(e.Payload.VisitDates),
		ModelVersion: e.ModelVersion,
		Stale:        s.services.locations.Stale(e),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// apiError maps a coded error to the matching HTTP problem response.
// Server side failures are logged and reported without their cause, which
// can carry upstream URLs or configuration details.
func apiError(op string, err error) error {
	status := locuserr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", "status", status, "code", locuserr.CodeOf(err), "error", err)
		return huma.NewError(status, op+" failed")
	}
	return huma.NewError(status, err.Error())
}
