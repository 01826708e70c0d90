// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/aggregator"
	"github.com/gamarr/gamarr/internal/domain"
	"github.com/gamarr/gamarr/internal/downloads"
	"github.com/gamarr/gamarr/internal/models"
)

// MatchService is the aggregator surface the search handler needs.
type MatchService interface {
	Search(ctx context.Context, game models.CanonicalGame, opts aggregator.Options) (*models.PendingMatchGroup, error)
	Groups() []models.PendingMatchGroup
	Group(igdbID int64) (models.PendingMatchGroup, error)
	Approve(ctx context.Context, igdbID int64, candidateID string) (models.DDLDownload, error)
	Reject(igdbID int64, candidateID string) error
	Dismiss(igdbID int64) error
}

type SearchHandler struct {
	matches MatchService
	config  *domain.Config
}

func NewSearchHandler(matches MatchService, config *domain.Config) *SearchHandler {
	return &SearchHandler{matches: matches, config: config}
}

func (h *SearchHandler) Routes(r chi.Router) {
	r.Post("/search", h.search)
	r.Get("/matches", h.listGroups)
	r.Route("/matches/{igdbID}", func(r chi.Router) {
		r.Get("/", h.getGroup)
		r.Post("/approve", h.approve)
		r.Post("/reject", h.reject)
		r.Delete("/", h.dismiss)
	})
}

type searchRequest struct {
	IGDBID   int64    `json:"igdbId"`
	Name     string   `json:"name"`
	Platform string   `json:"platform,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IGDBID == 0 || req.Name == "" {
		respondError(w, http.StatusBadRequest, "igdbId and name are required")
		return
	}

	game := models.CanonicalGame{
		IGDBID:   req.IGDBID,
		Name:     req.Name,
		Platform: req.Platform,
		Aliases:  req.Aliases,
		CoverURL: req.CoverURL,
	}

	group, err := h.matches.Search(r.Context(), game, aggregator.Options{
		Platform:      req.Platform,
		MinMatchScore: h.config.MinMatchScore,
	})
	if err != nil {
		log.Error().Err(err).Str("game", req.Name).Msg("Search failed")
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, group)
}

func (h *SearchHandler) listGroups(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.matches.Groups())
}

func (h *SearchHandler) getGroup(w http.ResponseWriter, r *http.Request) {
	igdbID, ok := parseIGDBID(w, r)
	if !ok {
		return
	}

	group, err := h.matches.Group(igdbID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, group)
}

type candidateRequest struct {
	CandidateID string `json:"candidateId"`
}

func (h *SearchHandler) approve(w http.ResponseWriter, r *http.Request) {
	igdbID, ok := parseIGDBID(w, r)
	if !ok {
		return
	}

	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CandidateID == "" {
		respondError(w, http.StatusBadRequest, "candidateId is required")
		return
	}

	dl, err := h.matches.Approve(r.Context(), igdbID, req.CandidateID)
	if err != nil {
		respondGroupError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dl)
}

func (h *SearchHandler) reject(w http.ResponseWriter, r *http.Request) {
	igdbID, ok := parseIGDBID(w, r)
	if !ok {
		return
	}

	var req candidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CandidateID == "" {
		respondError(w, http.StatusBadRequest, "candidateId is required")
		return
	}

	if err := h.matches.Reject(igdbID, req.CandidateID); err != nil {
		respondGroupError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *SearchHandler) dismiss(w http.ResponseWriter, r *http.Request) {
	igdbID, ok := parseIGDBID(w, r)
	if !ok {
		return
	}

	if err := h.matches.Dismiss(igdbID); err != nil {
		respondGroupError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func parseIGDBID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	igdbID, err := strconv.ParseInt(chi.URLParam(r, "igdbID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid igdbId")
		return 0, false
	}
	return igdbID, true
}

func respondGroupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, aggregator.ErrNoGroup), errors.Is(err, aggregator.ErrNoCandidate):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, downloads.ErrNotFetchable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
