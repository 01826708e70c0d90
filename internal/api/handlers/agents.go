// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/gamarr/gamarr/internal/agents"
	"github.com/gamarr/gamarr/internal/aggregator"
	"github.com/gamarr/gamarr/internal/models"
)

// AgentService is the aggregator surface for per-agent operations.
type AgentService interface {
	Agents() []aggregator.AgentInfo
	SearchAgent(ctx context.Context, name, query string) (agents.SearchResult, error)
	SearchAgentEnhanced(ctx context.Context, name string, game models.CanonicalGame, opts aggregator.Options) (agents.SearchResult, error)
}

type AgentsHandler struct {
	service       AgentService
	minMatchScore float64
}

func NewAgentsHandler(service AgentService, minMatchScore float64) *AgentsHandler {
	return &AgentsHandler{service: service, minMatchScore: minMatchScore}
}

func (h *AgentsHandler) Routes(r chi.Router) {
	r.Get("/agents", h.list)
	r.Route("/agents/{agent}", func(r chi.Router) {
		r.Post("/search", h.search)
		r.Post("/search/enhanced", h.searchEnhanced)
	})
}

func (h *AgentsHandler) list(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Agents())
}

type agentSearchRequest struct {
	Query string `json:"query"`
}

func (h *AgentsHandler) search(w http.ResponseWriter, r *http.Request) {
	var req agentSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.service.SearchAgent(r.Context(), chi.URLParam(r, "agent"), req.Query)
	if err != nil {
		respondAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *AgentsHandler) searchEnhanced(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.service.SearchAgentEnhanced(r.Context(), chi.URLParam(r, "agent"), game, aggregator.Options{
		Platform:      req.Platform,
		MinMatchScore: h.minMatchScore,
	})
	if err != nil {
		respondAgentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func respondAgentError(w http.ResponseWriter, err error) {
	if errors.Is(err, aggregator.ErrNoAgent) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
