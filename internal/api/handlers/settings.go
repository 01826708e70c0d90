// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gamarr/gamarr/internal/domain"
)

// SettingsService is the configuration surface the settings handler needs.
type SettingsService interface {
	Snapshot() domain.Config
	UpdateDownloadSettings(domain.DownloadSettings)
}

type SettingsHandler struct {
	service SettingsService
}

func NewSettingsHandler(service SettingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/settings/downloads", h.get)
	r.Put("/settings/downloads", h.update)
}

type downloadSettingsPayload struct {
	DownloadPath           string `json:"downloadPath"`
	MaxConcurrentDownloads int    `json:"maxConcurrentDownloads"`
	MaxRetries             int    `json:"maxRetries"`
	RetryDelayMs           int    `json:"retryDelayMs"`
	CreateGameSubfolders   bool   `json:"createGameSubfolders"`
}

func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	conf := h.service.Snapshot()
	respondJSON(w, http.StatusOK, downloadSettingsPayload{
		DownloadPath:           conf.DownloadPath,
		MaxConcurrentDownloads: conf.MaxConcurrentDownloads,
		MaxRetries:             conf.MaxRetries,
		RetryDelayMs:           conf.RetryDelayMs,
		CreateGameSubfolders:   conf.CreateGameSubfolders,
	})
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req downloadSettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DownloadPath == "" {
		respondError(w, http.StatusBadRequest, "downloadPath is required")
		return
	}
	if req.MaxConcurrentDownloads < 1 {
		respondError(w, http.StatusBadRequest, "maxConcurrentDownloads must be at least 1")
		return
	}
	if req.MaxRetries < 0 || req.RetryDelayMs < 0 {
		respondError(w, http.StatusBadRequest, "maxRetries and retryDelayMs must not be negative")
		return
	}

	h.service.UpdateDownloadSettings(domain.DownloadSettings{
		DownloadPath:           req.DownloadPath,
		MaxConcurrentDownloads: req.MaxConcurrentDownloads,
		MaxRetries:             req.MaxRetries,
		RetryDelay:             time.Duration(req.RetryDelayMs) * time.Millisecond,
		CreateGameSubfolders:   req.CreateGameSubfolders,
	})

	respondJSON(w, http.StatusNoContent, nil)
}
