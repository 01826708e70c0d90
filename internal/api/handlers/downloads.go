// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/gamarr/gamarr/internal/downloads"
	"github.com/gamarr/gamarr/internal/models"
)

// DownloadService is the orchestrator surface the downloads handler needs.
type DownloadService interface {
	List() []models.DDLDownload
	Get(id string) (models.DDLDownload, error)
	Cancel(id string) error
	ActiveCount() int
	QueuedCount() int
}

type DownloadsHandler struct {
	service DownloadService
}

func NewDownloadsHandler(service DownloadService) *DownloadsHandler {
	return &DownloadsHandler{service: service}
}

func (h *DownloadsHandler) Routes(r chi.Router) {
	r.Get("/downloads", h.list)
	r.Get("/downloads/counts", h.counts)
	r.Route("/downloads/{downloadID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.cancel)
	})
}

func (h *DownloadsHandler) list(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.List())
}

func (h *DownloadsHandler) counts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{
		"active": h.service.ActiveCount(),
		"queued": h.service.QueuedCount(),
	})
}

func (h *DownloadsHandler) get(w http.ResponseWriter, r *http.Request) {
	dl, err := h.service.Get(chi.URLParam(r, "downloadID"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, dl)
}

func (h *DownloadsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	err := h.service.Cancel(chi.URLParam(r, "downloadID"))
	if err != nil {
		if errors.Is(err, downloads.ErrDownloadNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
