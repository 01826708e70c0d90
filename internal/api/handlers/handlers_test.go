// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamarr/gamarr/internal/agents"
	"github.com/gamarr/gamarr/internal/aggregator"
	"github.com/gamarr/gamarr/internal/domain"
	"github.com/gamarr/gamarr/internal/downloads"
	"github.com/gamarr/gamarr/internal/models"
)

type fakeMatches struct {
	group      models.PendingMatchGroup
	searchErr  error
	groupErr   error
	approveErr error
	rejectErr  error
	dismissErr error
	lastOpts   aggregator.Options
}

func (f *fakeMatches) Search(ctx context.Context, game models.CanonicalGame, opts aggregator.Options) (*models.PendingMatchGroup, error) {
	f.lastOpts = opts
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	g := f.group
	g.IGDBID = game.IGDBID
	g.GameName = game.Name
	return &g, nil
}

func (f *fakeMatches) Groups() []models.PendingMatchGroup { return []models.PendingMatchGroup{f.group} }

func (f *fakeMatches) Group(igdbID int64) (models.PendingMatchGroup, error) {
	if f.groupErr != nil {
		return models.PendingMatchGroup{}, f.groupErr
	}
	return f.group, nil
}

func (f *fakeMatches) Approve(ctx context.Context, igdbID int64, candidateID string) (models.DDLDownload, error) {
	if f.approveErr != nil {
		return models.DDLDownload{}, f.approveErr
	}
	return models.DDLDownload{ID: "dl-1", Status: models.DownloadStatusPending}, nil
}

func (f *fakeMatches) Reject(igdbID int64, candidateID string) error { return f.rejectErr }
func (f *fakeMatches) Dismiss(igdbID int64) error                    { return f.dismissErr }

type fakeDownloads struct {
	items     []models.DDLDownload
	getErr    error
	cancelErr error
	active    int
	queued    int
}

func (f *fakeDownloads) ActiveCount() int { return f.active }
func (f *fakeDownloads) QueuedCount() int { return f.queued }

func (f *fakeDownloads) List() []models.DDLDownload { return f.items }

func (f *fakeDownloads) Get(id string) (models.DDLDownload, error) {
	if f.getErr != nil {
		return models.DDLDownload{}, f.getErr
	}
	return f.items[0], nil
}

func (f *fakeDownloads) Cancel(id string) error { return f.cancelErr }

type fakeAgents struct {
	infos     []aggregator.AgentInfo
	result    agents.SearchResult
	err       error
	lastQuery string
	lastGame  models.CanonicalGame
}

func (f *fakeAgents) Agents() []aggregator.AgentInfo { return f.infos }

func (f *fakeAgents) SearchAgent(ctx context.Context, name, query string) (agents.SearchResult, error) {
	f.lastQuery = query
	if f.err != nil {
		return agents.SearchResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeAgents) SearchAgentEnhanced(ctx context.Context, name string, game models.CanonicalGame, opts aggregator.Options) (agents.SearchResult, error) {
	f.lastGame = game
	if f.err != nil {
		return agents.SearchResult{}, f.err
	}
	return f.result, nil
}

type fakeSettings struct {
	conf    domain.Config
	applied *domain.DownloadSettings
}

func (f *fakeSettings) Snapshot() domain.Config { return f.conf }

func (f *fakeSettings) UpdateDownloadSettings(s domain.DownloadSettings) { f.applied = &s }

func newRouter(matches MatchService, dls DownloadService) *chi.Mux {
	return newRouterWith(matches, dls, &fakeAgents{}, &fakeSettings{})
}

func newRouterWith(matches MatchService, dls DownloadService, ags AgentService, settings SettingsService) *chi.Mux {
	r := chi.NewRouter()
	cfg := &domain.Config{MinMatchScore: 40}
	r.Route("/api", func(r chi.Router) {
		NewHealthHandler("test").Routes(r)
		NewSearchHandler(matches, cfg).Routes(r)
		NewAgentsHandler(ags, cfg.MinMatchScore).Routes(r)
		NewDownloadsHandler(dls).Routes(r)
		NewSettingsHandler(settings).Routes(r)
	})
	return r
}

func TestHealthAndVersion(t *testing.T) {
	r := newRouter(&fakeMatches{}, &fakeDownloads{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test")
}

func TestSearchEndpoint(t *testing.T) {
	matches := &fakeMatches{group: models.PendingMatchGroup{
		Candidates: []models.GameDownloadCandidate{{ID: "c1", Title: "Hollow Knight"}},
	}}
	r := newRouter(matches, &fakeDownloads{})

	body := `{"igdbId": 42, "name": "Hollow Knight", "platform": "windows"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var group models.PendingMatchGroup
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
	assert.Equal(t, int64(42), group.IGDBID)
	assert.Len(t, group.Candidates, 1)

	assert.Equal(t, "windows", matches.lastOpts.Platform)
	assert.Equal(t, float64(40), matches.lastOpts.MinMatchScore, "minimum score comes from configuration")
}

func TestSearchValidation(t *testing.T) {
	r := newRouter(&fakeMatches{}, &fakeDownloads{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"name": ""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveEndpoint(t *testing.T) {
	r := newRouter(&fakeMatches{}, &fakeDownloads{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/matches/42/approve", strings.NewReader(`{"candidateId": "c1"}`)))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "dl-1")
}

func TestApproveUnknownGroup(t *testing.T) {
	r := newRouter(&fakeMatches{approveErr: aggregator.ErrNoGroup}, &fakeDownloads{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/matches/42/approve", strings.NewReader(`{"candidateId": "c1"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApproveUnfetchableCandidate(t *testing.T) {
	r := newRouter(&fakeMatches{approveErr: downloads.ErrNotFetchable}, &fakeDownloads{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/matches/42/approve", strings.NewReader(`{"candidateId": "c1"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRejectAndDismiss(t *testing.T) {
	r := newRouter(&fakeMatches{}, &fakeDownloads{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/matches/42/reject", strings.NewReader(`{"candidateId": "c1"}`)))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/matches/42/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestInvalidIGDBID(t *testing.T) {
	r := newRouter(&fakeMatches{}, &fakeDownloads{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/matches/notanumber/", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadsEndpoints(t *testing.T) {
	dls := &fakeDownloads{items: []models.DDLDownload{{ID: "dl-1", GameName: "Hollow Knight"}}}
	r := newRouter(&fakeMatches{}, dls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/downloads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dl-1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/downloads/dl-1/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/downloads/dl-1/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCancelUnknownDownload(t *testing.T) {
	r := newRouter(&fakeMatches{}, &fakeDownloads{cancelErr: downloads.ErrDownloadNotFound})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/downloads/nope/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAgentsEndpoints(t *testing.T) {
	ags := &fakeAgents{
		infos: []aggregator.AgentInfo{{Name: "repack", Priority: 50, Available: true}},
		result: agents.SearchResult{
			Success:    true,
			Candidates: []models.GameDownloadCandidate{{ID: "c1", Title: "Hollow Knight"}},
		},
	}
	r := newRouterWith(&fakeMatches{}, &fakeDownloads{}, ags, &fakeSettings{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/agents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "repack")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/agents/repack/search", strings.NewReader(`{"query": "hollow knight"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hollow knight", ags.lastQuery)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/agents/repack/search", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/agents/repack/search/enhanced", strings.NewReader(`{"igdbId": 42, "name": "Hollow Knight"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), ags.lastGame.IGDBID)
}

func TestAgentSearchUnknownAgent(t *testing.T) {
	ags := &fakeAgents{err: aggregator.ErrNoAgent}
	r := newRouterWith(&fakeMatches{}, &fakeDownloads{}, ags, &fakeSettings{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/agents/nope/search", strings.NewReader(`{"query": "hollow knight"}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	settings := &fakeSettings{conf: domain.Config{
		DownloadPath:           "/downloads",
		MaxConcurrentDownloads: 3,
		MaxRetries:             2,
		RetryDelayMs:           500,
	}}
	r := newRouterWith(&fakeMatches{}, &fakeDownloads{}, &fakeAgents{}, settings)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings/downloads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/downloads")

	body := `{"downloadPath": "/games", "maxConcurrentDownloads": 2, "maxRetries": 1, "retryDelayMs": 250, "createGameSubfolders": true}`
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/settings/downloads", strings.NewReader(body)))
	require.Equal(t, http.StatusNoContent, w.Code)

	require.NotNil(t, settings.applied)
	assert.Equal(t, "/games", settings.applied.DownloadPath)
	assert.Equal(t, 2, settings.applied.MaxConcurrentDownloads)
	assert.True(t, settings.applied.CreateGameSubfolders)
}

func TestSettingsValidation(t *testing.T) {
	settings := &fakeSettings{}
	r := newRouterWith(&fakeMatches{}, &fakeDownloads{}, &fakeAgents{}, settings)

	cases := []string{
		`{"downloadPath": "", "maxConcurrentDownloads": 2}`,
		`{"downloadPath": "/games", "maxConcurrentDownloads": 0}`,
		`{"downloadPath": "/games", "maxConcurrentDownloads": 2, "maxRetries": -1}`,
	}
	for _, body := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/settings/downloads", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Nil(t, settings.applied)
	}
}

func TestDownloadCounts(t *testing.T) {
	dls := &fakeDownloads{active: 2, queued: 3}
	r := newRouter(&fakeMatches{}, dls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/downloads/counts", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var counts map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, 2, counts["active"])
	assert.Equal(t, 3, counts["queued"])
}
