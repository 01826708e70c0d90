// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package agents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectRipSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games", r.URL.Path)
		assert.Equal(t, "hades", r.URL.Query().Get("search"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"title": "Hades Rip", "url": "/games/hades", "size": "6.5 GiB", "sizeBytes": 6979321856},
			{"title": "", "url": "/games/broken"}
		]`))
	}))
	defer srv.Close()

	agent := NewDirectRipAgent(srv.URL, 5*time.Second, newEnhancer())
	require.True(t, agent.IsAvailable())

	result := agent.Search(context.Background(), "hades")
	require.True(t, result.Success, result.Error)
	require.Len(t, result.Candidates, 1)

	c := result.Candidates[0]
	assert.Equal(t, "Hades Rip", c.Title)
	assert.Equal(t, "directrip", c.Source)
	assert.Equal(t, srv.URL+"/games/hades", c.InfoURL, "relative landing page resolved against base")
	assert.False(t, c.HasDirectDownload)
}

func TestDirectRipGetDownloadLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="https://pixeldrain.com/api/file/abc123">Mirror 1</a>
			<a href="https://gofile.io/d/XyZ">Mirror 2</a>
			<a href="https://gofile.io/d/XyZ">Mirror 2 duplicate</a>
			<a href="/internal/nav">Navigation</a>
			<a href="magnet:?xt=urn:btih:abc">Magnet</a>
		</body></html>`))
	}))
	defer srv.Close()

	agent := NewDirectRipAgent(srv.URL, 5*time.Second, newEnhancer())

	links, err := agent.GetDownloadLinks(context.Background(), srv.URL+"/games/hades")
	require.NoError(t, err)
	require.Len(t, links, 3, "nav link dropped, duplicate collapsed")

	assert.Equal(t, "https://pixeldrain.com/api/file/abc123", links[0].DirectDownloadURL)
	assert.True(t, links[0].HasDirectDownload)
	assert.Equal(t, "https://gofile.io/d/XyZ", links[1].InfoURL)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", links[2].MagnetURL)
}

func TestDirectRipUnavailableWithoutURL(t *testing.T) {
	agent := NewDirectRipAgent("", 5*time.Second, newEnhancer())
	assert.False(t, agent.IsAvailable())
	assert.False(t, agent.Search(context.Background(), "x").Success)
}
