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

	"github.com/gamarr/gamarr/internal/models"
)

const linkIndexFixture = `[
	{"title": "Hades-GOG", "uploader": "johncena141", "magnet": "magnet:?xt=urn:btih:abc", "size": 7516192768},
	{"title": "Hades Cracked", "uploader": "sketchy_person", "links": ["https://gofile.io/d/bad"]},
	{"title": "Hades Portable", "uploader": "", "links": ["https://pixeldrain.com/api/file/xyz"]}
]`

func newLinkIndexServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(linkIndexFixture))
	}))
}

func TestLinkIndexTrustFiltering(t *testing.T) {
	srv := newLinkIndexServer(t)
	defer srv.Close()

	agent := NewLinkIndexAgent(srv.URL, []string{"JohnCena141"}, 5*time.Second, newEnhancer())

	result := agent.Search(context.Background(), "hades")
	require.True(t, result.Success, result.Error)
	require.Len(t, result.Candidates, 2)

	trusted := result.Candidates[0]
	assert.Equal(t, "Hades-GOG", trusted.Title)
	assert.Equal(t, models.TrustLevelTrusted, trusted.SourceTrustLevel, "allow-list match is case-insensitive")
	assert.Equal(t, "magnet:?xt=urn:btih:abc", trusted.MagnetURL)

	anonymous := result.Candidates[1]
	assert.Equal(t, "Hades Portable", anonymous.Title)
	assert.Equal(t, models.TrustLevelUnknown, anonymous.SourceTrustLevel, "missing uploader is allowed")
	assert.True(t, anonymous.HasDirectDownload)
}

func TestLinkIndexNoAllowListKeepsEveryone(t *testing.T) {
	srv := newLinkIndexServer(t)
	defer srv.Close()

	agent := NewLinkIndexAgent(srv.URL, nil, 5*time.Second, newEnhancer())

	result := agent.Search(context.Background(), "hades")
	require.True(t, result.Success, result.Error)
	assert.Len(t, result.Candidates, 3)
}

func TestLinkIndexUnavailableWithoutURL(t *testing.T) {
	agent := NewLinkIndexAgent("", nil, 5*time.Second, newEnhancer())
	assert.False(t, agent.IsAvailable())
	assert.False(t, agent.Search(context.Background(), "x").Success)
}
