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

	"github.com/gamarr/gamarr/internal/matcher"
	"github.com/gamarr/gamarr/internal/models"
)

const torznabFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Hollow.Knight.v1.5.78-GOG</title>
      <guid>https://indexer.local/details/111</guid>
      <link>https://indexer.local/dl/111.torrent</link>
      <size>2147483648</size>
      <category>4050</category>
      <jackettindexer>1337x</jackettindexer>
      <enclosure url="https://indexer.local/dl/111.torrent" type="application/x-bittorrent" />
      <torznab:attr name="seeders" value="120" />
      <torznab:attr name="peers" value="130" />
      <torznab:attr name="grabs" value="412" />
      <torznab:attr name="magneturl" value="magnet:?xt=urn:btih:abc" />
    </item>
    <item>
      <title>Totally Different Game-CODEX</title>
      <guid>https://indexer.local/details/222</guid>
      <link>https://indexer.local/dl/222.torrent</link>
      <size>1048576</size>
      <category>4050</category>
      <torznab:attr name="seeders" value="5" />
    </item>
  </channel>
</rss>`

func newEnhancer() *Enhancer {
	return &Enhancer{Matcher: matcher.New(0.82)}
}

func TestTorznabSearchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "search", r.URL.Query().Get("t"))
		assert.Equal(t, "4050", r.URL.Query().Get("cat"))
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.Equal(t, "Hollow Knight", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(torznabFixture))
	}))
	defer srv.Close()

	agent := NewTorznabAgent(srv.URL, "secret", 5*time.Second, newEnhancer())
	require.True(t, agent.IsAvailable())

	result := agent.Search(context.Background(), "Hollow Knight")
	require.True(t, result.Success, result.Error)
	require.Len(t, result.Candidates, 2)

	c := result.Candidates[0]
	assert.Equal(t, "Hollow.Knight.v1.5.78-GOG", c.Title)
	assert.Equal(t, "torznab", c.Source)
	assert.Equal(t, "1337x", c.Indexer)
	assert.Equal(t, "4050", c.Category)
	assert.Equal(t, int64(2147483648), c.SizeBytes)
	assert.Equal(t, "2.0 GiB", c.Size)
	assert.Equal(t, 120, c.Seeders)
	assert.Equal(t, 10, c.Leechers, "peers minus seeders")
	assert.Equal(t, 412, c.Grabs)
	assert.Equal(t, "magnet:?xt=urn:btih:abc", c.MagnetURL)
	assert.Equal(t, "https://indexer.local/dl/111.torrent", c.TorrentURL)
	assert.Equal(t, models.ReleaseTypeP2P, c.ReleaseType)
}

func TestTorznabSearchEnhancedFiltersMismatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(torznabFixture))
	}))
	defer srv.Close()

	agent := NewTorznabAgent(srv.URL, "secret", 5*time.Second, newEnhancer())

	result := agent.SearchEnhanced(context.Background(), "Hollow Knight", EnhancedOptions{
		Game: models.CanonicalGame{IGDBID: 1, Name: "Hollow Knight"},
	})
	require.True(t, result.Success, result.Error)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "Hollow.Knight.v1.5.78-GOG", result.Candidates[0].Title)
	assert.Greater(t, result.Candidates[0].MatchScore, 0.0)
}

func TestTorznabFailureIsAbsorbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	agent := NewTorznabAgent(srv.URL, "secret", 5*time.Second, newEnhancer())

	result := agent.Search(context.Background(), "anything")
	assert.False(t, result.Success)
	assert.Empty(t, result.Candidates)
	assert.Contains(t, result.Error, "502")
}

func TestTorznabUnavailableWithoutCredentials(t *testing.T) {
	agent := NewTorznabAgent("http://indexer.local", "", 5*time.Second, newEnhancer())
	assert.False(t, agent.IsAvailable())

	result := agent.Search(context.Background(), "anything")
	assert.False(t, result.Success)
}
