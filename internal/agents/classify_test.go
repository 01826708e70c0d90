// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gamarr/gamarr/internal/models"
)

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want URLKind
	}{
		{"magnet", "magnet:?xt=urn:btih:abc", URLKindMagnet},
		{"torrent file", "http://indexer.local/dl/123.torrent", URLKindTorrent},
		{"zip extension", "https://cdn.example.com/games/hades.zip", URLKindDirect},
		{"iso extension", "https://cdn.example.com/games/witcher3.iso", URLKindDirect},
		{"pixeldrain api", "https://pixeldrain.com/api/file/abc123", URLKindDirect},
		{"pixeldrain page", "https://pixeldrain.com/u/abc123", URLKindPage},
		{"gofile folder", "https://gofile.io/d/AbCdEf", URLKindPage},
		{"www prefix stripped", "https://www.gofile.io/d/AbCdEf", URLKindPage},
		{"archive.org download", "https://archive.org/download/some-game/file", URLKindDirect},
		{"download query param", "https://host.example.com/get?download=1", URLKindDirect},
		{"plain page", "https://example.com/some/page", URLKindUnknown},
		{"garbage", "::not a url::", URLKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyURL(tt.url))
		})
	}
}

func TestApplyURL(t *testing.T) {
	var c models.GameDownloadCandidate

	ApplyURL(&c, "magnet:?xt=urn:btih:abc")
	ApplyURL(&c, "http://indexer.local/dl/123.torrent")
	ApplyURL(&c, "https://pixeldrain.com/api/file/abc")
	ApplyURL(&c, "https://example.com/unknown")

	assert.Equal(t, "magnet:?xt=urn:btih:abc", c.MagnetURL)
	assert.Equal(t, "http://indexer.local/dl/123.torrent", c.TorrentURL)
	assert.Equal(t, "https://pixeldrain.com/api/file/abc", c.DirectDownloadURL)
	assert.True(t, c.HasDirectDownload)
	assert.Equal(t, "https://example.com/unknown", c.InfoURL)
}

func TestTagReleaseType(t *testing.T) {
	tests := []struct {
		title string
		want  models.ReleaseType
	}{
		{"Cyberpunk 2077 REPACK", models.ReleaseTypeRepack},
		{"Hades-FitGirl", models.ReleaseTypeRepack},
		{"Elden.Ring-CODEX", models.ReleaseTypeScene},
		{"Doom.Eternal-TENOKE", models.ReleaseTypeScene},
		{"Celeste Portable Rip", models.ReleaseTypeRip},
		{"Factorio-GOG", models.ReleaseTypeP2P},
		{"Some Random Game", models.ReleaseTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, TagReleaseType(tt.title))
		})
	}
}
