// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamarr/gamarr/internal/models"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"separators collapsed", "Hollow.Knight-GOG", "hollow knight"},
		{"dotted version dropped", "Hollow.Knight.v1.5.78-GOG", "hollow knight"},
		{"brackets stripped", "Hades [FitGirl Repack] (MULTI12)", "hades"},
		{"noise tokens dropped", "Celeste REPACK PROPER", "celeste"},
		{"version dropped", "Factorio v1.1.110", "factorio"},
		{"build dropped", "Rimworld Build12345", "rimworld"},
		{"multiN dropped", "Control MULTI7", "control"},
		{"year kept", "Doom 2016", "doom 2016"},
		{"sequel number kept", "Half-Life 2", "half life 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.input))
		})
	}
}

func TestTitleSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TitleSimilarity("hades", "hades"), 1e-9)
	assert.Greater(t, TitleSimilarity("hollow knight", "hollow knigt"), 0.9)
	assert.Less(t, TitleSimilarity("hades", "celeste"), 0.5)
}

func TestMatchAcceptsCloseTitle(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{IGDBID: 1, Name: "Hollow Knight", Platform: "windows"}
	c := &models.GameDownloadCandidate{
		Title:       "Hollow.Knight.v1.5.78-GOG",
		Source:      "torznab",
		Category:    "4050",
		ReleaseType: models.ReleaseTypeScene,
		Seeders:     120,
		TorrentURL:  "http://indexer/dl/1",
	}

	res := m.Match(game, c, Options{})
	require.True(t, res.Matched, "reject reason: %s", res.RejectReason)
	assert.Greater(t, res.Score, 60.0)
	assert.Equal(t, PlatformWindows, res.Platform)
	assert.Equal(t, res.Score, c.MatchScore)
	assert.NotEmpty(t, c.MatchReasons)
	assert.Contains(t, c.MatchReasons, "seeders 120")
	assert.Contains(t, c.MatchReasons, "release type scene")
}

func TestMatchRejectsUnrelatedTitle(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Hollow Knight"}
	c := &models.GameDownloadCandidate{Title: "Stardew.Valley.v1.6-GOG", TorrentURL: "x"}

	res := m.Match(game, c, Options{})
	assert.False(t, res.Matched)
	assert.Zero(t, c.MatchScore)
}

func TestMatchRejectsKnownSequel(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Hollow Knight"}
	c := &models.GameDownloadCandidate{Title: "Hollow Knight Silksong-RUNE", TorrentURL: "x"}

	res := m.Match(game, c, Options{})
	require.False(t, res.Matched)
	assert.Contains(t, res.RejectReason, "silksong")
}

func TestMatchRejectsNumericSequel(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Half-Life"}
	c := &models.GameDownloadCandidate{Title: "Half-Life 2 Complete Edition", TorrentURL: "x"}

	res := m.Match(game, c, Options{})
	require.False(t, res.Matched)
	assert.Contains(t, res.RejectReason, "ordinal")
}

func TestMatchAcceptsSequelWhenCanonicalIsSequel(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Half-Life 2"}
	c := &models.GameDownloadCandidate{Title: "Half-Life.2.Repack-FitGirl", TorrentURL: "x"}

	res := m.Match(game, c, Options{})
	assert.True(t, res.Matched, "reject reason: %s", res.RejectReason)
}

func TestSingleWordTitleExtraTokenGuard(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Celeste"}

	ok := &models.GameDownloadCandidate{Title: "Celeste v1.4 Windows English", TorrentURL: "x"}
	res := m.Match(game, ok, Options{})
	assert.True(t, res.Matched, "reject reason: %s", res.RejectReason)

	bad := &models.GameDownloadCandidate{Title: "Celeste Randomizer Mod", TorrentURL: "x"}
	res = m.Match(game, bad, Options{})
	require.False(t, res.Matched)
	assert.Contains(t, res.RejectReason, "extra token")
}

func TestPatchOnlyRejection(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Cyberpunk 2077"}

	patch := &models.GameDownloadCandidate{Title: "Cyberpunk 2077 Trainer", TorrentURL: "x"}
	res := m.Match(game, patch, Options{})
	require.False(t, res.Matched)

	bundle := &models.GameDownloadCandidate{Title: "Cyberpunk 2077 Complete Incl Update 2.1", TorrentURL: "x"}
	res = m.Match(game, bundle, Options{})
	assert.True(t, res.Matched, "reject reason: %s", res.RejectReason)
}

func TestPlatformPreferenceDropsMismatch(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Hades"}

	c := &models.GameDownloadCandidate{Title: "Hades NSW Switch Edition", TorrentURL: "x"}
	res := m.Match(game, c, Options{PreferredPlatform: "windows"})
	require.False(t, res.Matched)
	assert.Contains(t, res.RejectReason, "platform")

	// No platform tag keeps the candidate visible.
	untagged := &models.GameDownloadCandidate{Title: "Hades Deluxe Edition", TorrentURL: "x"}
	res = m.Match(game, untagged, Options{PreferredPlatform: "windows"})
	assert.True(t, res.Matched, "reject reason: %s", res.RejectReason)
}

func TestMinMatchScoreGate(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{Name: "Hades"}
	c := &models.GameDownloadCandidate{Title: "Hades", TorrentURL: "x"}

	res := m.Match(game, c, Options{MinMatchScore: 99})
	require.False(t, res.Matched)
	assert.Contains(t, res.RejectReason, "below minimum")
}

func TestAliasesMatch(t *testing.T) {
	m := New(0.82)
	game := models.CanonicalGame{
		Name:    "The Witcher 3: Wild Hunt",
		Aliases: []string{"Witcher 3"},
	}
	c := &models.GameDownloadCandidate{Title: "Witcher.3.GOTY-FitGirl", TorrentURL: "x"}

	res := m.Match(game, c, Options{})
	assert.True(t, res.Matched, "reject reason: %s", res.RejectReason)
}

func TestDetectPlatform(t *testing.T) {
	p, score := DetectPlatform("Hades.Linux-GOG", "")
	assert.Equal(t, PlatformLinux, p)
	assert.InDelta(t, 1.0, score, 1e-9)

	p, score = DetectPlatform("Some Game", "4050")
	assert.Equal(t, PlatformWindows, p)
	assert.InDelta(t, 0.7, score, 1e-9)

	p, score = DetectPlatform("Some Game", "")
	assert.Empty(t, p)
	assert.Zero(t, score)
}
