// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package agents

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/gamarr/gamarr/internal/models"
)

// URLKind classifies what a link points at.
type URLKind int

const (
	URLKindUnknown URLKind = iota
	// URLKindDirect is a link the orchestrator can stream to disk.
	URLKindDirect
	// URLKindPage is a landing page that needs GetDownloadLinks.
	URLKindPage
	// URLKindMagnet is a magnet URI.
	URLKindMagnet
	// URLKindTorrent is a .torrent file link.
	URLKindTorrent
)

var directExtensions = map[string]struct{}{
	".zip": {}, ".rar": {}, ".7z": {}, ".iso": {}, ".bin": {},
	".exe": {}, ".gz": {}, ".xz": {}, ".part1": {}, ".001": {},
}

// hostRules map known file hosts to how their links behave. Path prefixes
// distinguish a host's API download endpoints from its landing pages.
var hostRules = []struct {
	host       string
	pathPrefix string
	kind       URLKind
}{
	{"pixeldrain.com", "/api/file/", URLKindDirect},
	{"pixeldrain.com", "/u/", URLKindPage},
	{"gofile.io", "/d/", URLKindPage},
	{"buzzheavier.com", "/", URLKindPage},
	{"fuckingfast.co", "/", URLKindPage},
	{"1fichier.com", "/", URLKindPage},
	{"mediafire.com", "/file/", URLKindPage},
	{"archive.org", "/download/", URLKindDirect},
	{"qiwi.gg", "/file/", URLKindPage},
	{"datanodes.to", "/download", URLKindDirect},
}

var downloadParamHints = []string{"download", "dl", "attachment"}

// ClassifyURL decides how a raw link should be treated, using the scheme,
// file extension, a per-host rule table and query-parameter hints, in that
// order.
func ClassifyURL(raw string) URLKind {
	if strings.HasPrefix(raw, "magnet:") {
		return URLKindMagnet
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return URLKindUnknown
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == ".torrent" {
		return URLKindTorrent
	}
	if _, ok := directExtensions[ext]; ok {
		return URLKindDirect
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	for _, rule := range hostRules {
		if host == rule.host && strings.HasPrefix(u.Path, rule.pathPrefix) {
			return rule.kind
		}
	}

	q := u.Query()
	for _, hint := range downloadParamHints {
		if q.Has(hint) {
			return URLKindDirect
		}
	}

	return URLKindUnknown
}

// ApplyURL assigns link to the candidate field matching its classification.
// Unknown links are treated as info pages so the candidate stays actionable.
func ApplyURL(c *models.GameDownloadCandidate, link string) {
	switch ClassifyURL(link) {
	case URLKindMagnet:
		c.MagnetURL = link
	case URLKindTorrent:
		c.TorrentURL = link
	case URLKindDirect:
		c.DirectDownloadURL = link
		c.HasDirectDownload = true
	default:
		if c.InfoURL == "" {
			c.InfoURL = link
		}
	}
}

var (
	repackGroupRe = regexp.MustCompile(`(?i)\b(fitgirl|dodi|elamigos|kaoskrew|masquerade)\b`)
	sceneGroupRe  = regexp.MustCompile(`(?i)\b(codex|skidrow|plaza|rune|empress|razor1911|reloaded|prophet|hoodlum|tenoke|flt|tinyiso|darksiders|cpy|steampunks)\b`)
	p2pGroupRe    = regexp.MustCompile(`(?i)\b(gog|johncena141|linuxrulez|i_know_everything)\b`)
	ripTokenRe    = regexp.MustCompile(`(?i)\b(rip|ripped|portable)\b`)
)

// TagReleaseType infers the release type from filename conventions: explicit
// repack/rip tokens, or a lookup against known group names.
func TagReleaseType(title string) models.ReleaseType {
	lower := strings.ToLower(title)

	if strings.Contains(lower, "repack") || repackGroupRe.MatchString(title) {
		return models.ReleaseTypeRepack
	}
	if sceneGroupRe.MatchString(title) {
		return models.ReleaseTypeScene
	}
	if ripTokenRe.MatchString(title) {
		return models.ReleaseTypeRip
	}
	if p2pGroupRe.MatchString(title) {
		return models.ReleaseTypeP2P
	}
	return models.ReleaseTypeUnknown
}
