// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ReleaseType classifies how a release was produced.
type ReleaseType string

const (
	ReleaseTypeRepack  ReleaseType = "repack"
	ReleaseTypeRip     ReleaseType = "rip"
	ReleaseTypeScene   ReleaseType = "scene"
	ReleaseTypeP2P     ReleaseType = "p2p"
	ReleaseTypeUnknown ReleaseType = ""
)

// TrustLevel classifies a source or uploader.
type TrustLevel string

const (
	TrustLevelTrusted TrustLevel = "trusted"
	TrustLevelSafe    TrustLevel = "safe"
	TrustLevelUnknown TrustLevel = "unknown"
	TrustLevelUnsafe  TrustLevel = "unsafe"
)

// ErrNoDownloadURL signals a candidate that carries no usable link at all.
var ErrNoDownloadURL = errors.New("candidate has no download, magnet, torrent or info URL")

// GameDownloadCandidate is one discovered release for a canonical game.
// Candidates are immutable once produced by an agent; the aggregator and the
// download orchestrator only read them.
type GameDownloadCandidate struct {
	// ID is a stable hash of the dedup key, assigned by the aggregator.
	ID string `json:"id,omitempty"`

	Title   string `json:"title"`
	Source  string `json:"source"`
	Indexer string `json:"indexer,omitempty"`
	// Category is the source's category code for the hit, when provided
	// (torznab numeric categories).
	Category string `json:"category,omitempty"`
	// GUID is a stable external identifier when the source provides one.
	GUID string `json:"guid,omitempty"`

	ReleaseType ReleaseType `json:"releaseType,omitempty"`
	Size        string      `json:"size,omitempty"`
	SizeBytes   int64       `json:"sizeBytes,omitempty"`

	Seeders  int `json:"seeders,omitempty"`
	Leechers int `json:"leechers,omitempty"`
	Grabs    int `json:"grabs,omitempty"`

	MagnetURL         string `json:"magnetUrl,omitempty"`
	TorrentURL        string `json:"torrentUrl,omitempty"`
	InfoURL           string `json:"infoUrl,omitempty"`
	DirectDownloadURL string `json:"directDownloadUrl,omitempty"`
	HasDirectDownload bool   `json:"hasDirectDownload"`

	Platform      string  `json:"platform,omitempty"`
	PlatformScore float64 `json:"platformScore,omitempty"`

	MatchScore float64 `json:"matchScore,omitempty"`
	// MatchReasons lists the scoring signals in the order they contributed.
	// The hybrid scorer parses numeric features back out of these strings.
	MatchReasons []string `json:"matchReasons,omitempty"`

	Uploader         string     `json:"uploader,omitempty"`
	SourceTrustLevel TrustLevel `json:"sourceTrustLevel,omitempty"`
}

// Validate checks the invariant that every candidate carries at least one URL.
func (c *GameDownloadCandidate) Validate() error {
	if c.MagnetURL == "" && c.TorrentURL == "" && c.InfoURL == "" && c.DirectDownloadURL == "" {
		return ErrNoDownloadURL
	}
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("candidate title is required")
	}
	return nil
}

// DedupKey computes the composite deduplication key for this candidate.
// A stable external id wins; otherwise source plus normalized title. The
// computation is deterministic so repeated runs over the same hit agree.
func (c *GameDownloadCandidate) DedupKey() string {
	if c.GUID != "" {
		return "guid:" + c.GUID
	}
	title := strings.ToLower(strings.TrimSpace(c.Title))
	title = strings.Join(strings.FieldsFunc(title, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == ' '
	}), " ")
	return strings.ToLower(c.Source) + ":" + title
}

// HashID derives the short stable candidate id from the dedup key.
func (c *GameDownloadCandidate) HashID() string {
	sum := sha256.Sum256([]byte(c.DedupKey()))
	return hex.EncodeToString(sum[:8])
}
