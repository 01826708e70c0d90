// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

// CanonicalGame is the authoritative game record search results are matched
// against. It is owned by the external metadata provider and treated as
// read-only input to the acquisition pipeline.
type CanonicalGame struct {
	IGDBID   int64    `json:"igdbId"`
	Name     string   `json:"name"`
	Platform string   `json:"platform,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
	CoverURL string   `json:"coverUrl,omitempty"`
}
