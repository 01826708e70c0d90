// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "time"

// PendingMatchGroup holds the ranked, deduplicated candidates for one
// canonical game awaiting a human decision. Approving any candidate consumes
// the whole group; rejecting removes a single candidate.
type PendingMatchGroup struct {
	IGDBID     int64                   `json:"igdbId"`
	GameName   string                  `json:"gameName"`
	CoverURL   string                  `json:"coverUrl,omitempty"`
	Candidates []GameDownloadCandidate `json:"candidates"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// Find returns the candidate with the given id, or nil.
func (g *PendingMatchGroup) Find(candidateID string) *GameDownloadCandidate {
	for i := range g.Candidates {
		if g.Candidates[i].ID == candidateID {
			return &g.Candidates[i]
		}
	}
	return nil
}

// Remove deletes the candidate with the given id, preserving order.
// Returns true if a candidate was removed.
func (g *PendingMatchGroup) Remove(candidateID string) bool {
	for i := range g.Candidates {
		if g.Candidates[i].ID == candidateID {
			g.Candidates = append(g.Candidates[:i], g.Candidates[i+1:]...)
			return true
		}
	}
	return false
}
