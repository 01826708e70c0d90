// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package agents implements the search agents that discover download
// candidates from external sources. Agents are stateless aside from cached
// HTTP credentials; they are constructed once from configuration and live
// for the process lifetime.
package agents

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/matcher"
	"github.com/gamarr/gamarr/internal/models"
	"github.com/gamarr/gamarr/internal/scorer"
)

// SearchResult is the uniform outcome of one agent search. A failed agent
// reports Success=false with an error string; it never propagates an error
// that could abort the aggregate search.
type SearchResult struct {
	Success    bool                           `json:"success"`
	Candidates []models.GameDownloadCandidate `json:"candidates"`
	Error      string                         `json:"error,omitempty"`
}

// EnhancedOptions carry the canonical game context for SearchEnhanced.
type EnhancedOptions struct {
	Game          models.CanonicalGame
	Platform      string
	MinMatchScore float64
}

// SearchAgent is the capability contract every agent satisfies.
type SearchAgent interface {
	// Name identifies the agent in candidate sources and logs.
	Name() string
	// Priority breaks ranking ties between agents; higher wins.
	Priority() int
	// ReleaseTypes declares what this agent's source can produce.
	ReleaseTypes() []models.ReleaseType
	// IsAvailable reports whether configuration and credentials are present.
	IsAvailable() bool
	Search(ctx context.Context, query string) SearchResult
	SearchEnhanced(ctx context.Context, query string, opts EnhancedOptions) SearchResult
	// GetDownloadLinks resolves a landing page into partial candidates for
	// sources that return an HTML page rather than a direct link.
	GetDownloadLinks(ctx context.Context, pageURL string) ([]models.GameDownloadCandidate, error)
}

// Enhancer is the shared matching step embedded in every agent. It runs raw
// hits through the candidate matcher and, when a model is loaded, through
// the hybrid scorer.
type Enhancer struct {
	Matcher *matcher.Matcher
	Model   *scorer.Model
}

// Enhance filters a raw search result down to candidates that match the
// canonical game. The heuristic decision gates visibility; when a model is
// present its triage threshold additionally prunes low-probability hits.
func (e *Enhancer) Enhance(agent string, result SearchResult, opts EnhancedOptions) SearchResult {
	if !result.Success || len(result.Candidates) == 0 {
		return result
	}

	matchOpts := matcher.Options{
		PreferredPlatform: opts.Platform,
		MinMatchScore:     opts.MinMatchScore,
	}

	kept := make([]models.GameDownloadCandidate, 0, len(result.Candidates))
	for i := range result.Candidates {
		c := result.Candidates[i]

		if err := c.Validate(); err != nil {
			log.Debug().Str("agent", agent).Str("title", c.Title).Err(err).Msg("Dropping invalid candidate")
			continue
		}

		res := e.Matcher.Match(opts.Game, &c, matchOpts)
		if !res.Matched {
			log.Trace().Str("agent", agent).Str("title", c.Title).Str("reason", res.RejectReason).Msg("Candidate rejected")
			continue
		}

		if e.Model != nil {
			d := e.Model.Decide(scorer.Extract(opts.Game, c))
			if !d.Triage {
				log.Trace().Str("agent", agent).Str("title", c.Title).Float64("probability", d.Probability).Msg("Candidate below triage threshold")
				continue
			}
			c.MatchReasons = append(c.MatchReasons, fmt.Sprintf("model probability %.2f", d.Probability))
		}

		kept = append(kept, c)
	}

	result.Candidates = kept
	return result
}

// failed wraps an agent error into the absorbed failure shape.
func failed(err error) SearchResult {
	return SearchResult{Success: false, Candidates: []models.GameDownloadCandidate{}, Error: err.Error()}
}
