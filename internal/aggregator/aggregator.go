// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package aggregator fans one canonical game out to every enabled agent,
// merges the results into a ranked, deduplicated pending group, and manages
// the approval lifecycle.
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gamarr/gamarr/internal/agents"
	"github.com/gamarr/gamarr/internal/metrics"
	"github.com/gamarr/gamarr/internal/models"
)

// ErrNoGroup is returned when no pending group exists for a game.
var ErrNoGroup = errors.New("no pending match group for game")

// ErrNoCandidate is returned when a candidate id is not in the group.
var ErrNoCandidate = errors.New("candidate not found in pending group")

// ErrNoAgent is returned when a named agent is not registered.
var ErrNoAgent = errors.New("no such search agent")

// DownloadStarter is the orchestrator surface the aggregator needs.
type DownloadStarter interface {
	Start(ctx context.Context, game models.CanonicalGame, c models.GameDownloadCandidate) (models.DDLDownload, error)
}

// Options tune one aggregate search.
type Options struct {
	Platform      string
	MinMatchScore float64
}

// Aggregator coordinates the search agents. Pending groups are held in
// memory; a restart clears outstanding approvals.
type Aggregator struct {
	agents     []agents.SearchAgent
	filter     *Filter
	reranker   *RerankerClient
	starter    DownloadStarter
	maxResults int
	metrics    *metrics.Metrics

	mu     sync.RWMutex
	groups map[int64]*models.PendingMatchGroup
}

func New(searchAgents []agents.SearchAgent, filter *Filter, reranker *RerankerClient, starter DownloadStarter, maxResults int, m *metrics.Metrics) *Aggregator {
	if maxResults <= 0 {
		maxResults = 25
	}
	return &Aggregator{
		agents:     searchAgents,
		filter:     filter,
		reranker:   reranker,
		starter:    starter,
		maxResults: maxResults,
		metrics:    m,
		groups:     make(map[int64]*models.PendingMatchGroup),
	}
}

// Search dispatches searchEnhanced to all available agents in parallel,
// waits for every one, and stores the ranked survivors as the game's
// pending group, replacing any prior group.
func (a *Aggregator) Search(ctx context.Context, game models.CanonicalGame, opts Options) (*models.PendingMatchGroup, error) {
	enhanced := agents.EnhancedOptions{
		Game:          game,
		Platform:      opts.Platform,
		MinMatchScore: opts.MinMatchScore,
	}

	available := make([]agents.SearchAgent, 0, len(a.agents))
	for _, agent := range a.agents {
		if agent.IsAvailable() {
			available = append(available, agent)
		} else {
			log.Debug().Str("agent", agent.Name()).Msg("Skipping unavailable agent")
		}
	}
	if len(available) == 0 {
		return nil, errors.New("no search agents are available")
	}

	results := make([]agents.SearchResult, len(available))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range available {
		i, agent := i, agent
		g.Go(func() error {
			started := time.Now()
			results[i] = agent.SearchEnhanced(gctx, game.Name, enhanced)
			a.metrics.ObserveAgentSearch(agent.Name(), results[i].Success, time.Since(started))
			// Agent failures are already absorbed into the result shape.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []models.GameDownloadCandidate
	for i, result := range results {
		if !result.Success {
			log.Warn().Str("agent", available[i].Name()).Str("error", result.Error).Msg("Agent search failed")
			continue
		}
		merged = append(merged, result.Candidates...)
	}

	merged = a.applyFilter(merged)
	merged = dedupe(merged, a.agentPriorities())
	merged = a.reranker.Rerank(ctx, game.Name, merged)
	rank(merged)

	if len(merged) > a.maxResults {
		merged = merged[:a.maxResults]
	}

	group := &models.PendingMatchGroup{
		IGDBID:     game.IGDBID,
		GameName:   game.Name,
		CoverURL:   game.CoverURL,
		Candidates: merged,
		CreatedAt:  time.Now(),
	}

	a.mu.Lock()
	if len(merged) > 0 {
		a.groups[game.IGDBID] = group
	} else {
		delete(a.groups, game.IGDBID)
	}
	a.mu.Unlock()

	a.metrics.SetPendingGroups(a.groupCount())
	log.Info().Str("game", game.Name).Int("agents", len(available)).Int("candidates", len(merged)).Msg("Search cycle completed")
	return group, nil
}

func (a *Aggregator) applyFilter(in []models.GameDownloadCandidate) []models.GameDownloadCandidate {
	if a.filter == nil {
		return in
	}
	out := in[:0]
	for i := range in {
		if a.filter.Keep(&in[i]) {
			out = append(out, in[i])
		}
	}
	return out
}

func (a *Aggregator) agentPriorities() map[string]int {
	priorities := make(map[string]int, len(a.agents))
	for _, agent := range a.agents {
		priorities[agent.Name()] = agent.Priority()
	}
	return priorities
}

// dedupe collapses candidates sharing a dedup key, keeping the highest
// match score and breaking ties by agent priority. IDs are assigned here so
// every surviving candidate is addressable by the API.
func dedupe(in []models.GameDownloadCandidate, priorities map[string]int) []models.GameDownloadCandidate {
	best := make(map[string]int, len(in))
	out := make([]models.GameDownloadCandidate, 0, len(in))

	for i := range in {
		key := in[i].DedupKey()
		idx, seen := best[key]
		if !seen {
			in[i].ID = in[i].HashID()
			best[key] = len(out)
			out = append(out, in[i])
			continue
		}

		current := &out[idx]
		replace := in[i].MatchScore > current.MatchScore ||
			(in[i].MatchScore == current.MatchScore && priorities[in[i].Source] > priorities[current.Source])
		if replace {
			id := current.ID
			out[idx] = in[i]
			out[idx].ID = id
		}
	}
	return out
}

// rank sorts by match score descending, platform score breaking ties.
func rank(candidates []models.GameDownloadCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].MatchScore != candidates[j].MatchScore {
			return candidates[i].MatchScore > candidates[j].MatchScore
		}
		return candidates[i].PlatformScore > candidates[j].PlatformScore
	})
}

// Groups returns all pending groups, newest first.
func (a *Aggregator) Groups() []models.PendingMatchGroup {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.PendingMatchGroup, 0, len(a.groups))
	for _, g := range a.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Group returns one pending group by game id.
func (a *Aggregator) Group(igdbID int64) (models.PendingMatchGroup, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	g, ok := a.groups[igdbID]
	if !ok {
		return models.PendingMatchGroup{}, ErrNoGroup
	}
	return *g, nil
}

// Approve selects one candidate for download and consumes the whole group:
// only one release is downloaded per game per cycle, so the remaining
// candidates are discarded along with it. A failed start leaves the group
// intact so another candidate can be approved instead.
func (a *Aggregator) Approve(ctx context.Context, igdbID int64, candidateID string) (models.DDLDownload, error) {
	a.mu.RLock()
	group, ok := a.groups[igdbID]
	if !ok {
		a.mu.RUnlock()
		return models.DDLDownload{}, ErrNoGroup
	}
	candidate := group.Find(candidateID)
	if candidate == nil {
		a.mu.RUnlock()
		return models.DDLDownload{}, ErrNoCandidate
	}
	chosen := *candidate
	game := models.CanonicalGame{IGDBID: group.IGDBID, Name: group.GameName, CoverURL: group.CoverURL}
	a.mu.RUnlock()

	if err := a.resolveLinks(ctx, &chosen); err != nil {
		return models.DDLDownload{}, err
	}

	dl, err := a.starter.Start(ctx, game, chosen)
	if err != nil {
		return models.DDLDownload{}, errors.Wrap(err, "failed to start download for approved candidate")
	}

	a.mu.Lock()
	delete(a.groups, igdbID)
	a.mu.Unlock()
	a.metrics.SetPendingGroups(a.groupCount())

	log.Info().Str("game", group.GameName).Str("candidate", chosen.Title).Str("download", dl.ID).Msg("Candidate approved")
	return dl, nil
}

// resolveLinks turns an info-page-only candidate into a fetchable one by
// asking the owning agent for the links behind its landing page.
func (a *Aggregator) resolveLinks(ctx context.Context, c *models.GameDownloadCandidate) error {
	if c.DirectDownloadURL != "" || c.TorrentURL != "" || c.InfoURL == "" {
		return nil
	}

	agent, err := a.findAgent(c.Source)
	if err != nil {
		// Source without a registered agent; the orchestrator reports
		// the candidate as unfetchable.
		return nil
	}

	links, err := agent.GetDownloadLinks(ctx, c.InfoURL)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve download links for %q", c.Title)
	}

	for i := range links {
		if links[i].DirectDownloadURL != "" {
			c.DirectDownloadURL = links[i].DirectDownloadURL
			c.HasDirectDownload = true
			return nil
		}
	}
	for i := range links {
		if links[i].TorrentURL != "" {
			c.TorrentURL = links[i].TorrentURL
			return nil
		}
	}
	return nil
}

// Reject removes a single candidate; the group persists while others remain.
func (a *Aggregator) Reject(igdbID int64, candidateID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	group, ok := a.groups[igdbID]
	if !ok {
		return ErrNoGroup
	}
	if !group.Remove(candidateID) {
		return ErrNoCandidate
	}
	if len(group.Candidates) == 0 {
		delete(a.groups, igdbID)
	}
	return nil
}

// Dismiss drops the entire group without downloading anything.
func (a *Aggregator) Dismiss(igdbID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.groups[igdbID]; !ok {
		return ErrNoGroup
	}
	delete(a.groups, igdbID)
	return nil
}

// AgentInfo describes one registered agent.
type AgentInfo struct {
	Name         string               `json:"name"`
	Priority     int                  `json:"priority"`
	Available    bool                 `json:"available"`
	ReleaseTypes []models.ReleaseType `json:"releaseTypes"`
}

// Agents lists every registered agent in priority order.
func (a *Aggregator) Agents() []AgentInfo {
	out := make([]AgentInfo, 0, len(a.agents))
	for _, agent := range a.agents {
		out = append(out, AgentInfo{
			Name:         agent.Name(),
			Priority:     agent.Priority(),
			Available:    agent.IsAvailable(),
			ReleaseTypes: agent.ReleaseTypes(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func (a *Aggregator) findAgent(name string) (agents.SearchAgent, error) {
	for _, agent := range a.agents {
		if agent.Name() == name {
			return agent, nil
		}
	}
	return nil, ErrNoAgent
}

// SearchAgent runs a raw query against one agent without match filtering.
func (a *Aggregator) SearchAgent(ctx context.Context, name, query string) (agents.SearchResult, error) {
	agent, err := a.findAgent(name)
	if err != nil {
		return agents.SearchResult{}, err
	}

	started := time.Now()
	result := agent.Search(ctx, query)
	a.metrics.ObserveAgentSearch(agent.Name(), result.Success, time.Since(started))
	return result, nil
}

// SearchAgentEnhanced runs one agent through the full matching pipeline.
func (a *Aggregator) SearchAgentEnhanced(ctx context.Context, name string, game models.CanonicalGame, opts Options) (agents.SearchResult, error) {
	agent, err := a.findAgent(name)
	if err != nil {
		return agents.SearchResult{}, err
	}

	started := time.Now()
	result := agent.SearchEnhanced(ctx, game.Name, agents.EnhancedOptions{
		Game:          game,
		Platform:      opts.Platform,
		MinMatchScore: opts.MinMatchScore,
	})
	a.metrics.ObserveAgentSearch(agent.Name(), result.Success, time.Since(started))
	return result, nil
}

func (a *Aggregator) groupCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.groups)
}
