// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package agents

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/buildinfo"
)

// RepackEntry is one release in a curated repack catalog.
type RepackEntry struct {
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Magnet    string    `json:"magnet,omitempty"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// sourceCache keeps a repack catalog warm. Resolution order: fresh in-memory
// copy, remote fetch (persisted to disk as last-known-good), the on-disk
// copy from a previous run, and finally a bundled static list so the agent
// degrades instead of disappearing when the index is unreachable.
type sourceCache struct {
	url       string
	ttl       time.Duration
	cachePath string
	client    *http.Client
	fallback  []RepackEntry

	mu        sync.Mutex
	entries   []RepackEntry
	fetchedAt time.Time
}

func newSourceCache(url, cachePath string, ttl time.Duration, client *http.Client, fallback []RepackEntry) *sourceCache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &sourceCache{
		url:       url,
		ttl:       ttl,
		cachePath: cachePath,
		client:    client,
		fallback:  fallback,
	}
}

func (s *sourceCache) Entries(ctx context.Context) []RepackEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries != nil && time.Since(s.fetchedAt) < s.ttl {
		return s.entries
	}

	entries, err := s.fetch(ctx)
	if err == nil {
		s.entries = entries
		s.fetchedAt = time.Now()
		s.persist(entries)
		return entries
	}
	log.Warn().Err(err).Str("url", s.url).Msg("Repack catalog fetch failed, using cached copy")

	// A stale in-memory copy beats hitting disk again.
	if s.entries != nil {
		return s.entries
	}

	if entries := s.loadDisk(); entries != nil {
		s.entries = entries
		s.fetchedAt = time.Now().Add(s.ttl/2 - s.ttl) // retry at half TTL
		return entries
	}

	return s.fallback
}

func (s *sourceCache) fetch(ctx context.Context) ([]RepackEntry, error) {
	if s.url == "" {
		return nil, errors.New("no catalog url configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build catalog request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "catalog request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var entries []RepackEntry
	if err := json.NewDecoder(io.LimitReader(resp.Body, 50<<20)).Decode(&entries); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	if len(entries) == 0 {
		return nil, errors.New("catalog is empty")
	}
	return entries, nil
}

func (s *sourceCache) persist(entries []RepackEntry) {
	if s.cachePath == "" {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.cachePath, data, 0644); err != nil {
		log.Warn().Err(err).Str("path", s.cachePath).Msg("Failed to persist repack catalog")
	}
}

func (s *sourceCache) loadDisk() []RepackEntry {
	if s.cachePath == "" {
		return nil
	}
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return nil
	}
	var entries []RepackEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("path", s.cachePath).Msg("Discarding corrupt repack catalog cache")
		return nil
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}
