// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package agents

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/matcher"
	"github.com/gamarr/gamarr/internal/models"
)

//go:embed repack_catalog.json
var bundledCatalog []byte

// RepackAgent searches a curated repack catalog. Unlike the live agents it
// filters a periodically refreshed index locally instead of issuing a
// per-search remote query.
type RepackAgent struct {
	cache    *sourceCache
	enhancer *Enhancer
}

func NewRepackAgent(indexURL, cachePath string, ttl, timeout time.Duration, enhancer *Enhancer) *RepackAgent {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var fallback []RepackEntry
	if err := json.Unmarshal(bundledCatalog, &fallback); err != nil {
		log.Error().Err(err).Msg("Bundled repack catalog is corrupt")
	}

	return &RepackAgent{
		cache:    newSourceCache(indexURL, cachePath, ttl, &http.Client{Timeout: timeout}, fallback),
		enhancer: enhancer,
	}
}

func (a *RepackAgent) Name() string  { return "repack" }
func (a *RepackAgent) Priority() int { return 50 }

func (a *RepackAgent) ReleaseTypes() []models.ReleaseType {
	return []models.ReleaseType{models.ReleaseTypeRepack}
}

// IsAvailable is always true: the bundled catalog guarantees a floor even
// with no index configured.
func (a *RepackAgent) IsAvailable() bool { return true }

func (a *RepackAgent) Search(ctx context.Context, query string) SearchResult {
	queryNorm := matcher.NormalizeTitle(query)
	if queryNorm == "" {
		return failed(errors.New("empty query"))
	}
	queryTokens := strings.Fields(queryNorm)

	entries := a.cache.Entries(ctx)
	var candidates []models.GameDownloadCandidate
	for _, entry := range entries {
		if !catalogMatch(queryTokens, matcher.NormalizeTitle(entry.Title)) {
			continue
		}
		c := models.GameDownloadCandidate{
			Title:            entry.Title,
			Source:           a.Name(),
			SizeBytes:        entry.SizeBytes,
			Size:             humanSize(entry.SizeBytes),
			ReleaseType:      models.ReleaseTypeRepack,
			SourceTrustLevel: models.TrustLevelTrusted,
		}
		if entry.Magnet != "" {
			ApplyURL(&c, entry.Magnet)
		}
		if entry.URL != "" {
			ApplyURL(&c, entry.URL)
		}
		candidates = append(candidates, c)
	}

	log.Debug().Str("query", query).Int("catalog", len(entries)).Int("hits", len(candidates)).Msg("Repack catalog search completed")
	return SearchResult{Success: true, Candidates: candidates}
}

func (a *RepackAgent) SearchEnhanced(ctx context.Context, query string, opts EnhancedOptions) SearchResult {
	return a.enhancer.Enhance(a.Name(), a.Search(ctx, query), opts)
}

func (a *RepackAgent) GetDownloadLinks(ctx context.Context, pageURL string) ([]models.GameDownloadCandidate, error) {
	return nil, errors.New("repack catalog entries carry their links inline")
}

// catalogMatch is a cheap pre-filter; the real matching happens in the
// enhancer. Requires every query token in the entry title.
func catalogMatch(queryTokens []string, entryNorm string) bool {
	if len(queryTokens) == 0 || entryNorm == "" {
		return false
	}
	entrySet := make(map[string]struct{})
	for _, t := range strings.Fields(entryNorm) {
		entrySet[t] = struct{}{}
	}
	for _, t := range queryTokens {
		if _, ok := entrySet[t]; !ok {
			return false
		}
	}
	return true
}
