// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/buildinfo"
	"github.com/gamarr/gamarr/internal/models"
)

// DirectRipAgent queries a direct-rip catalog whose API returns landing
// pages. Each hit needs a second GetDownloadLinks pass to resolve the page
// into concrete file-host links.
type DirectRipAgent struct {
	baseURL  string
	client   *http.Client
	enhancer *Enhancer
}

func NewDirectRipAgent(baseURL string, timeout time.Duration, enhancer *Enhancer) *DirectRipAgent {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &DirectRipAgent{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		enhancer: enhancer,
	}
}

func (a *DirectRipAgent) Name() string  { return "directrip" }
func (a *DirectRipAgent) Priority() int { return 30 }

func (a *DirectRipAgent) ReleaseTypes() []models.ReleaseType {
	return []models.ReleaseType{models.ReleaseTypeRip}
}

func (a *DirectRipAgent) IsAvailable() bool {
	return a.baseURL != ""
}

func (a *DirectRipAgent) Search(ctx context.Context, query string) SearchResult {
	if !a.IsAvailable() {
		return failed(errors.New("directrip agent is not configured"))
	}

	candidates, err := a.search(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Direct-rip search failed")
		return failed(err)
	}
	return SearchResult{Success: true, Candidates: candidates}
}

func (a *DirectRipAgent) SearchEnhanced(ctx context.Context, query string, opts EnhancedOptions) SearchResult {
	return a.enhancer.Enhance(a.Name(), a.Search(ctx, query), opts)
}

type directRipHit struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"sizeBytes"`
}

func (a *DirectRipAgent) search(ctx context.Context, query string) ([]models.GameDownloadCandidate, error) {
	u := fmt.Sprintf("%s/api/games?search=%s", a.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build directrip request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "directrip request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("directrip returned status %d", resp.StatusCode)
	}

	var hits []directRipHit
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&hits); err != nil {
		return nil, errors.Wrap(err, "failed to parse directrip response")
	}

	candidates := make([]models.GameDownloadCandidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Title == "" || hit.URL == "" {
			continue
		}
		c := models.GameDownloadCandidate{
			Title:            hit.Title,
			Source:           a.Name(),
			Size:             hit.Size,
			SizeBytes:        hit.SizeBytes,
			ReleaseType:      models.ReleaseTypeRip,
			SourceTrustLevel: models.TrustLevelSafe,
		}
		ApplyURL(&c, a.absoluteURL(hit.URL))
		candidates = append(candidates, c)
	}

	log.Debug().Str("query", query).Int("hits", len(candidates)).Msg("Direct-rip search completed")
	return candidates, nil
}

var hrefRe = regexp.MustCompile(`href=["']([^"']+)["']`)

// GetDownloadLinks fetches a landing page and extracts every link that
// classifies as a file-host download.
func (a *DirectRipAgent) GetDownloadLinks(ctx context.Context, pageURL string) ([]models.GameDownloadCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build page request")
	}
	// Some file hosts block non-browser clients outright.
	req.Header.Set("User-Agent", buildinfo.BrowserUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "page request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read page")
	}

	seen := make(map[string]struct{})
	var out []models.GameDownloadCandidate
	for _, m := range hrefRe.FindAllStringSubmatch(string(body), -1) {
		link := a.absoluteURL(m[1])
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		kind := ClassifyURL(link)
		if kind != URLKindDirect && kind != URLKindPage && kind != URLKindMagnet {
			continue
		}

		c := models.GameDownloadCandidate{
			Source:           a.Name(),
			SourceTrustLevel: models.TrustLevelSafe,
			ReleaseType:      models.ReleaseTypeRip,
		}
		ApplyURL(&c, link)
		out = append(out, c)
	}

	log.Debug().Str("page", pageURL).Int("links", len(out)).Msg("Extracted download links")
	return out, nil
}

func (a *DirectRipAgent) absoluteURL(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.IsAbs() {
		return link
	}
	base, err := url.Parse(a.baseURL)
	if err != nil {
		return link
	}
	return base.ResolveReference(u).String()
}
