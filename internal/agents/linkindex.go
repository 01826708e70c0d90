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
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/buildinfo"
	"github.com/gamarr/gamarr/internal/models"
)

// LinkIndexAgent queries a community link index where anyone can post
// download links. Posts are filtered against a curated uploader allow-list;
// a missing uploader field is allowed, favoring recall when the source
// provides no attribution at all.
type LinkIndexAgent struct {
	baseURL  string
	trusted  map[string]struct{}
	client   *http.Client
	enhancer *Enhancer
}

func NewLinkIndexAgent(baseURL string, trustedUploaders []string, timeout time.Duration, enhancer *Enhancer) *LinkIndexAgent {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	trusted := make(map[string]struct{}, len(trustedUploaders))
	for _, u := range trustedUploaders {
		trusted[strings.ToLower(strings.TrimSpace(u))] = struct{}{}
	}
	return &LinkIndexAgent{
		baseURL:  baseURL,
		trusted:  trusted,
		client:   &http.Client{Timeout: timeout},
		enhancer: enhancer,
	}
}

func (a *LinkIndexAgent) Name() string  { return "linkindex" }
func (a *LinkIndexAgent) Priority() int { return 20 }

func (a *LinkIndexAgent) ReleaseTypes() []models.ReleaseType {
	return []models.ReleaseType{models.ReleaseTypeP2P, models.ReleaseTypeScene, models.ReleaseTypeRepack}
}

func (a *LinkIndexAgent) IsAvailable() bool {
	return a.baseURL != ""
}

func (a *LinkIndexAgent) Search(ctx context.Context, query string) SearchResult {
	if !a.IsAvailable() {
		return failed(errors.New("linkindex agent is not configured"))
	}

	candidates, err := a.search(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Link-index search failed")
		return failed(err)
	}
	return SearchResult{Success: true, Candidates: candidates}
}

func (a *LinkIndexAgent) SearchEnhanced(ctx context.Context, query string, opts EnhancedOptions) SearchResult {
	return a.enhancer.Enhance(a.Name(), a.Search(ctx, query), opts)
}

func (a *LinkIndexAgent) GetDownloadLinks(ctx context.Context, pageURL string) ([]models.GameDownloadCandidate, error) {
	return nil, errors.New("linkindex posts carry their links inline")
}

type linkIndexPost struct {
	Title    string   `json:"title"`
	Uploader string   `json:"uploader"`
	Links    []string `json:"links"`
	Magnet   string   `json:"magnet"`
	Size     int64    `json:"size"`
}

func (a *LinkIndexAgent) search(ctx context.Context, query string) ([]models.GameDownloadCandidate, error) {
	u := fmt.Sprintf("%s/posts?q=%s", a.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build linkindex request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "linkindex request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("linkindex returned status %d", resp.StatusCode)
	}

	var posts []linkIndexPost
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&posts); err != nil {
		return nil, errors.Wrap(err, "failed to parse linkindex response")
	}

	candidates := make([]models.GameDownloadCandidate, 0, len(posts))
	rejected := 0
	for _, post := range posts {
		trust, ok := a.uploaderTrust(post.Uploader)
		if !ok {
			rejected++
			continue
		}

		c := models.GameDownloadCandidate{
			Title:            post.Title,
			Source:           a.Name(),
			Uploader:         post.Uploader,
			SizeBytes:        post.Size,
			Size:             humanSize(post.Size),
			ReleaseType:      TagReleaseType(post.Title),
			SourceTrustLevel: trust,
		}
		if post.Magnet != "" {
			ApplyURL(&c, post.Magnet)
		}
		for _, link := range post.Links {
			ApplyURL(&c, link)
		}
		candidates = append(candidates, c)
	}

	log.Debug().Str("query", query).Int("hits", len(candidates)).Int("untrusted", rejected).Msg("Link-index search completed")
	return candidates, nil
}

// uploaderTrust applies the allow-list. Empty allow-list means no filtering.
func (a *LinkIndexAgent) uploaderTrust(uploader string) (models.TrustLevel, bool) {
	if uploader == "" {
		return models.TrustLevelUnknown, true
	}
	if len(a.trusted) == 0 {
		return models.TrustLevelUnknown, true
	}
	if _, ok := a.trusted[strings.ToLower(strings.TrimSpace(uploader))]; ok {
		return models.TrustLevelTrusted, true
	}
	return models.TrustLevelUnsafe, false
}
