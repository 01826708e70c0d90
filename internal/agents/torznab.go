// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package agents

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/buildinfo"
	"github.com/gamarr/gamarr/internal/models"
)

// pcGamesCategory is the torznab category bucket for PC games.
const pcGamesCategory = "4050"

// TorznabAgent queries a torznab-compatible indexer aggregator
// (Jackett/Prowlarr "all" endpoint or a single indexer feed).
type TorznabAgent struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	enhancer *Enhancer
}

func NewTorznabAgent(baseURL, apiKey string, timeout time.Duration, enhancer *Enhancer) *TorznabAgent {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TorznabAgent{
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		enhancer: enhancer,
	}
}

func (a *TorznabAgent) Name() string  { return "torznab" }
func (a *TorznabAgent) Priority() int { return 40 }

func (a *TorznabAgent) ReleaseTypes() []models.ReleaseType {
	return []models.ReleaseType{models.ReleaseTypeScene, models.ReleaseTypeRepack, models.ReleaseTypeP2P}
}

func (a *TorznabAgent) IsAvailable() bool {
	return a.baseURL != "" && a.apiKey != ""
}

func (a *TorznabAgent) Search(ctx context.Context, query string) SearchResult {
	if !a.IsAvailable() {
		return failed(errors.New("torznab agent is not configured"))
	}

	candidates, err := a.search(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("Torznab search failed")
		return failed(err)
	}
	return SearchResult{Success: true, Candidates: candidates}
}

func (a *TorznabAgent) SearchEnhanced(ctx context.Context, query string, opts EnhancedOptions) SearchResult {
	return a.enhancer.Enhance(a.Name(), a.Search(ctx, query), opts)
}

// GetDownloadLinks is a no-op for torznab: the feed already carries usable
// enclosure links.
func (a *TorznabAgent) GetDownloadLinks(ctx context.Context, pageURL string) ([]models.GameDownloadCandidate, error) {
	return nil, errors.New("torznab feeds do not use landing pages")
}

func (a *TorznabAgent) search(ctx context.Context, query string) ([]models.GameDownloadCandidate, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid torznab base url")
	}

	q := u.Query()
	q.Set("t", "search")
	q.Set("cat", pcGamesCategory)
	q.Set("apikey", a.apiKey)
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build torznab request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "torznab request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("torznab returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read torznab response")
	}

	var feed torznabFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, errors.Wrap(err, "failed to parse torznab feed")
	}

	candidates := make([]models.GameDownloadCandidate, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		c := a.itemToCandidate(item)
		if c.Title == "" {
			continue
		}
		candidates = append(candidates, c)
	}

	log.Debug().Str("query", query).Int("hits", len(candidates)).Msg("Torznab search completed")
	return candidates, nil
}

func (a *TorznabAgent) itemToCandidate(item torznabItem) models.GameDownloadCandidate {
	c := models.GameDownloadCandidate{
		Title:            item.Title,
		Source:           a.Name(),
		Indexer:          item.Jackettindexer,
		GUID:             item.GUID,
		Category:         item.Category,
		SizeBytes:        item.Size,
		Size:             humanSize(item.Size),
		ReleaseType:      TagReleaseType(item.Title),
		SourceTrustLevel: models.TrustLevelSafe,
	}

	for _, attr := range item.Attrs {
		switch attr.Name {
		case "seeders":
			c.Seeders, _ = strconv.Atoi(attr.Value)
		case "peers":
			c.Leechers, _ = strconv.Atoi(attr.Value)
		case "grabs":
			c.Grabs, _ = strconv.Atoi(attr.Value)
		case "magneturl":
			c.MagnetURL = attr.Value
		}
	}
	// torznab "peers" counts seeders too
	if c.Leechers >= c.Seeders && c.Seeders > 0 {
		c.Leechers -= c.Seeders
	}

	if item.Enclosure.URL != "" {
		ApplyURL(&c, item.Enclosure.URL)
	}
	if item.Link != "" && item.Link != item.Enclosure.URL {
		ApplyURL(&c, item.Link)
	}
	return c
}

func humanSize(bytes int64) string {
	if bytes <= 0 {
		return ""
	}
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

type torznabFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []torznabItem `xml:"item"`
	} `xml:"channel"`
}

type torznabItem struct {
	Title          string `xml:"title"`
	GUID           string `xml:"guid"`
	Link           string `xml:"link"`
	Size           int64  `xml:"size"`
	Category       string `xml:"category"`
	Jackettindexer string `xml:"jackettindexer"`
	Enclosure      struct {
		URL string `xml:"url,attr"`
	} `xml:"enclosure"`
	Attrs []torznabAttr `xml:"attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}
