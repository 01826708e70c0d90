// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/buildinfo"
	"github.com/gamarr/gamarr/internal/models"
)

// RerankerClient calls an external pairwise comparator that scores
// (game name, candidate title) pairs in one batch. Heavier than the local
// matcher; applied to survivors just before truncation.
type RerankerClient struct {
	baseURL string
	client  *http.Client
}

func NewRerankerClient(baseURL string, timeout time.Duration) *RerankerClient {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RerankerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type rerankPair struct {
	Query string `json:"query"`
	Text  string `json:"text"`
	ID    string `json:"id"`
}

type rerankRequest struct {
	Pairs []rerankPair `json:"pairs"`
}

type rerankScore struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type rerankResponse struct {
	Scores []rerankScore `json:"scores"`
}

// Rerank blends each candidate's heuristic score with the comparator's
// probability, in place. A nil client or any transport failure leaves the
// candidates untouched; reranking is best-effort.
func (r *RerankerClient) Rerank(ctx context.Context, gameName string, candidates []models.GameDownloadCandidate) []models.GameDownloadCandidate {
	if r == nil || len(candidates) == 0 {
		return candidates
	}

	scores, err := r.batchScore(ctx, gameName, candidates)
	if err != nil {
		log.Warn().Err(err).Str("game", gameName).Msg("Reranker unavailable, keeping heuristic order")
		return candidates
	}

	for i := range candidates {
		score, ok := scores[candidates[i].ID]
		if !ok {
			continue
		}
		candidates[i].MatchScore = (candidates[i].MatchScore + 100*score) / 2
		candidates[i].MatchReasons = append(candidates[i].MatchReasons, fmt.Sprintf("reranker score %.2f", score))
	}
	return candidates
}

func (r *RerankerClient) batchScore(ctx context.Context, gameName string, candidates []models.GameDownloadCandidate) (map[string]float64, error) {
	reqBody := rerankRequest{Pairs: make([]rerankPair, 0, len(candidates))}
	for _, c := range candidates {
		reqBody.Pairs = append(reqBody.Pairs, rerankPair{Query: gameName, Text: c.Title, ID: c.ID})
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode rerank request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/batch_score", bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build rerank request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "rerank request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("reranker returned status %d", resp.StatusCode)
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "failed to parse rerank response")
	}

	scores := make(map[string]float64, len(out.Scores))
	for _, s := range out.Scores {
		scores[s.ID] = s.Score
	}
	return scores, nil
}
