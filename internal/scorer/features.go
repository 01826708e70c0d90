// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scorer layers a trained probability model over the heuristic
// match score, trading recall for precision on borderline candidates.
package scorer

import (
	"regexp"
	"strconv"

	"github.com/gamarr/gamarr/internal/matcher"
	"github.com/gamarr/gamarr/internal/models"
)

// Features is the numeric input to the model. Protocol-health values come
// from the matcher's reason strings so the scorer sees exactly what the
// heuristic saw, not re-fetched values.
type Features struct {
	Heuristic      float64 `json:"heuristic"`
	TokenJaccard   float64 `json:"tokenJaccard"`
	TrigramJaccard float64 `json:"trigramJaccard"`
	LengthRatio    float64 `json:"lengthRatio"`
	Seeders        float64 `json:"seeders"`
	Leechers       float64 `json:"leechers"`
	Grabs          float64 `json:"grabs"`
}

var (
	seedersRe  = regexp.MustCompile(`^seeders (\d+)$`)
	leechersRe = regexp.MustCompile(`^leechers (\d+)$`)
	grabsRe    = regexp.MustCompile(`^grabs (\d+)$`)
)

// Extract derives features for one (game, candidate) pair.
func Extract(game models.CanonicalGame, c models.GameDownloadCandidate) Features {
	f := Features{Heuristic: c.MatchScore}

	gameNorm := matcher.NormalizeTitle(game.Name)
	candNorm := matcher.NormalizeTitle(c.Title)

	f.TokenJaccard = tokenJaccard(gameNorm, candNorm)
	f.TrigramJaccard = trigramJaccard(gameNorm, candNorm)
	f.LengthRatio = lengthRatio(gameNorm, candNorm)

	for _, reason := range c.MatchReasons {
		if m := seedersRe.FindStringSubmatch(reason); m != nil {
			f.Seeders = parseCount(m[1])
		} else if m := leechersRe.FindStringSubmatch(reason); m != nil {
			f.Leechers = parseCount(m[1])
		} else if m := grabsRe.FindStringSubmatch(reason); m != nil {
			f.Grabs = parseCount(m[1])
		}
	}
	return f
}

func parseCount(s string) float64 {
	n, _ := strconv.Atoi(s)
	return float64(n)
}

func tokenJaccard(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	return jaccard(as, bs)
}

// trigramJaccard compares overlapping character trigrams, which tolerates
// minor misspellings and abbreviations better than whole tokens.
func trigramJaccard(a, b string) float64 {
	return jaccard(trigramSet(a), trigramSet(b))
}

func lengthRatio(a, b string) float64 {
	la, lb := float64(len(a)), float64(len(b))
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return la / lb
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range matcher.Tokens(s) {
		set[t] = struct{}{}
	}
	return set
}

func trigramSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	runes := []rune(s)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
