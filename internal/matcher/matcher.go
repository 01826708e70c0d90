// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matcher decides whether a raw search hit plausibly refers to a
// canonical game and computes the heuristic match score all agents share.
package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/moistari/rls"

	"github.com/gamarr/gamarr/internal/models"
)

// DefaultSimilarityFloor is used when configuration supplies no floor.
const DefaultSimilarityFloor = 0.82

// Options tune one match evaluation.
type Options struct {
	// PreferredPlatform drops candidates whose detected platform disagrees.
	PreferredPlatform string
	// MinMatchScore rejects candidates scoring below it. Zero disables.
	MinMatchScore float64
}

// Result is the outcome of matching one candidate against one game.
type Result struct {
	Matched       bool
	Score         float64
	Similarity    float64
	Platform      string
	PlatformScore float64
	Reasons       []string
	RejectReason  string
}

// Matcher holds the shared matching configuration. Safe for concurrent use.
type Matcher struct {
	similarityFloor float64
}

func New(similarityFloor float64) *Matcher {
	if similarityFloor <= 0 || similarityFloor > 1 {
		similarityFloor = DefaultSimilarityFloor
	}
	return &Matcher{similarityFloor: similarityFloor}
}

// Match evaluates candidate against game and, on success, fills the
// candidate's match fields in place.
func (m *Matcher) Match(game models.CanonicalGame, candidate *models.GameDownloadCandidate, opts Options) Result {
	res := m.evaluate(game, candidate, opts)
	if res.Matched {
		candidate.MatchScore = res.Score
		candidate.MatchReasons = res.Reasons
		candidate.Platform = res.Platform
		candidate.PlatformScore = res.PlatformScore
	}
	return res
}

func (m *Matcher) evaluate(game models.CanonicalGame, candidate *models.GameDownloadCandidate, opts Options) Result {
	candidateNorm := NormalizeTitle(candidate.Title)
	if candidateNorm == "" {
		return reject("empty title after normalization")
	}

	names := append([]string{game.Name}, game.Aliases...)

	best := Result{}
	matchedName := ""
	for _, name := range names {
		sim, ok := m.titleAgrees(name, candidateNorm)
		if ok && sim > best.Similarity {
			best.Similarity = sim
			matchedName = name
		}
	}
	if matchedName == "" {
		return reject(fmt.Sprintf("title similarity below floor %.2f", m.similarityFloor))
	}

	canonicalNorm := NormalizeTitle(matchedName)
	canonicalTokens := Tokens(matchedName)
	candidateTokens := strings.Fields(candidateNorm)

	if len(canonicalTokens) == 1 {
		if tok, ok := disallowedExtraToken(canonicalTokens[0], candidateTokens); ok {
			return reject(fmt.Sprintf("unexpected extra token %q for single-word title", tok))
		}
	}

	if sequel, ok := knownSequelConflict(canonicalNorm, candidateNorm); ok {
		return reject(fmt.Sprintf("matches known sequel %q", sequel))
	}
	if ordinal, ok := numericSequelConflict(canonicalTokens, candidateTokens); ok {
		return reject(fmt.Sprintf("sequel ordinal %q not in canonical title", ordinal))
	}

	if reason, ok := patchOnly(candidate.Title); ok {
		return reject(reason)
	}

	platform, platformScore := DetectPlatform(candidate.Title, candidate.Category)
	preferred := opts.PreferredPlatform
	if preferred == "" {
		preferred = game.Platform
	}
	if !platformsAgree(preferred, platform) {
		return reject(fmt.Sprintf("platform %s does not satisfy preference %s", platform, preferred))
	}

	res := Result{
		Matched:       true,
		Similarity:    best.Similarity,
		Platform:      platform,
		PlatformScore: platformScore,
	}
	m.score(&res, candidate, preferred)

	if opts.MinMatchScore > 0 && res.Score < opts.MinMatchScore {
		return reject(fmt.Sprintf("score %.1f below minimum %.1f", res.Score, opts.MinMatchScore))
	}
	return res
}

// titleAgrees applies the containment-or-similarity rule against one
// canonical name and returns the similarity achieved.
func (m *Matcher) titleAgrees(canonicalName, candidateNorm string) (float64, bool) {
	canonicalNorm := NormalizeTitle(canonicalName)
	if canonicalNorm == "" {
		return 0, false
	}

	sim := TitleSimilarity(canonicalNorm, candidateNorm)

	if containsAllTokens(strings.Fields(canonicalNorm), strings.Fields(candidateNorm)) {
		// Containment counts as a full match for gating purposes, but the
		// recorded similarity still reflects how much extra text the
		// candidate carries.
		return math.Max(sim, m.similarityFloor), true
	}
	return sim, sim >= m.similarityFloor
}

// TitleSimilarity is a Levenshtein ratio over normalized titles, in 0..1.
func TitleSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := math.Max(float64(len(a)), float64(len(b)))
	if longest == 0 {
		return 0
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/longest
}

func containsAllTokens(needles, haystack []string) bool {
	if len(needles) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(haystack))
	for _, t := range haystack {
		set[t] = struct{}{}
	}
	for _, t := range needles {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// disallowedExtraToken enforces the single-word title guard: every token
// beyond the matched word must be on the allow-list, or the hit is likely a
// mod, fan game or unrelated release that merely contains the word.
func disallowedExtraToken(word string, candidateTokens []string) (string, bool) {
	for _, tok := range candidateTokens {
		if tok == word {
			continue
		}
		if !isAllowedExtraToken(tok) {
			return tok, true
		}
	}
	return "", false
}

var patchTokens = []string{"patch", "hotfix", "trainer", "crackfix", "langpack", "languagepack", "savegame"}

var bundleIndicators = []string{"repack", "complete", "full", "edition", "goty", "incl", "bundle", "all dlc"}

// patchOnly rejects incremental patches, trainers and language packs. A bare
// patch cannot satisfy a download request, but bundles that merely mention
// updates ("incl update 5") pass.
func patchOnly(title string) (string, bool) {
	lower := strings.ToLower(title)

	hit := ""
	for _, tok := range patchTokens {
		if strings.Contains(lower, tok) {
			hit = tok
			break
		}
	}
	if hit == "" {
		// "update" alone is ambiguous: "Update v1.5" releases are patches,
		// "Game Incl Update 5" releases are full bundles.
		if !strings.Contains(lower, "update") {
			return "", false
		}
		hit = "update"
	}

	for _, ind := range bundleIndicators {
		if strings.Contains(lower, ind) {
			return "", false
		}
	}
	if r := rls.ParseString(title); r.Group != "" {
		return "", false
	}
	return fmt.Sprintf("looks like a bare %s release", hit), true
}

var releaseTypeBonus = map[models.ReleaseType]float64{
	models.ReleaseTypeRepack: 12,
	models.ReleaseTypeScene:  10,
	models.ReleaseTypeRip:    6,
	models.ReleaseTypeP2P:    3,
}

// score composes the weighted heuristic score and records one reason string
// per contributing term. The hybrid scorer parses features back out of these
// strings, so the formats are load-bearing.
func (m *Matcher) score(res *Result, candidate *models.GameDownloadCandidate, preferred string) {
	score := res.Similarity * 60
	res.Reasons = append(res.Reasons, fmt.Sprintf("title similarity %.2f", res.Similarity))

	if bonus, ok := releaseTypeBonus[candidate.ReleaseType]; ok && candidate.ReleaseType != models.ReleaseTypeUnknown {
		score += bonus
		res.Reasons = append(res.Reasons, fmt.Sprintf("release type %s", candidate.ReleaseType))
	}

	if preferred != "" && res.Platform != "" {
		score += 10 * res.PlatformScore
		res.Reasons = append(res.Reasons, fmt.Sprintf("platform match %s", res.Platform))
	}

	if candidate.Seeders > 0 {
		score += math.Min(12, 3*math.Log2(1+float64(candidate.Seeders)))
		res.Reasons = append(res.Reasons, fmt.Sprintf("seeders %d", candidate.Seeders))
	}
	if candidate.Leechers > 0 {
		score += math.Min(3, math.Log2(1+float64(candidate.Leechers)))
		res.Reasons = append(res.Reasons, fmt.Sprintf("leechers %d", candidate.Leechers))
	}
	if candidate.Grabs > 0 {
		score += math.Min(6, 1.5*math.Log2(1+float64(candidate.Grabs)))
		res.Reasons = append(res.Reasons, fmt.Sprintf("grabs %d", candidate.Grabs))
	}

	res.Score = math.Min(100, score)
}

func reject(reason string) Result {
	return Result{RejectReason: reason}
}
