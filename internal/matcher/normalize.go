// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matcher

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gamarr/gamarr/pkg/stringutils"
)

var (
	bracketedRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	separatorRe = regexp.MustCompile(`[._\-–—:;,+]+`)
	// versionRawRe runs before separator collapse; dotted versions would
	// otherwise be split into bogus standalone number tokens.
	versionRawRe = regexp.MustCompile(`\bv\d+(\.\d+)+[a-z]?\b`)
	versionRe    = regexp.MustCompile(`^v\d+(\.\d+)*[a-z]?$`)
	buildRe     = regexp.MustCompile(`^build\d*$`)
	multiRe     = regexp.MustCompile(`^multi\d*$`)
	yearRe      = regexp.MustCompile(`^(19|20)\d{2}$`)
	romanRe     = regexp.MustCompile(`^[ivx]{1,4}$`)
)

// noiseTokens are release decorations stripped before comparing titles.
var noiseTokens = map[string]struct{}{
	"repack": {}, "proper": {}, "real": {}, "internal": {},
	"multi": {}, "multilang": {}, "multilanguage": {},
	"eur": {}, "usa": {}, "jpn": {}, "pal": {}, "ntsc": {}, "region": {}, "free": {},
	"dl": {}, "ddl": {}, "iso": {}, "crack": {}, "cracked": {},
	"readnfo": {}, "nfo": {}, "dirfix": {},
	// store and scene group tags
	"gog": {}, "steam": {}, "fitgirl": {}, "dodi": {}, "elamigos": {},
	"codex": {}, "skidrow": {}, "plaza": {}, "rune": {}, "empress": {},
	"razor1911": {}, "reloaded": {}, "prophet": {}, "hoodlum": {},
	"tenoke": {}, "flt": {}, "tinyiso": {}, "darksiders": {},
}

// allowedExtraTokens are words a candidate title may carry beyond a matched
// canonical title without disqualifying the hit. Platform names, language
// codes and edition words appear in legitimate release names all the time.
var allowedExtraTokens = map[string]struct{}{
	// platforms
	"pc": {}, "windows": {}, "win": {}, "win64": {}, "win32": {}, "x64": {}, "x86": {},
	"mac": {}, "macos": {}, "osx": {}, "linux": {}, "switch": {}, "nsw": {},
	"ps4": {}, "ps5": {}, "xbox": {},
	// language codes
	"en": {}, "eng": {}, "english": {}, "fr": {}, "french": {}, "de": {}, "german": {},
	"es": {}, "spanish": {}, "it": {}, "italian": {}, "ru": {}, "russian": {},
	"ja": {}, "japanese": {}, "pl": {}, "polish": {}, "pt": {}, "ptbr": {},
	// edition words
	"goty": {}, "edition": {}, "deluxe": {}, "ultimate": {}, "definitive": {},
	"complete": {}, "enhanced": {}, "remastered": {}, "anniversary": {},
	"collectors": {}, "digital": {}, "gold": {}, "premium": {}, "directors": {},
	"cut": {}, "game": {}, "of": {}, "the": {}, "year": {},
	"dlc": {}, "dlcs": {}, "bonus": {}, "ost": {}, "soundtrack": {}, "update": {},
	"incl": {}, "all": {}, "and": {},
}

var normalizeCache = stringutils.New(normalizeTitle)

// NormalizeTitle lowers, strips bracketed release tags, collapses separators
// and drops known noise tokens. Results are memoized; titles repeat heavily
// within one search cycle.
func NormalizeTitle(title string) string {
	return normalizeCache.Normalize(title)
}

func normalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = bracketedRe.ReplaceAllString(s, " ")
	s = versionRawRe.ReplaceAllString(s, " ")
	s = separatorRe.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		tok = strings.Trim(tok, "'\"!?&*")
		if tok == "" {
			continue
		}
		if _, noise := noiseTokens[tok]; noise {
			continue
		}
		if versionRe.MatchString(tok) || buildRe.MatchString(tok) || multiRe.MatchString(tok) {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// Tokens returns the normalized title split into tokens.
func Tokens(title string) []string {
	n := NormalizeTitle(title)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}

// isAllowedExtraToken reports whether tok may appear in a candidate title
// beyond the canonical title without disqualifying the hit.
func isAllowedExtraToken(tok string) bool {
	if _, ok := allowedExtraTokens[tok]; ok {
		return true
	}
	if versionRe.MatchString(tok) || buildRe.MatchString(tok) || multiRe.MatchString(tok) {
		return true
	}
	if yearRe.MatchString(tok) {
		return true
	}
	return false
}

// isSequelNumberToken reports whether tok looks like a sequel ordinal, either
// a small integer or a roman numeral. Years do not count.
func isSequelNumberToken(tok string) bool {
	if yearRe.MatchString(tok) {
		return false
	}
	if n, err := strconv.Atoi(tok); err == nil {
		return n >= 2 && n < 100
	}
	return romanRe.MatchString(tok) && tok != "i"
}
