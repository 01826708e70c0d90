// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matcher

import "strings"

// sequelTable maps a normalized base title to franchise entries that share
// its name but are different games. Substring matching alone would happily
// return Silksong for a Hollow Knight request. The table is static; numeric
// sequels ("Half Life 2" vs "Half Life") are caught generically instead.
var sequelTable = map[string][]string{
	"hollow knight":    {"hollow knight silksong", "silksong"},
	"half life":        {"half life alyx"},
	"portal":           {"portal stories", "portal revolution"},
	"the witcher":      {"the witcher adventure", "gwent"},
	"dark souls":       {"dark souls remastered"},
	"doom":             {"doom eternal"},
	"stalker":          {"stalker clear sky", "stalker call of pripyat"},
	"baldurs gate":     {"baldurs gate siege of dragonspear"},
	"divinity":         {"divinity original sin"},
	"resident evil":    {"resident evil village"},
	"street fighter":   {"street fighter alpha"},
	"monster hunter":   {"monster hunter rise", "monster hunter stories"},
	"god of war":       {"god of war ragnarok"},
	"red dead":         {"red dead redemption"},
	"metro":            {"metro exodus", "metro last light"},
	"dishonored":       {"dishonored death of the outsider"},
	"wolfenstein":      {"wolfenstein youngblood", "wolfenstein the old blood"},
	"bioshock":         {"bioshock infinite"},
	"borderlands":      {"borderlands the pre sequel", "tiny tinas wonderlands"},
	"dead space":       {"dead space remake"},
	"mass effect":      {"mass effect andromeda"},
	"dragon age":       {"dragon age inquisition", "dragon age the veilguard"},
	"fallout":          {"fallout new vegas", "fallout shelter", "fallout tactics"},
	"the elder scrolls": {"the elder scrolls online"},
}

// knownSequelConflict reports whether the candidate title contains a known
// franchise entry that the canonical title itself does not contain.
func knownSequelConflict(canonicalNorm, candidateNorm string) (string, bool) {
	for base, sequels := range sequelTable {
		if !strings.Contains(canonicalNorm, base) {
			continue
		}
		for _, sequel := range sequels {
			if strings.Contains(candidateNorm, sequel) && !strings.Contains(canonicalNorm, sequel) {
				return sequel, true
			}
		}
	}
	return "", false
}

// numericSequelConflict checks for a sequel ordinal immediately following the
// canonical title in the candidate, e.g. canonical "half life" against
// "half life 2". Ordinals the canonical title itself carries are fine.
func numericSequelConflict(canonicalTokens, candidateTokens []string) (string, bool) {
	if len(canonicalTokens) == 0 {
		return "", false
	}

	canonical := make(map[string]struct{}, len(canonicalTokens))
	for _, t := range canonicalTokens {
		canonical[t] = struct{}{}
	}

	last := canonicalTokens[len(canonicalTokens)-1]
	for i, tok := range candidateTokens {
		if tok != last || i+1 >= len(candidateTokens) {
			continue
		}
		next := candidateTokens[i+1]
		if _, inCanonical := canonical[next]; inCanonical {
			continue
		}
		if isSequelNumberToken(next) {
			return next, true
		}
	}
	return "", false
}
