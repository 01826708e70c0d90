// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matcher

import (
	"strings"

	"github.com/moistari/rls"
)

// Canonical platform names used across the pipeline.
const (
	PlatformWindows = "windows"
	PlatformMacOS   = "macos"
	PlatformLinux   = "linux"
	PlatformSwitch  = "switch"
	PlatformPS4     = "ps4"
	PlatformPS5     = "ps5"
	PlatformXbox    = "xbox"
)

var platformTokens = map[string]string{
	"pc": PlatformWindows, "windows": PlatformWindows, "win": PlatformWindows,
	"win64": PlatformWindows, "win32": PlatformWindows,
	"mac": PlatformMacOS, "macos": PlatformMacOS, "osx": PlatformMacOS,
	"linux": PlatformLinux,
	"switch": PlatformSwitch, "nsw": PlatformSwitch,
	"ps4": PlatformPS4, "ps5": PlatformPS5,
	"xbox": PlatformXbox, "xboxone": PlatformXbox,
}

// torznab game category codes, coarse by design. 4050 is the usual
// PC/Games bucket; 1000-range is console.
var categoryPlatforms = map[string]string{
	"4050": PlatformWindows,
	"4000": PlatformWindows,
	"1000": PlatformSwitch,
	"1090": PlatformSwitch,
	"1180": PlatformPS4,
	"1140": PlatformXbox,
}

// DetectPlatform infers the target platform from the release title and,
// failing that, the indexer category code. The score reflects confidence:
// 1.0 from an explicit title token, 0.7 from a category bucket.
func DetectPlatform(title, category string) (string, float64) {
	r := rls.ParseString(title)
	if p := normalizePlatform(r.Platform); p != "" {
		return p, 1.0
	}

	for _, tok := range Tokens(title) {
		if p, ok := platformTokens[tok]; ok {
			return p, 1.0
		}
	}

	if p, ok := categoryPlatforms[category]; ok {
		return p, 0.7
	}

	return "", 0
}

func normalizePlatform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if canonical, ok := platformTokens[p]; ok {
		return canonical
	}
	return p
}

// platformsAgree reports whether a detected platform satisfies a preference.
// An undetected platform never disagrees; candidates without platform tags
// stay visible rather than being silently dropped.
func platformsAgree(preferred, detected string) bool {
	if preferred == "" || detected == "" {
		return true
	}
	return normalizePlatform(preferred) == normalizePlatform(detected)
}
