// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import "fmt"

// Populated at build time via ldflags.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent identifies gamarr against upstream search sources and trackers.
var UserAgent = fmt.Sprintf("gamarr/%s", Version)

// BrowserUserAgent is sent on direct file downloads. Many DDL hosts reject
// non-browser clients outright, so the download path spoofs a real browser.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
