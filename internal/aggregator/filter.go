// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package aggregator

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/models"
)

// filterEnv is the expression environment for one candidate. Field names
// are what operators write in config, so they stay stable.
type filterEnv struct {
	Title       string  `expr:"Title"`
	Source      string  `expr:"Source"`
	ReleaseType string  `expr:"ReleaseType"`
	SizeBytes   int64   `expr:"SizeBytes"`
	Seeders     int     `expr:"Seeders"`
	Leechers    int     `expr:"Leechers"`
	Grabs       int     `expr:"Grabs"`
	MatchScore  float64 `expr:"MatchScore"`
	Platform    string  `expr:"Platform"`
	TrustLevel  string  `expr:"TrustLevel"`
	HasDirect   bool    `expr:"HasDirect"`
}

// Filter evaluates a configured expression against candidates, e.g.
// `Seeders > 0 || ReleaseType == "repack"`. A nil Filter keeps everything.
type Filter struct {
	source  string
	program *vm.Program
}

// NewFilter compiles the expression. Empty source returns a nil filter.
func NewFilter(source string) (*Filter, error) {
	if source == "" {
		return nil, nil
	}

	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid candidate filter %q", source)
	}
	return &Filter{source: source, program: program}, nil
}

// Keep reports whether the candidate passes the filter. Evaluation errors
// keep the candidate; a broken filter should not silently hide results.
func (f *Filter) Keep(c *models.GameDownloadCandidate) bool {
	if f == nil {
		return true
	}

	env := filterEnv{
		Title:       c.Title,
		Source:      c.Source,
		ReleaseType: string(c.ReleaseType),
		SizeBytes:   c.SizeBytes,
		Seeders:     c.Seeders,
		Leechers:    c.Leechers,
		Grabs:       c.Grabs,
		MatchScore:  c.MatchScore,
		Platform:    c.Platform,
		TrustLevel:  string(c.SourceTrustLevel),
		HasDirect:   c.HasDirectDownload,
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		log.Warn().Err(err).Str("filter", f.source).Str("title", c.Title).Msg("Candidate filter evaluation failed")
		return true
	}
	keep, _ := out.(bool)
	return keep
}
