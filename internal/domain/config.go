// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// Config is the unmarshaled application configuration.
type Config struct {
	Version string

	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	BaseURL       string `mapstructure:"baseUrl"`
	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`
	DataDir       string `mapstructure:"dataDir"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`

	// Download orchestrator settings. Hot-swappable via config reload.
	DownloadPath           string `mapstructure:"downloadPath"`
	MaxConcurrentDownloads int    `mapstructure:"maxConcurrentDownloads"`
	MaxRetries             int    `mapstructure:"maxRetries"`
	RetryDelayMs           int    `mapstructure:"retryDelayMs"`
	CreateGameSubfolders   bool   `mapstructure:"createGameSubfolders"`

	// Matching settings.
	SimilarityFloor float64 `mapstructure:"similarityFloor"`
	MinMatchScore   float64 `mapstructure:"minMatchScore"`
	MaxResults      int     `mapstructure:"maxResults"`

	// Optional expr filter applied to candidates before ranking, e.g.
	// `Seeders > 0 || ReleaseType == "repack"`.
	CandidateFilter string `mapstructure:"candidateFilter"`

	// Hybrid scorer model artifact. Empty means heuristic-only.
	ModelPath string `mapstructure:"modelPath"`

	// Optional external reranker endpoint (batch pairwise scoring).
	RerankerURL string `mapstructure:"rerankerUrl"`

	// Search agents.
	TorznabURL            string   `mapstructure:"torznabUrl"`
	TorznabAPIKey         string   `mapstructure:"torznabApiKey"`
	TorznabTimeoutSeconds int      `mapstructure:"torznabTimeoutSeconds"`
	DirectRipURL          string   `mapstructure:"directRipUrl"`
	DirectRipTimeout      int      `mapstructure:"directRipTimeoutSeconds"`
	LinkIndexURL          string   `mapstructure:"linkIndexUrl"`
	LinkIndexTimeout      int      `mapstructure:"linkIndexTimeoutSeconds"`
	TrustedUploaders      []string `mapstructure:"trustedUploaders"`
	RepackIndexURL        string   `mapstructure:"repackIndexUrl"`
	RepackIndexTimeout    int      `mapstructure:"repackIndexTimeoutSeconds"`
	SourceListTTLMinutes  int      `mapstructure:"sourceListTtlMinutes"`

	// Push notifications (ntfy topic URL). Empty disables notifications.
	NtfyTopic          string `mapstructure:"ntfyTopic"`
	NtfyTimeoutSeconds int    `mapstructure:"ntfyTimeoutSeconds"`
}

// DownloadSettings is the runtime view of the orchestrator configuration.
// A new value is pushed to the orchestrator whenever the config file reloads.
type DownloadSettings struct {
	DownloadPath           string
	MaxConcurrentDownloads int
	MaxRetries             int
	RetryDelay             time.Duration
	CreateGameSubfolders   bool
}

// DownloadSettings derives the orchestrator settings from the config.
func (c *Config) DownloadSettings() DownloadSettings {
	return DownloadSettings{
		DownloadPath:           c.DownloadPath,
		MaxConcurrentDownloads: c.MaxConcurrentDownloads,
		MaxRetries:             c.MaxRetries,
		RetryDelay:             time.Duration(c.RetryDelayMs) * time.Millisecond,
		CreateGameSubfolders:   c.CreateGameSubfolders,
	}
}
