// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamarr/gamarr/internal/domain"
)

func TestNewCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, err, "expected default config file to be created")

	assert.Equal(t, 7575, cfg.Config.Port)
	assert.Equal(t, 3, cfg.Config.MaxConcurrentDownloads)
	assert.Equal(t, 3, cfg.Config.MaxRetries)
	assert.Equal(t, 5000, cfg.Config.RetryDelayMs)
	assert.True(t, cfg.Config.CreateGameSubfolders)
	assert.InDelta(t, 0.82, cfg.Config.SimilarityFloor, 1e-9)
	assert.Equal(t, dir, cfg.GetDataDir())
}

func TestNewReadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
port = 9000
downloadPath = "/srv/games"
maxConcurrentDownloads = 5
trustedUploaders = ["johncena141", "KaOsKrew"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Config.Port)
	assert.Equal(t, "/srv/games", cfg.Config.DownloadPath)
	assert.Equal(t, 5, cfg.Config.MaxConcurrentDownloads)
	assert.Equal(t, []string{"johncena141", "KaOsKrew"}, cfg.Config.TrustedUploaders)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = 9000\n"), 0644))

	t.Setenv("GAMARR__PORT", "9001")
	t.Setenv("GAMARR__MAX_RETRIES", "7")

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Config.Port)
	assert.Equal(t, 7, cfg.Config.MaxRetries)
}

func TestModelPathEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`modelPath = "/models/a.json"`+"\n"), 0644))

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, "/models/a.json", cfg.ModelPath())

	t.Setenv("GAMARR__MODEL_PATH", "/models/b.json")
	assert.Equal(t, "/models/b.json", cfg.ModelPath())
}

func TestDownloadSettingsConversion(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	settings := cfg.Config.DownloadSettings()
	assert.Equal(t, cfg.Config.DownloadPath, settings.DownloadPath)
	assert.Equal(t, int64(5000), settings.RetryDelay.Milliseconds())
}

func TestReloadListenerReceivesCopy(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	var got []int
	cfg.RegisterReloadListener(func(c *domain.Config) {
		got = append(got, c.MaxConcurrentDownloads)
	})

	cfg.Config.MaxConcurrentDownloads = 8
	cfg.notifyListeners()

	require.Len(t, got, 1)
	assert.Equal(t, 8, got[0])
}

func TestGetSourceCachePath(t *testing.T) {
	dir := t.TempDir()

	cfg, err := New(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "repack-sources.json"), cfg.GetSourceCachePath("repack"))
}

func TestResolveConfigPath(t *testing.T) {
	c := &AppConfig{}

	assert.Equal(t, "/etc/gamarr/custom.toml", c.resolveConfigPath("/etc/gamarr/custom.toml"))
	assert.Equal(t, filepath.Join("/etc/gamarr", "config.toml"), c.resolveConfigPath("/etc/gamarr"))
}

func TestIsDevBuild(t *testing.T) {
	assert.True(t, isDevBuild("dev"))
	assert.True(t, isDevBuild(""))
	assert.True(t, isDevBuild("v1.3.0-dev"))
	assert.False(t, isDevBuild("v1.3.0"))
}
