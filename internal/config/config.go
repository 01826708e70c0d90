// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gamarr/gamarr/internal/domain"
)

var envPrefix = "GAMARR__"

type AppConfig struct {
	Config  *domain.Config
	viper   *viper.Viper
	dataDir string
	version string

	listenersMu sync.RWMutex
	listeners   []func(*domain.Config)
}

func New(configDirOrPath string, versions ...string) (*AppConfig, error) {
	version := "dev"
	if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = versions[0]
	}

	c := &AppConfig{
		viper:   viper.New(),
		Config:  &domain.Config{},
		version: version,
	}

	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.Config.Version = c.version

	c.resolveDataDir()

	c.watchConfig()

	return c, nil
}

func (c *AppConfig) defaults() {
	host := "localhost"
	if detectContainer() {
		host = "0.0.0.0"
	}

	c.viper.SetDefault("host", host)
	c.viper.SetDefault("port", 7575)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "")
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9705)

	c.viper.SetDefault("downloadPath", defaultDownloadPath())
	c.viper.SetDefault("maxConcurrentDownloads", 3)
	c.viper.SetDefault("maxRetries", 3)
	c.viper.SetDefault("retryDelayMs", 5000)
	c.viper.SetDefault("createGameSubfolders", true)

	c.viper.SetDefault("similarityFloor", 0.82)
	c.viper.SetDefault("minMatchScore", 40.0)
	c.viper.SetDefault("maxResults", 25)
	c.viper.SetDefault("candidateFilter", "")
	c.viper.SetDefault("modelPath", "")
	c.viper.SetDefault("rerankerUrl", "")

	c.viper.SetDefault("torznabUrl", "")
	c.viper.SetDefault("torznabApiKey", "")
	c.viper.SetDefault("torznabTimeoutSeconds", 30)
	c.viper.SetDefault("directRipUrl", "")
	c.viper.SetDefault("directRipTimeoutSeconds", 45)
	c.viper.SetDefault("linkIndexUrl", "")
	c.viper.SetDefault("linkIndexTimeoutSeconds", 15)
	c.viper.SetDefault("trustedUploaders", []string{})
	c.viper.SetDefault("repackIndexUrl", "")
	c.viper.SetDefault("repackIndexTimeoutSeconds", 60)
	c.viper.SetDefault("sourceListTtlMinutes", 360)

	c.viper.SetDefault("ntfyTopic", "")
	c.viper.SetDefault("ntfyTimeoutSeconds", 10)
}

func (c *AppConfig) load(configDirOrPath string) error {
	c.viper.SetConfigType("toml")

	if configDirOrPath != "" {
		configPath := c.resolveConfigPath(configDirOrPath)
		c.viper.SetConfigFile(configPath)

		if err := c.viper.ReadInConfig(); err != nil {
			if os.IsNotExist(err) || errorIsNotFound(err) {
				if err := c.writeDefaultConfig(configPath); err != nil {
					return err
				}
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	c.viper.SetConfigName("config")
	c.viper.AddConfigPath(".")
	c.viper.AddConfigPath(GetDefaultConfigDir())

	if err := c.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultConfigPath := filepath.Join(GetDefaultConfigDir(), "config.toml")
			if err := c.writeDefaultConfig(defaultConfigPath); err != nil {
				return err
			}
			c.viper.SetConfigFile(defaultConfigPath)
			if err := c.viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read newly created config: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	return nil
}

func errorIsNotFound(err error) bool {
	_, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		return true
	}
	return strings.Contains(err.Error(), "no such file")
}

func (c *AppConfig) loadFromEnv() {
	// Explicit binds only. AutomaticEnv would also pick up unrelated
	// container-injected variables.
	c.viper.BindEnv("host", envPrefix+"HOST")
	c.viper.BindEnv("port", envPrefix+"PORT")
	c.viper.BindEnv("baseUrl", envPrefix+"BASE_URL")
	c.viper.BindEnv("logLevel", envPrefix+"LOG_LEVEL")
	c.viper.BindEnv("logPath", envPrefix+"LOG_PATH")
	c.viper.BindEnv("logMaxSize", envPrefix+"LOG_MAX_SIZE")
	c.viper.BindEnv("logMaxBackups", envPrefix+"LOG_MAX_BACKUPS")
	c.viper.BindEnv("dataDir", envPrefix+"DATA_DIR")
	c.viper.BindEnv("metricsEnabled", envPrefix+"METRICS_ENABLED")
	c.viper.BindEnv("metricsHost", envPrefix+"METRICS_HOST")
	c.viper.BindEnv("metricsPort", envPrefix+"METRICS_PORT")

	c.viper.BindEnv("downloadPath", envPrefix+"DOWNLOAD_PATH")
	c.viper.BindEnv("maxConcurrentDownloads", envPrefix+"MAX_CONCURRENT_DOWNLOADS")
	c.viper.BindEnv("maxRetries", envPrefix+"MAX_RETRIES")
	c.viper.BindEnv("retryDelayMs", envPrefix+"RETRY_DELAY_MS")
	c.viper.BindEnv("createGameSubfolders", envPrefix+"CREATE_GAME_SUBFOLDERS")

	c.viper.BindEnv("similarityFloor", envPrefix+"SIMILARITY_FLOOR")
	c.viper.BindEnv("minMatchScore", envPrefix+"MIN_MATCH_SCORE")
	c.viper.BindEnv("maxResults", envPrefix+"MAX_RESULTS")
	c.viper.BindEnv("candidateFilter", envPrefix+"CANDIDATE_FILTER")
	c.viper.BindEnv("modelPath", envPrefix+"MODEL_PATH")
	c.viper.BindEnv("rerankerUrl", envPrefix+"RERANKER_URL")

	c.viper.BindEnv("torznabUrl", envPrefix+"TORZNAB_URL")
	c.viper.BindEnv("torznabApiKey", envPrefix+"TORZNAB_API_KEY")
	c.viper.BindEnv("directRipUrl", envPrefix+"DIRECT_RIP_URL")
	c.viper.BindEnv("linkIndexUrl", envPrefix+"LINK_INDEX_URL")
	c.viper.BindEnv("repackIndexUrl", envPrefix+"REPACK_INDEX_URL")
	c.viper.BindEnv("ntfyTopic", envPrefix+"NTFY_TOPIC")
}

func (c *AppConfig) watchConfig() {
	c.viper.WatchConfig()
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Msgf("Config file changed: %s", e.Name)

		if err := c.viper.Unmarshal(c.Config); err != nil {
			log.Error().Err(err).Msg("Failed to reload configuration")
			return
		}

		c.applyDynamicChanges()
	})
}

func (c *AppConfig) applyDynamicChanges() {
	c.Config.Version = c.version
	c.ApplyLogConfig()
	c.notifyListeners()
}

// RegisterReloadListener registers a callback invoked after the configuration
// file is reloaded. The download orchestrator uses this to hot-swap its
// concurrency and retry settings.
func (c *AppConfig) RegisterReloadListener(fn func(*domain.Config)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *AppConfig) notifyListeners() {
	c.listenersMu.RLock()
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.listenersMu.RUnlock()

	copied := *c.Config
	for _, listener := range listeners {
		listener(&copied)
	}
}

// Snapshot returns a copy of the current configuration.
func (c *AppConfig) Snapshot() domain.Config {
	return *c.Config
}

// UpdateDownloadSettings applies new orchestrator settings at runtime and
// fans them out through the same listener path as a config file reload.
func (c *AppConfig) UpdateDownloadSettings(s domain.DownloadSettings) {
	c.Config.DownloadPath = s.DownloadPath
	c.Config.MaxConcurrentDownloads = s.MaxConcurrentDownloads
	c.Config.MaxRetries = s.MaxRetries
	c.Config.RetryDelayMs = int(s.RetryDelay / time.Millisecond)
	c.Config.CreateGameSubfolders = s.CreateGameSubfolders
	c.notifyListeners()
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Debug().Msgf("Config file already exists at: %s", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	configTemplate := `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "localhost" (or "0.0.0.0" in containers)
host = "{{ .host }}"

# Port
# Default: 7575
port = {{ .port }}

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/gamarr.log"

# Destination directory for completed downloads
downloadPath = "{{ .downloadPath }}"

# Concurrent download slots
# Default: 3
maxConcurrentDownloads = {{ .maxConcurrentDownloads }}

# Retries per failed download, with a fixed delay between attempts
# Defaults: 3 retries, 5000 ms
maxRetries = {{ .maxRetries }}
retryDelayMs = {{ .retryDelayMs }}

# Create a per-game subfolder under downloadPath
# Default: true
createGameSubfolders = true

# Title similarity floor for fuzzy matching (0..1)
# Default: 0.82
#similarityFloor = 0.82

# Minimum heuristic match score for a candidate to survive (0..100)
# Default: 40
#minMatchScore = 40.0

# Expression filter applied to every candidate before ranking
# Example: candidateFilter = 'Seeders > 0 || ReleaseType == "repack"'
#candidateFilter = ""

# Hybrid scorer model artifact (JSON). Empty means heuristic-only.
# Also settable via GAMARR__MODEL_PATH.
#modelPath = ""

# External reranker endpoint for batch re-ranking of match pairs
#rerankerUrl = "http://localhost:8600"

# Search agents. An agent without a URL (and API key, where required)
# reports itself unavailable and is skipped by the aggregator.
#torznabUrl = "http://localhost:9117/api/v2.0/indexers/all/results/torznab"
#torznabApiKey = ""
#directRipUrl = ""
#linkIndexUrl = ""
#trustedUploaders = []
#repackIndexUrl = ""

# Push notifications via ntfy topic URL
#ntfyTopic = "https://ntfy.sh/gamarr"
`

	data := map[string]any{
		"host":                   c.viper.GetString("host"),
		"port":                   c.viper.GetInt("port"),
		"logLevel":               c.viper.GetString("logLevel"),
		"downloadPath":           c.viper.GetString("downloadPath"),
		"maxConcurrentDownloads": c.viper.GetInt("maxConcurrentDownloads"),
		"maxRetries":             c.viper.GetInt("maxRetries"),
		"retryDelayMs":           c.viper.GetInt("retryDelayMs"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Msgf("Created default config file: %s", path)
	return nil
}

// GetDefaultConfigDir returns the OS-specific config directory.
func GetDefaultConfigDir() string {
	// XDG_CONFIG_HOME is set to /config in our Docker images
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		if xdgConfig == "/config" {
			return xdgConfig
		}
		return filepath.Join(xdgConfig, "gamarr")
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "gamarr")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "gamarr")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "gamarr")
	}
}

func defaultDownloadPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "downloads"
	}
	return filepath.Join(home, "Downloads", "gamarr")
}

func detectContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}
	if os.Getpid() == 1 {
		return true
	}
	return false
}

// ApplyLogConfig applies the level, writer and optional rotating file sink
// from the current configuration to the global logger.
func (c *AppConfig) ApplyLogConfig() {
	zerolog.TimeFieldFormat = time.RFC3339

	setLogLevel(c.Config.LogLevel)

	writer := baseLogWriter(c.version)

	if c.Config.LogPath != "" {
		multiWriter, err := setupLogFile(c.Config.LogPath, writer, c.Config.LogMaxSize, c.Config.LogMaxBackups)
		if err != nil {
			log.Error().Err(err).Msg("Failed to setup log file")
		} else {
			writer = multiWriter
		}
	}

	log.Logger = log.Logger.Output(writer)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
}

func setupLogFile(path string, base io.Writer, maxSize, maxBackups int) (io.Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	return io.MultiWriter(base, rotator), nil
}

func baseLogWriter(version string) io.Writer {
	if isDevBuild(version) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return writer
	}
	return os.Stderr
}

// InitDefaultLogger configures zerolog before a configuration file is loaded.
// CLI entry points call this so early failures are still readable.
func InitDefaultLogger(version string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(baseLogWriter(version))
}

func isDevBuild(version string) bool {
	v := strings.ToLower(strings.TrimSpace(version))
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}

func (c *AppConfig) resolveConfigPath(configDirOrPath string) string {
	if strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		return configDirOrPath
	}

	if info, err := os.Stat(configDirOrPath); err == nil && !info.IsDir() {
		return configDirOrPath
	}

	return filepath.Join(configDirOrPath, "config.toml")
}

func (c *AppConfig) resolveDataDir() {
	switch {
	case c.Config.DataDir != "":
		c.dataDir = c.Config.DataDir
	case c.viper.ConfigFileUsed() != "":
		c.dataDir = filepath.Dir(c.viper.ConfigFileUsed())
	default:
		c.dataDir = "."
	}
}

// GetDataDir returns the resolved data directory path.
func (c *AppConfig) GetDataDir() string {
	return c.dataDir
}

// GetSourceCachePath returns the on-disk path where an agent persists its
// last-known-good source list.
func (c *AppConfig) GetSourceCachePath(agent string) string {
	return filepath.Join(c.dataDir, agent+"-sources.json")
}

// ModelPath resolves the hybrid model artifact path. The environment override
// wins over the config file so a new artifact can be tried without edits.
func (c *AppConfig) ModelPath() string {
	if p := strings.TrimSpace(os.Getenv(envPrefix + "MODEL_PATH")); p != "" {
		return p
	}
	return c.Config.ModelPath
}

// WriteDefaultConfig writes the default config template to path without
// loading it. Used by the generate-config command.
func WriteDefaultConfig(path string) error {
	c := &AppConfig{viper: viper.New()}
	c.defaults()
	return c.writeDefaultConfig(path)
}
