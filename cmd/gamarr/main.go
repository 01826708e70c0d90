// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gamarr/gamarr/internal/agents"
	"github.com/gamarr/gamarr/internal/aggregator"
	"github.com/gamarr/gamarr/internal/api"
	"github.com/gamarr/gamarr/internal/buildinfo"
	"github.com/gamarr/gamarr/internal/config"
	"github.com/gamarr/gamarr/internal/domain"
	"github.com/gamarr/gamarr/internal/downloads"
	"github.com/gamarr/gamarr/internal/matcher"
	"github.com/gamarr/gamarr/internal/metrics"
	"github.com/gamarr/gamarr/internal/notifications"
	"github.com/gamarr/gamarr/internal/scorer"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "gamarr",
		Short: "A self-hosted game acquisition pipeline",
		Long: `gamarr - searches multiple game sources in parallel, scores and
deduplicates the results, and downloads approved releases.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/gamarr/). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for source caches and other files (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, dataDir, logPath)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gamarr",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/gamarr/config.toml
- Windows: %APPDATA%\gamarr\config.toml

You can specify either a directory path or a direct file path:
- Directory: gamarr generate-config --config-dir /path/to/config/
- File: gamarr generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				defaultDir := config.GetDefaultConfigDir()
				configPath = filepath.Join(defaultDir, "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

type Application struct {
	configDir string
	dataDir   string
	logPath   string
}

func NewApplication(configDir, dataDir, logPath string) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
	}
}

func (app *Application) runServer() {
	// Override with CLI flags if provided
	if app.dataDir != "" {
		os.Setenv("GAMARR__DATA_DIR", app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("GAMARR__LOG_PATH", app.logPath)
	}

	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting gamarr")

	// Load the hybrid model if an artifact is configured
	var model *scorer.Model
	if path := cfg.ModelPath(); path != "" {
		model, err = scorer.Load(path)
		if err != nil {
			// A broken artifact degrades to heuristic-only scoring
			log.Warn().Err(err).Str("path", path).Msg("Failed to load scoring model, falling back to heuristic scoring")
			model = nil
		} else {
			log.Info().Str("path", path).Str("type", string(model.Type)).Msg("Scoring model loaded")
		}
	} else {
		log.Info().Msg("No scoring model configured, using heuristic scoring only")
	}

	enhancer := &agents.Enhancer{
		Matcher: matcher.New(cfg.Config.SimilarityFloor),
		Model:   model,
	}

	searchAgents := buildAgents(cfg, enhancer)
	for _, agent := range searchAgents {
		log.Info().Str("agent", agent.Name()).Bool("available", agent.IsAvailable()).Msg("Search agent registered")
	}

	registry := prometheus.NewRegistry()
	var pipelineMetrics *metrics.Metrics
	if cfg.Config.MetricsEnabled {
		pipelineMetrics = metrics.New(registry)
	}

	orchestrator := downloads.NewOrchestrator(cfg.Config.DownloadSettings(), pipelineMetrics)
	cfg.RegisterReloadListener(func(conf *domain.Config) {
		orchestrator.UpdateSettings(conf.DownloadSettings())
	})

	candidateFilter, err := aggregator.NewFilter(cfg.Config.CandidateFilter)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid candidate filter expression")
	}

	reranker := aggregator.NewRerankerClient(cfg.Config.RerankerURL, 30*time.Second)
	if reranker != nil {
		log.Info().Str("url", cfg.Config.RerankerURL).Msg("Reranker enabled")
	}

	agg := aggregator.New(searchAgents, candidateFilter, reranker, orchestrator, cfg.Config.MaxResults, pipelineMetrics)

	notifier := notifications.New(cfg.Config.NtfyTopic, time.Duration(cfg.Config.NtfyTimeoutSeconds)*time.Second)
	pumpCtx, cancelPump := context.WithCancel(context.Background())
	defer cancelPump()
	go notifications.Pump(pumpCtx, orchestrator.Events(), notifier)

	httpServer := api.NewServer(&api.Dependencies{
		Config:       cfg,
		Version:      buildinfo.Version,
		Aggregator:   agg,
		Orchestrator: orchestrator,
	})

	errorChannel := make(chan error)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	if cfg.Config.MetricsEnabled {
		go func() {
			metricsServer := metrics.NewServer(registry, cfg.Config.MetricsHost, cfg.Config.MetricsPort)
			errorChannel <- metricsServer.ListenAndServe()
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
	}

	if err := orchestrator.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during download orchestrator shutdown")
		os.Exit(1)
	}
}

// buildAgents wires every configured search agent. The repack agent is always
// registered since it ships with a bundled catalog fallback.
func buildAgents(cfg *config.AppConfig, enhancer *agents.Enhancer) []agents.SearchAgent {
	conf := cfg.Config

	sourceTTL := time.Duration(conf.SourceListTTLMinutes) * time.Minute

	return []agents.SearchAgent{
		agents.NewRepackAgent(
			conf.RepackIndexURL,
			cfg.GetSourceCachePath("repack"),
			sourceTTL,
			time.Duration(conf.RepackIndexTimeout)*time.Second,
			enhancer,
		),
		agents.NewTorznabAgent(
			conf.TorznabURL,
			conf.TorznabAPIKey,
			time.Duration(conf.TorznabTimeoutSeconds)*time.Second,
			enhancer,
		),
		agents.NewDirectRipAgent(
			conf.DirectRipURL,
			time.Duration(conf.DirectRipTimeout)*time.Second,
			enhancer,
		),
		agents.NewLinkIndexAgent(
			conf.LinkIndexURL,
			conf.TrustedUploaders,
			time.Duration(conf.LinkIndexTimeout)*time.Second,
			enhancer,
		),
	}
}
