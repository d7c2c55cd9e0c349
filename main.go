package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/pdmnode/cmd"
	"github.com/smazurov/pdmnode/internal/api"
	"github.com/smazurov/pdmnode/internal/capture"
	"github.com/smazurov/pdmnode/internal/config"
	"github.com/smazurov/pdmnode/internal/events"
	"github.com/smazurov/pdmnode/internal/logging"
	"github.com/smazurov/pdmnode/internal/metrics/exporters"
	"github.com/smazurov/pdmnode/internal/nats"
	"github.com/smazurov/pdmnode/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Capture profile settings
	ProfilesConfigFile string `help:"Capture profile definitions file" default:"profiles.toml" toml:"profiles.config_file" env:"PROFILES_CONFIG_FILE"`

	// NATS settings
	NATSEnabled bool   `help:"Run the embedded NATS server" default:"true" toml:"nats.enabled" env:"NATS_ENABLED"`
	NATSHost    string `help:"Embedded NATS server host" default:"127.0.0.1" toml:"nats.host" env:"NATS_HOST"`
	NATSPort    int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Enable Prometheus scrape endpoint" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEEnabled        bool `help:"Enable metrics SSE publishing" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Update settings
	UpdateRepository string `help:"GitHub repository slug for self-updates" default:"smazurov/pdmnode" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases when checking for updates" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingGateware string `help:"Gateware pipeline logging level" default:"info" toml:"logging.gateware" env:"LOGGING_GATEWARE"`
	LoggingCapture  string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingNATS     string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"gateware": opts.LoggingGateware,
				"capture":  opts.LoggingCapture,
				"nats":     opts.LoggingNATS,
				"api":      opts.LoggingAPI,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Create the capture session manager
		manager := capture.NewManager(eventBus)

		// Embedded NATS server and bridge for capture worker processes
		var natsServer *nats.Server
		var natsBridge *nats.Bridge
		if opts.NATSEnabled {
			natsLogger := logging.GetLogger("nats")
			natsServer = nats.NewServer(nats.ServerOptions{
				Host:   opts.NATSHost,
				Port:   opts.NATSPort,
				Logger: natsLogger,
			})
			natsBridge = nats.NewBridge(natsServer.ClientURL(), eventBus, natsLogger)
		}

		// SSE metrics exporter republishes Prometheus-cached session
		// metrics onto the event bus
		var sseExporter *exporters.SSEExporter
		sseCtx, sseCancel := context.WithCancel(context.Background())
		if opts.MetricsSSEEnabled {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}

		// Self-update service (may be disabled without write permission)
		updateService, updateErr := updater.NewService(&updater.Options{
			Repository: opts.UpdateRepository,
			Prerelease: opts.UpdatePrerelease,
		})
		if updateErr != nil {
			logger.Warn("Failed to create update service", "error", updateErr)
		}

		apiOpts := &api.Options{
			AuthUsername:  opts.AuthUsername,
			AuthPassword:  opts.AuthPassword,
			Manager:       manager,
			EventBus:      eventBus,
			UpdateService: updateService,
		}

		// Add Prometheus handler if enabled
		if opts.MetricsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}

		server := api.NewServer(apiOpts)

		// Watch the main config file to adjust log levels at runtime
		logWatcher := config.NewConfigWatcher(
			opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logger,
		)
		logWatcher.OnReload(func(cfg logging.Config) {
			logging.UpdateLevels(cfg)
			logger.Info("Logging levels reloaded")
		})

		// Capture profiles: enabled profiles start automatically and the
		// file is watched so edits take effect without a restart
		profiles := config.NewProfileManager(opts.ProfilesConfigFile)
		if err := profiles.Load(); err != nil {
			logger.Warn("Failed to load capture profiles", "error", err, "path", opts.ProfilesConfigFile)
		}

		startProfiles := func(enabled map[string]config.Profile) {
			for id, profile := range enabled {
				params := profileStartParams(id, profile)
				if _, err := manager.Start(params); err != nil {
					var capErr *capture.CaptureError
					if errors.As(err, &capErr) && capErr.Code == capture.ErrCodeSessionExists {
						continue
					}
					logger.Warn("Failed to start capture profile", "profile", id, "error", err)
				} else {
					logger.Info("Capture profile started", "profile", id)
				}
			}
		}

		profileWatcher := config.NewConfigWatcher(
			opts.ProfilesConfigFile,
			func(path string) (map[string]config.Profile, error) {
				pm := config.NewProfileManager(path)
				if err := pm.Load(); err != nil {
					return nil, err
				}
				return pm.GetEnabledProfiles(), nil
			},
			logger,
		)
		profileWatcher.OnReload(func(enabled map[string]config.Profile) {
			logger.Info("Capture profiles reloaded", "enabled", len(enabled))
			startProfiles(enabled)
		})

		hooks.OnStart(func() {
			// Start the embedded NATS server first so workers can connect
			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start NATS server", "error", startErr)
					os.Exit(1)
				}
				if startErr := natsBridge.Start(); startErr != nil {
					logger.Warn("Failed to start NATS bridge", "error", startErr)
				}
			}

			if sseExporter != nil {
				sseExporter.Start(sseCtx)
			}

			// Config watchers (non-fatal if they fail)
			if watchErr := logWatcher.Start(); watchErr != nil {
				logger.Warn("Failed to watch config file, hot-reload disabled", "error", watchErr)
			}
			if watchErr := profileWatcher.Start(); watchErr != nil {
				logger.Warn("Failed to watch profiles file, hot-reload disabled", "error", watchErr)
			}

			// Launch enabled capture profiles
			startProfiles(profiles.GetEnabledProfiles())

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Stop running capture sessions so output files are finalized
			manager.StopAll()

			_ = logWatcher.Stop()
			_ = profileWatcher.Stop()

			sseCancel()
			if sseExporter != nil {
				sseExporter.Stop()
			}

			if natsBridge != nil {
				natsBridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	// Add capture worker command
	cli.Root().AddCommand(cmd.CreateCaptureCmd())

	// Add selftest command
	cli.Root().AddCommand(cmd.CreateSelftestCmd())

	// Run the CLI
	cli.Run()
}

// profileStartParams maps a capture profile to session start parameters.
// Each run gets a timestamped file in the profile's output directory.
func profileStartParams(id string, profile config.Profile) capture.StartParams {
	outputDir := profile.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	file := filepath.Join(outputDir, fmt.Sprintf("%s-%s.pdm", id, time.Now().Format("20060102-150405")))

	return capture.StartParams{
		ID:             id,
		File:           file,
		Channels:       profile.Channels,
		SampleRateHz:   profile.SampleRateHz,
		RefClockHz:     profile.RefClockHz,
		FIFODepth:      profile.FIFODepth,
		FlushThreshold: profile.FlushThreshold,
		Source:         profile.Source,
		Throttle:       true,
	}
}
