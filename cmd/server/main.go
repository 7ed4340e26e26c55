package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"configreader/internal/application"
	"configreader/internal/config"
	"configreader/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("configreader", "Configuration reader service - exposes runtime configuration behind a layered security pipeline")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	settingsFile := kingpinApp.Flag("settings-file", "Path to the YAML settings file served by the config endpoints").String()
	requestsPerDay := kingpinApp.Flag("requests-per-day", "Daily request quota per client and route").Default("-1").Int()
	requireAuth := kingpinApp.Flag("require-auth", "Whether requests must present a token (true/false)").Default("").String()
	apiEnabled := kingpinApp.Flag("api-enabled", "Whether guarded routes are served (true/false)").Default("").String()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	// A local .env file is a development convenience; absence is not an error.
	_ = godotenv.Load()

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}
	if *port != "" {
		overrides.Port = port
	}
	if *settingsFile != "" {
		overrides.SettingsFile = settingsFile
	}
	if *requestsPerDay >= 0 {
		overrides.RequestsPerDay = requestsPerDay
	}
	if value, err := strconv.ParseBool(*requireAuth); err == nil {
		overrides.RequireAuth = &value
	}
	if value, err := strconv.ParseBool(*apiEnabled); err == nil {
		overrides.APIEnabled = &value
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer app.Stop()

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), func() error { return app.Reload(overrides) }, cfg.ShutdownGracePeriod, logger)
}

// shutdown blocks until a termination signal arrives, then drains the server
// within the grace period. SIGHUP triggers a configuration reload instead of
// terminating.
func shutdown(server *http.Server, reload func() error, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range quit {
		if sig == syscall.SIGHUP {
			logger.Info("reload signal received")
			if reload != nil {
				if err := reload(); err != nil {
					logger.Error("configuration reload failed", zap.Error(err))
				}
			}
			continue
		}
		break
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
