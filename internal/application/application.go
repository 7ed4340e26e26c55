package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"configreader/internal/api"
	"configreader/internal/config"
	"configreader/internal/confstore"
	"configreader/internal/pipeline"
	"configreader/internal/ratelimit"
	"configreader/internal/token"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	settings    *confstore.EnvSettingsStore
	tokens      *token.Store
	limiter     *ratelimit.Limiter
	configStore *config.Store
	handler     *api.Handler
	router      http.Handler
	logger      *zap.Logger
	server      *http.Server

	janitorCancel context.CancelFunc
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	settings, err := confstore.NewEnvSettingsStore(cfg.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration sources: %w", err)
	}

	tokens := token.NewStore(
		token.WithIssuance(cfg.TokenIssuanceEnabled),
		token.WithSingleActive(cfg.SingleActiveToken),
	)
	static := token.NewStaticSet(cfg.StaticTokens)

	configStore := config.NewStore(cfg)
	limiter := ratelimit.New(cfg.RequestsPerDay, logger)

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	limiter.StartJanitor(janitorCtx)

	pl := pipeline.New(logger, nil,
		pipeline.NewAllowlistGate(configStore, logger, nil),
		pipeline.NewAvailabilityGate(configStore.Current, logger, nil),
		pipeline.NewAuditLogGate(configStore.Current, logger),
		pipeline.NewQuotaGate(limiter, func() []string {
			return configStore.Current().ExemptPrefixes
		}, logger, nil),
		pipeline.NewAuthGate(tokens, static, configStore.Current, logger, nil),
	)

	handler := api.NewHandler(settings, tokens)
	router := api.NewRouter(handler, pl, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithBurstLimit(cfg.BurstRPS, cfg.BurstCapacity),
	)

	return &App{
		settings:      settings,
		tokens:        tokens,
		limiter:       limiter,
		configStore:   configStore,
		handler:       handler,
		router:        router,
		logger:        logger,
		server:        NewServer(cfg, router),
		janitorCancel: janitorCancel,
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Router returns the fully assembled root handler, useful for tests.
func (a *App) Router() http.Handler {
	return a.router
}

// Reload re-reads the runtime configuration and the settings sources, swapping
// both into the running service. Gate subscribers pick up the new snapshot on
// their next request.
func (a *App) Reload(overrides *config.CLIOverrides) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}
	a.configStore.Replace(cfg)

	if err := a.settings.Reload(); err != nil {
		return fmt.Errorf("reload settings sources: %w", err)
	}

	a.logger.Info("configuration reloaded",
		zap.Bool("whitelist_enabled", cfg.WhitelistEnabled),
		zap.Bool("api_enabled", cfg.APIEnabled),
		zap.Bool("require_auth", cfg.RequireAuth),
		zap.Int("requests_per_day", cfg.RequestsPerDay),
	)
	return nil
}

// Stop cancels background workers. The HTTP server is shut down separately by
// the caller so the grace period stays under its control.
func (a *App) Stop() {
	if a.janitorCancel != nil {
		a.janitorCancel()
	}
}
