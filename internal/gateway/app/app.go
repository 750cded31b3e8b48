// Package app wires the gateway together: config, logging, store,
// catalog, services and the HTTP server, plus lifecycle management.
package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lockbridge/gateway/internal/gateway/httpapi"
	"github.com/lockbridge/gateway/internal/gateway/registry"
	"github.com/lockbridge/gateway/internal/gateway/service"
	"github.com/lockbridge/gateway/internal/gateway/store"
	"github.com/lockbridge/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/lockbridge/gateway/internal/gateway/transform"
	"github.com/lockbridge/gateway/internal/gateway/upstream"
	"github.com/lockbridge/gateway/pkg/cryptox"
	"github.com/lockbridge/gateway/pkg/jwtx"
	"github.com/lockbridge/gateway/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application holds the gateway process and all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	registry *registry.Registry

	tokens      *service.TokenService
	webhooks    *service.WebhookService
	proxy       *service.ProxyDispatcher
	housekeeper *service.Housekeeper

	server        *http.Server
	stopHousekeep context.CancelFunc
}

// New builds a fully wired Application from config.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	db, err := sqlite.NewStore("file:" + cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	app.db = db

	catalog, err := registry.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load integration catalog: %w", err)
	}
	app.registry = registry.New(catalog)

	signer, err := newSigner(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app.initServices(signer)
	app.initHTTP()

	return app, nil
}

// newSigner derives the JWT signer from the configured seed, or generates
// an ephemeral keypair when no seed is set. Ephemeral keys don't survive a
// restart, which only shortens outstanding access tokens; refresh tokens
// are validated against the store and keep working.
func newSigner(cfg Config) (*jwtx.Signer, error) {
	if cfg.SigningSeed == "" {
		return jwtx.NewEphemeralSigner()
	}
	seed, err := hex.DecodeString(cfg.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("decode signing seed: %w", err)
	}
	return jwtx.NewSignerFromSeed(seed)
}

func (app *Application) initServices(signer *jwtx.Signer) {
	app.tokens = service.NewTokenService(app.db, signer, app.cfg.Issuer, app.cfg.AccessTokenTTL)
	app.webhooks = service.NewWebhookService(app.registry)

	transformers := transform.NewRegistry()
	ctx := slogx.WithContext(context.Background(), app.logger)
	transformers.Register(ctx, transform.BookingV2{})

	app.proxy = service.NewProxyDispatcher(app.registry, transformers, upstream.New(app.registry))
	app.housekeeper = service.NewHousekeeper(app.tokens, app.cfg.HousekeepingInterval)
}

func (app *Application) initHTTP() {
	server := httpapi.NewServer(app.tokens, app.webhooks, app.proxy, app.db)

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: slogx.HTTPMiddleware(app.logger)(server.Routes()),
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	hkCtx, cancel := context.WithCancel(slogx.WithContext(context.Background(), app.logger))
	app.stopHousekeep = cancel
	go app.housekeeper.Run(hkCtx)

	app.logger.Info("gateway starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"integrations", len(app.registry.Enabled()),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops housekeeping and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.stopHousekeep != nil {
		app.stopHousekeep()
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}
