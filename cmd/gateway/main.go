package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-token-gate/internal/adapter"
	"github.com/feral-file/ff-token-gate/internal/api/middleware"
	"github.com/feral-file/ff-token-gate/internal/api/server"
	"github.com/feral-file/ff-token-gate/internal/config"
	"github.com/feral-file/ff-token-gate/internal/gate"
	"github.com/feral-file/ff-token-gate/internal/logger"
	"github.com/feral-file/ff-token-gate/internal/ruleset"
	"github.com/feral-file/ff-token-gate/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadGatewayConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "gateway",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting token gate gateway")

	// Load the declarative ruleset
	loader := ruleset.NewLoader(adapter.NewFileSystem(), adapter.NewJSON())
	spec, err := loader.Load(cfg.Gate.RulesPath)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load ruleset",
			zap.Error(err),
			zap.String("path", cfg.Gate.RulesPath))
	}
	logger.InfoCtx(ctx, "Loaded ruleset",
		zap.String("path", cfg.Gate.RulesPath),
		zap.Int("endpoints", len(spec.Endpoints)),
		zap.Int("aliases", len(spec.Aliases)))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store against the tables the ruleset names
	whitelist := store.WhitelistBinding{
		Schema:        cfg.Gate.Whitelist.Schema,
		Table:         cfg.Gate.Whitelist.Table,
		AddressColumn: cfg.Gate.Whitelist.AddressColumn,
		ClaimedColumn: cfg.Gate.Whitelist.ClaimedColumn,
	}
	dataStore := store.NewPGStore(db, store.LedgerBindingFromSpec(spec), whitelist)

	// Compile the initial configuration; a bad document is fatal at
	// startup, never deferred to request time
	engine := gate.NewEngine(dataStore, dataStore, gate.Options{
		EnforceWhitelist: cfg.Gate.EnforceWhitelist,
	})
	if err := engine.Configure(spec); err != nil {
		logger.FatalCtx(ctx, "Failed to compile ruleset", zap.Error(err))
	}

	// Create server config
	serverConfig := server.Config{
		Debug:         cfg.Debug,
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:  time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:   time.Duration(cfg.Server.IdleTimeout) * time.Second,
		AddressHeader: cfg.Gate.AddressHeader,
		UpstreamURL:   cfg.Gate.UpstreamURL,
		RulesPath:     cfg.Gate.RulesPath,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, engine, loader)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Gateway stopped")
}
