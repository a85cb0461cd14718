package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/playeraccounts/internal/api"
	"github.com/mcoot/playeraccounts/internal/config"
	"github.com/mcoot/playeraccounts/internal/factory"
)

func main() {
	// Resolve configuration from defaults, the YAML file and the environment
	cfg, err := config.Load(os.Getenv("PLAYERSERVICE_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	level, _ := cfg.Level()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create application factory
	app, err := factory.New(ctx, cfg.Factory(logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Expire stale confirmation and link codes in the background
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := app.Confirmation.RunSweeper(ctx, cfg.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper stopped", slog.String("error", err.Error()))
		}
	}()

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		Orchestrator:      app.Orchestrator,
		Resolver:          app.Resolver,
		Confirmation:      app.Confirmation,
		Verifier:          app.Verifier,
		OneTimePasswords:  app.OneTimePasswords,
		ConfirmationPages: cfg.ConfirmationPages(),
		AdminKeyHash:      []byte(cfg.Admin.KeyHash),
		ErasePlaceholder:  cfg.Admin.ErasePlaceholder,
	})
	if cfg.Admin.KeyHash == "" {
		logger.Warn("admin key hash not configured, admin routes are disabled")
	}
	if cfg.Maintenance {
		logger.Warn("maintenance mode is on, logins will be refused")
	}

	// Create server
	server := api.NewServer(router, cfg.HTTPServer(), logger)

	// Start server in goroutine. Requests outlive the signal so Shutdown can drain them.
	serveCtx, stopServing := context.WithCancel(context.Background())
	defer stopServing()
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(serveCtx)
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
		slog.String("token_mode", cfg.Token.Mode),
		slog.String("notifier", cfg.Notifier.Mode),
	)

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
		cancel()
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	stopServing()
	<-sweepDone
	if err := app.Close(context.Background()); err != nil {
		logger.Error("failed to release resources", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}
