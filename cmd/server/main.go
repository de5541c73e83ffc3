package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"db-schema-sync/internal/app"
	"db-schema-sync/internal/config"

	configLoader "github.com/andiksetyawan/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := &config.AppConfig{}
	loader := configLoader.New(
		configLoader.WithEnvPath(".env"),
	)

	if err := loader.Load(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "port", cfg.Server.Port, "env", cfg.Server.Env, "catalog", cfg.Catalog.Source)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targetDB, sourceDB, err := config.InitDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}

	application, err := app.NewApplication(cfg, targetDB, sourceDB, logger)
	if err != nil {
		targetDB.Close()
		if sourceDB != nil {
			sourceDB.Close()
		}
		return err
	}
	defer application.Close()

	return application.Serve(ctx, logger)
}
