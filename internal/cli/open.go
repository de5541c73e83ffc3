package cli

import (
	"context"
	"os"

	configLoader "github.com/andiksetyawan/config"

	"db-schema-sync/internal/app"
	"db-schema-sync/internal/config"
)

func openFromEnvironment(ctx context.Context, opts *RootOptions) (*app.Application, error) {
	cfg := &config.AppConfig{}
	loader := configLoader.New(
		configLoader.WithEnvPath(opts.EnvFile),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	if opts.Catalog != "" {
		cfg.Catalog.Source = config.CatalogSourceFile
		cfg.Catalog.File = opts.Catalog
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logCfg := cfg.Log
	if opts.Verbose {
		logCfg.Level = "debug"
	} else if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	logger := config.NewLogger(os.Stderr, logCfg)

	targetDB, sourceDB, err := config.InitDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect", err)
	}

	application, err := app.NewApplication(cfg, targetDB, sourceDB, logger)
	if err != nil {
		targetDB.Close()
		if sourceDB != nil {
			sourceDB.Close()
		}
		return nil, WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	return application, nil
}
