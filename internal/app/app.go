package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"db-schema-sync/internal/catalog"
	"db-schema-sync/internal/config"
	"db-schema-sync/internal/services"
	"db-schema-sync/internal/store"
)

type Application struct {
	Config   *config.AppConfig
	TargetDB *sql.DB
	SourceDB *sql.DB

	Store         *store.Store
	Catalog       catalog.Reader
	Resolver      *services.OrderResolver
	SchemaService *services.SchemaService
	SyncService   *services.SyncService
	History       *services.History
	Scheduler     *services.Scheduler
}

// NewApplication wires the services around already opened databases.
// sourceDB is only used when the catalog is read from a live schema.
func NewApplication(cfg *config.AppConfig, targetDB, sourceDB *sql.DB, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := &Application{
		Config:   cfg,
		TargetDB: targetDB,
		SourceDB: sourceDB,
	}

	dialect, err := store.DialectFor(cfg.TargetDB.Dialect)
	if err != nil {
		return nil, fmt.Errorf("target database: %w", err)
	}
	app.Store = store.New(targetDB, dialect,
		store.WithTimeout(cfg.Sync.StatementTimeout),
		store.WithLogger(logger.With("component", "store")),
	)

	app.Catalog, err = newCatalog(cfg, sourceDB, logger)
	if err != nil {
		return nil, err
	}

	precedence := services.DefaultPrecedence()
	if cfg.Catalog.PrecedenceFile != "" {
		precedence, err = services.LoadPrecedence(cfg.Catalog.PrecedenceFile)
		if err != nil {
			return nil, err
		}
	}
	app.Resolver = services.NewOrderResolver(precedence)

	app.History = services.NewHistory(cfg.Sync.HistorySize)
	app.SchemaService = services.NewSchemaServiceForStore(app.Store, logger.With("component", "schema"))
	app.SyncService = services.NewSyncService(
		app.Catalog,
		app.Resolver,
		app.SchemaService,
		logger.With("component", "sync"),
		services.WithRecorder(app.History),
	)
	app.Scheduler = services.NewScheduler(app.SyncService, services.SchedulerConfig{
		Schedule:   cfg.Sync.Schedule,
		Entities:   cfg.Sync.Entities,
		Alter:      cfg.Sync.Alter,
		SafeMode:   cfg.Sync.SafeMode,
		RunOnStart: cfg.Sync.RunOnStart,
	}, logger.With("component", "scheduler"))

	return app, nil
}

func newCatalog(cfg *config.AppConfig, sourceDB *sql.DB, logger *slog.Logger) (catalog.Reader, error) {
	switch cfg.Catalog.Source {
	case config.CatalogSourceDatabase:
		if sourceDB == nil {
			return nil, errors.New("catalog source is database but no source database is open")
		}
		dialect, err := store.DialectFor(cfg.SourceDB.Dialect)
		if err != nil {
			return nil, fmt.Errorf("source database: %w", err)
		}
		source := store.New(sourceDB, dialect,
			store.WithTimeout(cfg.Sync.StatementTimeout),
			store.WithLogger(logger.With("component", "source")),
		)
		return catalog.NewSchemaRegistry(source,
			catalog.WithExcludedTables(cfg.Catalog.ExcludeTables...),
			catalog.WithSchemaLogger(logger.With("component", "catalog")),
		), nil
	default:
		return catalog.NewFileRegistry(cfg.Catalog.File, logger.With("component", "catalog")), nil
	}
}

func (app *Application) Close() {
	if app.Scheduler != nil && app.Scheduler.IsRunning() {
		app.Scheduler.Stop()
	}

	if app.TargetDB != nil {
		app.TargetDB.Close()
	}

	if app.SourceDB != nil {
		app.SourceDB.Close()
	}
}
