package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"db-schema-sync/internal/store"
)

const (
	CatalogSourceFile     = "file"
	CatalogSourceDatabase = "database"

	EnvProduction = "production"
)

type AppConfig struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	TargetDB DatabaseConfig `envPrefix:"TARGET_DB_"`
	SourceDB DatabaseConfig `envPrefix:"SOURCE_DB_"`
	Catalog  CatalogConfig  `envPrefix:"CATALOG_"`
	Sync     SyncConfig     `envPrefix:"SYNC_"`
	Log      LogConfig      `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"3000"`
	Env  string `env:"ENV" envDefault:"development"`

	// AdminToken guards the sync routes in production.
	AdminToken string `env:"ADMIN_TOKEN"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

type CatalogConfig struct {
	Source string `env:"SOURCE" envDefault:"file"`
	File   string `env:"FILE" envDefault:"entities.yaml"`

	// PrecedenceFile overrides the built-in creation order.
	PrecedenceFile string `env:"PRECEDENCE_FILE"`

	// ExcludeTables hides bookkeeping tables from the database catalog.
	ExcludeTables []string `env:"EXCLUDE_TABLES" envSeparator:","`
}

type SyncConfig struct {
	Schedule string `env:"SCHEDULE" envDefault:"0 */6 * * *"`

	AutoStart bool `env:"AUTO_START" envDefault:"false"`

	RunOnStart bool `env:"RUN_ON_START" envDefault:"false"`

	// Entities limits scheduled runs; empty means every catalog entity.
	Entities []string `env:"ENTITIES" envSeparator:","`

	Alter bool `env:"ALTER" envDefault:"false"`

	SafeMode bool `env:"SAFE_MODE" envDefault:"true"`

	StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT" envDefault:"30s"`

	HistorySize int `env:"HISTORY_SIZE" envDefault:"20"`
}

type LogConfig struct {
	Format string `env:"FORMAT" envDefault:"text"`
	Level  string `env:"LEVEL" envDefault:"info"`
}

type DatabaseConfig struct {
	Dialect      string `env:"DIALECT" envDefault:"mysql"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         string `env:"PORT"`
	User         string `env:"USER" envDefault:"root"`
	Password     string `env:"PASSWORD" envDefault:"password"`
	Name         string `env:"NAME" envDefault:"app_db"`
	Path         string `env:"PATH" envDefault:"schema.db"`
	SSLMode      string `env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"5"`
}

// Validate rejects settings the service cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error

	if _, err := store.DialectFor(c.TargetDB.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("TARGET_DB_DIALECT: %w", err))
	}

	switch c.Catalog.Source {
	case CatalogSourceFile:
		if c.Catalog.File == "" {
			errs = append(errs, errors.New("CATALOG_FILE is required when CATALOG_SOURCE=file"))
		}
	case CatalogSourceDatabase:
		if _, err := store.DialectFor(c.SourceDB.Dialect); err != nil {
			errs = append(errs, fmt.Errorf("SOURCE_DB_DIALECT: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("CATALOG_SOURCE must be %q or %q, got %q", CatalogSourceFile, CatalogSourceDatabase, c.Catalog.Source))
	}

	if c.Server.IsProduction() && c.Server.AdminToken == "" {
		errs = append(errs, errors.New("SERVER_ADMIN_TOKEN is required in production"))
	}
	if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("SYNC_SCHEDULE: %w", err))
	}
	if c.Sync.StatementTimeout <= 0 {
		errs = append(errs, errors.New("SYNC_STATEMENT_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}
