package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"db-schema-sync/internal/store"
)

const pingTimeout = 10 * time.Second

var defaultPorts = map[string]string{
	store.DialectMySQL:    "3306",
	store.DialectPostgres: "5432",
}

// DSN builds the driver connection string for cfg.
func DSN(cfg DatabaseConfig) (store.Dialect, string, error) {
	d, err := store.DialectFor(cfg.Dialect)
	if err != nil {
		return nil, "", err
	}

	port := cfg.Port
	if port == "" {
		port = defaultPorts[d.Name()]
	}

	switch d.Name() {
	case store.DialectMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, port)
		mc.DBName = cfg.Name
		mc.ParseTime = true
		return d, mc.FormatDSN(), nil
	case store.DialectPostgres:
		return d, fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, port, pgQuote(cfg.User), pgQuote(cfg.Password), pgQuote(cfg.Name), cfg.SSLMode), nil
	default:
		return d, "file:" + cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	}
}

// pgQuote quotes a keyword/value connection string value.
func pgQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// OpenDatabase opens and pings the database described by cfg.
func OpenDatabase(ctx context.Context, name string, cfg DatabaseConfig, logger *slog.Logger) (*sql.DB, store.Dialect, error) {
	d, dsn, err := DSN(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s database: %w", name, err)
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping %s database: %w", name, err)
	}

	if d.Name() == store.DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	logger.Info("connected to database", "role", name, "dialect", d.Name(), "target", describe(d, cfg))
	return db, d, nil
}

// InitDatabase opens the target database and, when the catalog is read
// from a live schema, the source database. The caller closes both.
func InitDatabase(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (target *sql.DB, source *sql.DB, err error) {
	target, _, err = OpenDatabase(ctx, "target", cfg.TargetDB, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Catalog.Source != CatalogSourceDatabase {
		return target, nil, nil
	}

	source, _, err = OpenDatabase(ctx, "source", cfg.SourceDB, logger)
	if err != nil {
		target.Close() // close target if source fails
		return nil, nil, err
	}
	return target, source, nil
}

func describe(d store.Dialect, cfg DatabaseConfig) string {
	if d.Name() == store.DialectSQLite {
		return cfg.Path
	}
	port := cfg.Port
	if port == "" {
		port = defaultPorts[d.Name()]
	}
	return fmt.Sprintf("%s/%s", net.JoinHostPort(cfg.Host, port), cfg.Name)
}
