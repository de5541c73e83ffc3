package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"db-schema-sync/internal/models"
	"db-schema-sync/internal/store"
)

// Introspector reads the physical structure of a live database.
type Introspector interface {
	Dialect() store.Dialect
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]models.ColumnInfo, error)
	ForeignKeys(ctx context.Context, table string) ([]models.ForeignKey, error)
}

const defaultIntrospectWorkers = 4

// SchemaRegistry treats every base table of a source database as an entity
// named after the table. Foreign keys become field references.
type SchemaRegistry struct {
	source  Introspector
	exclude map[string]bool
	workers int
	logger  *slog.Logger
}

type SchemaOption func(*SchemaRegistry)

// WithExcludedTables hides bookkeeping tables such as migration ledgers.
func WithExcludedTables(tables ...string) SchemaOption {
	return func(r *SchemaRegistry) {
		for _, t := range tables {
			r.exclude[t] = true
		}
	}
}

func WithWorkers(n int) SchemaOption {
	return func(r *SchemaRegistry) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithSchemaLogger(logger *slog.Logger) SchemaOption {
	return func(r *SchemaRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewSchemaRegistry(source Introspector, opts ...SchemaOption) *SchemaRegistry {
	r := &SchemaRegistry{
		source:  source,
		exclude: make(map[string]bool),
		workers: defaultIntrospectWorkers,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SchemaRegistry) ListEntities(ctx context.Context) ([]models.EntityDefinition, error) {
	tables, err := r.source.Tables(ctx)
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(tables))
	for _, t := range tables {
		if !r.exclude[t] {
			kept = append(kept, t)
		}
	}

	defs := make([]models.EntityDefinition, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, table := range kept {
		g.Go(func() error {
			def, err := r.describe(gctx, table)
			if err != nil {
				return fmt.Errorf("failed to describe table %s: %w", table, err)
			}
			defs[i] = def
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "source schema introspected", "tables", len(defs))
	return Normalize(defs), nil
}

func (r *SchemaRegistry) describe(ctx context.Context, table string) (models.EntityDefinition, error) {
	def := models.EntityDefinition{Name: table, StorageName: table}

	columns, err := r.source.Columns(ctx, table)
	if err != nil {
		return def, err
	}
	fks, err := r.source.ForeignKeys(ctx, table)
	if err != nil {
		return def, err
	}

	refs := make(map[string]*models.Reference, len(fks))
	for _, fk := range fks {
		refs[fk.ColumnName] = &models.Reference{
			TargetEntity: fk.ReferencedTableName,
			TargetField:  fk.ReferencedColumnName,
			TargetTable:  fk.ReferencedTableName,
		}
	}

	dialect := r.source.Dialect()
	for _, col := range columns {
		field := models.FieldDefinition{
			Name:       col.ColumnName,
			Type:       col.ColumnType,
			Nullable:   strings.EqualFold(col.IsNullable, "YES"),
			PrimaryKey: col.ColumnKey == "PRI",
			Unique:     col.ColumnKey == "UNI",
			Reference:  refs[col.ColumnName],
		}
		if col.ColumnDefault != nil {
			field.DefaultValue = columnDefault(dialect, *col.ColumnDefault)
		}
		def.Fields = append(def.Fields, field)
	}

	return def, nil
}

var (
	numericLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	sqlFunction    = regexp.MustCompile(`(?i)^(current_timestamp|current_date|current_time|now|null|true|false)(\(\d*\))?$`)
)

// columnDefault turns a catalog default into a definition default. MySQL
// reports string defaults unquoted; the other stores report SQL text.
// Sequence-backed defaults are dropped since the sequence belongs to the
// source database.
func columnDefault(d store.Dialect, raw string) any {
	switch {
	case d.Name() == store.DialectPostgres && strings.HasPrefix(raw, "nextval("):
		return nil
	case d.Name() != store.DialectMySQL:
		return models.RawExpr(raw)
	case numericLiteral.MatchString(raw), sqlFunction.MatchString(raw):
		return models.RawExpr(raw)
	default:
		return raw
	}
}
